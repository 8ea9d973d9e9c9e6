package dto

// OpenSessionRequest opens a modal for a form, optionally on an entity.
type OpenSessionRequest struct {
	Form     string `json:"form" validate:"required"`
	EntityID *int64 `json:"entity_id" validate:"omitempty,gt=0"`
}

// SubmitRequest carries the values typed into the modal.
type SubmitRequest struct {
	Values map[string]string `json:"values"`
}
