package dto

// FormSummary describes one form definition in listings.
type FormSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Entity      string `json:"entity"`
	Fields      int    `json:"fields"`
	Preload     bool   `json:"preload"`
	Attachments bool   `json:"attachments"`
}

// ValidateFormRequest carries the raw values of a whole form.
type ValidateFormRequest struct {
	Values map[string]string `json:"values" validate:"required"`
}

// InputRequest is one live change of a field.
type InputRequest struct {
	Field  string            `json:"field" validate:"required"`
	Value  string            `json:"value"`
	Values map[string]string `json:"values"`
}
