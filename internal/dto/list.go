package dto

// ListQuery is the query of a list endpoint. Absent filter parameters keep
// the view's current value.
type ListQuery struct {
	View    string  `form:"view" validate:"omitempty,max=64"`
	Search  *string `form:"search" validate:"omitempty,max=200"`
	Role    *string `form:"role"`
	Status  *string `form:"status"`
	Gender  *string `form:"gender"`
	Sort    *string `form:"sort"`
	Refresh bool    `form:"refresh"`
}

// ExportQuery is the query of a list export.
type ExportQuery struct {
	ListQuery
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}

// CSRFToken is handed to clients that must echo it in X-CSRFToken.
type CSRFToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
