package service

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/forms"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// FormService exposes form definitions and stateless validation.
type FormService struct {
	registry *forms.Registry
	validate *validator.Validate
	now      func() time.Time
}

// NewFormService builds the form service.
func NewFormService(registry *forms.Registry, validate *validator.Validate) *FormService {
	if validate == nil {
		validate = validator.New()
	}
	return &FormService{registry: registry, validate: validate, now: time.Now}
}

// List summarizes every loaded form.
func (s *FormService) List() []dto.FormSummary {
	defs := s.registry.List()
	out := make([]dto.FormSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, dto.FormSummary{
			ID:          d.ID,
			Title:       d.Title,
			Entity:      d.Entity,
			Fields:      len(d.Fields),
			Preload:     d.NeedsPreload(),
			Attachments: d.Attachments != nil,
		})
	}
	return out
}

// Get returns one definition.
func (s *FormService) Get(id string) (*forms.Definition, error) {
	def, ok := s.registry.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
	}
	return def, nil
}

// Validate evaluates a whole form.
func (s *FormService) Validate(id string, req dto.ValidateFormRequest) (*forms.Report, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "values are required")
	}
	def, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	report := def.Validate(req.Values, s.now())
	return &report, nil
}

// Input evaluates one live change.
func (s *FormService) Input(id string, req dto.InputRequest) (*forms.InputResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "field is required")
	}
	def, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	values := req.Values
	if values == nil {
		values = def.Defaults()
	}
	res, err := def.Input(req.Field, req.Value, values, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return &res, nil
}
