package console

import (
	"fmt"
	"strings"

	"github.com/noah-isme/guard-forms/internal/listing"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// AttachView binds a view to a list kind. Rebinding to another kind resets
// the filter and the selection.
type AttachView struct {
	View string
	Kind string
}

func (c AttachView) view() string { return c.View }

func (c AttachView) apply(v *View) (bool, error) {
	if !listing.ValidKind(c.Kind) {
		return false, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown list %q", c.Kind))
	}
	if v.Kind == c.Kind {
		return false, nil
	}
	v.Kind = c.Kind
	v.Filter = listing.FilterState{}.Normalize(c.Kind)
	v.Selected = nil
	return true, nil
}

// SelectEntity marks the entity a view's forms act on.
type SelectEntity struct {
	View string
	ID   int64
}

func (c SelectEntity) view() string { return c.View }

func (c SelectEntity) apply(v *View) (bool, error) {
	if c.ID <= 0 {
		return false, appErrors.Clone(appErrors.ErrValidation, "entity id must be positive")
	}
	id := c.ID
	v.Selected = &id
	return false, nil
}

// ClearSelection drops the selected entity.
type ClearSelection struct {
	View string
}

func (c ClearSelection) view() string { return c.View }

func (c ClearSelection) apply(v *View) (bool, error) {
	v.Selected = nil
	return false, nil
}

// SetSearch changes the search text.
type SetSearch struct {
	View  string
	Value string
}

func (c SetSearch) view() string { return c.View }

func (c SetSearch) apply(v *View) (bool, error) {
	return set(&v.Filter.Search, strings.TrimSpace(c.Value)), nil
}

// SetRole changes the role filter of the user list.
type SetRole struct {
	View  string
	Value string
}

func (c SetRole) view() string { return c.View }

func (c SetRole) apply(v *View) (bool, error) {
	return set(&v.Filter.Role, c.Value), nil
}

// SetStatus changes the status filter. Employees read it as the training filter.
type SetStatus struct {
	View  string
	Value string
}

func (c SetStatus) view() string { return c.View }

func (c SetStatus) apply(v *View) (bool, error) {
	return set(&v.Filter.Status, c.Value), nil
}

// SetGender changes the gender filter of the employee list.
type SetGender struct {
	View  string
	Value string
}

func (c SetGender) view() string { return c.View }

func (c SetGender) apply(v *View) (bool, error) {
	return set(&v.Filter.Gender, c.Value), nil
}

// SetSort changes the sort direction.
type SetSort struct {
	View  string
	Value string
}

func (c SetSort) view() string { return c.View }

func (c SetSort) apply(v *View) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(c.Value))
	if value != "asc" && value != "desc" {
		return false, appErrors.Clone(appErrors.ErrValidation, "sort must be asc or desc")
	}
	return set(&v.Filter.Sort, value), nil
}

func set(field *string, value string) bool {
	if *field == value {
		return false
	}
	*field = value
	return true
}
