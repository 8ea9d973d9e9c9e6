package forms

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/guard-forms/internal/validation"
)

const msgExclusive = "Можно выбрать только один вариант"

// FieldReport is the evaluation of one visible field.
type FieldReport struct {
	Field string `json:"field" yaml:"field"`
	validation.Result `yaml:",inline"`
}

// Report aggregates every visible field. Nothing short-circuits: all invalid
// fields are reported together.
type Report struct {
	Valid        bool              `json:"valid" yaml:"valid"`
	Fields       []FieldReport     `json:"fields" yaml:"fields"`
	FirstInvalid string            `json:"first_invalid,omitempty" yaml:"first_invalid,omitempty"`
	Values       map[string]string `json:"values" yaml:"values"`
}

// Invalid returns the reports of invalid fields in definition order.
func (r Report) Invalid() []FieldReport {
	out := make([]FieldReport, 0)
	for _, f := range r.Fields {
		if !f.Valid {
			out = append(out, f)
		}
	}
	return out
}

// Errors maps invalid field names to their messages.
func (r Report) Errors() map[string]string {
	out := make(map[string]string)
	for _, f := range r.Invalid() {
		out[f.Field] = f.Message
	}
	return out
}

// InputResult is the outcome of one keystroke or change on a field.
type InputResult struct {
	Field      string            `json:"field"`
	Value      string            `json:"value"`
	Stripped   bool              `json:"stripped"`
	Warning    string            `json:"warning,omitempty"`
	Result     validation.Result `json:"result"`
	Counter    int               `json:"counter"`
	MaxLength  int               `json:"max_length,omitempty"`
	Dependents []FieldReport     `json:"dependents,omitempty"`
	Values     map[string]string `json:"values"`
	Visible    map[string]bool   `json:"visible"`
}

// Defaults returns the initial values shown when the modal opens.
func (d *Definition) Defaults() map[string]string {
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Name] = f.Default
	}
	return out
}

// Evaluate runs the rule of one field against the current values.
func (d *Definition) Evaluate(name string, values map[string]string, today time.Time) (validation.Result, error) {
	f, ok := d.Field(name)
	if !ok {
		return validation.Result{}, fmt.Errorf("form %s has no field %s", d.ID, name)
	}
	rule, _ := validation.Lookup(f.Kind)
	ctx := validation.Context{
		Values:  values,
		Today:   today,
		Options: f.options(d.Required(name, values)),
	}
	return rule(values[name], ctx), nil
}

// Validate evaluates every visible field and the exclusivity groups.
func (d *Definition) Validate(values map[string]string, today time.Time) Report {
	visible := d.Visible(values)
	report := Report{Valid: true, Fields: make([]FieldReport, 0, len(d.Fields)), Values: make(map[string]string)}

	excluded := d.exclusiveViolations(values)
	missing := d.atLeastOneViolations(values, visible)
	for _, f := range d.Fields {
		if !visible[f.Name] {
			continue
		}
		res, _ := d.Evaluate(f.Name, values, today)
		if res.Valid && excluded[f.Name] {
			res.Valid = false
			res.Code = validation.CodeInvalid
			res.Message = msgExclusive
		}
		if msg, ok := missing[f.Name]; ok && res.Valid {
			res.Valid = false
			res.Code = validation.CodeEmpty
			res.Message = msg
		}
		report.Fields = append(report.Fields, FieldReport{Field: f.Name, Result: res})
		report.Values[f.Name] = res.Value
		if !res.Valid {
			report.Valid = false
			if report.FirstInvalid == "" {
				report.FirstInvalid = f.Name
			}
		}
	}
	return report
}

// exclusiveViolations marks every checked member after the first one in a group.
func (d *Definition) exclusiveViolations(values map[string]string) map[string]bool {
	out := make(map[string]bool)
	for _, ex := range d.Rules.Exclusive {
		seen := false
		for _, m := range ex.Members {
			if !validation.IsChecked(values[m]) {
				continue
			}
			if seen {
				out[m] = true
			}
			seen = true
		}
	}
	return out
}

// atLeastOneViolations flags the first visible member of every group with nothing checked.
func (d *Definition) atLeastOneViolations(values map[string]string, visible map[string]bool) map[string]string {
	out := make(map[string]string)
	for _, al := range d.Rules.AtLeastOne {
		first := ""
		checked := false
		for _, m := range al.Members {
			if !visible[m] {
				continue
			}
			if first == "" {
				first = m
			}
			if validation.IsChecked(values[m]) {
				checked = true
			}
		}
		if !checked && first != "" {
			out[first] = al.Message
		}
	}
	return out
}

// Input handles a live change: it filters the raw value, applies cross-field
// effects and re-validates the field and everything that depends on it.
func (d *Definition) Input(name, raw string, values map[string]string, today time.Time) (InputResult, error) {
	f, ok := d.Field(name)
	if !ok {
		return InputResult{}, fmt.Errorf("form %s has no field %s", d.ID, name)
	}

	value, stripped := raw, false
	if f.Filter != "" {
		filter, _ := validation.LookupFilter(f.Filter, f.MaxLength)
		value, stripped = filter(raw)
	}

	current := make(map[string]string, len(values)+1)
	for k, v := range values {
		current[k] = v
	}
	current[name] = value
	current = d.ApplyChange(current, name)

	res, err := d.Evaluate(name, current, today)
	if err != nil {
		return InputResult{}, err
	}
	out := InputResult{
		Field:     name,
		Value:     value,
		Stripped:  stripped,
		Result:    res,
		Counter:   res.Length,
		MaxLength: f.MaxLength,
		Values:    current,
		Visible:   d.Visible(current),
	}
	if stripped && f.Filter == validation.FilterPassword {
		out.Warning = validation.PasswordWarning
	}
	for _, dep := range d.Dependents(name) {
		if !out.Visible[dep] {
			continue
		}
		depRes, _ := d.Evaluate(dep, current, today)
		out.Dependents = append(out.Dependents, FieldReport{Field: dep, Result: depRes})
	}
	return out, nil
}

// Prefill maps an entity snapshot onto form values. Fields without a
// snapshot counterpart keep their defaults.
func (d *Definition) Prefill(snapshot map[string]interface{}) map[string]string {
	values := d.Defaults()
	if snapshot == nil {
		return values
	}
	for _, f := range d.Fields {
		sources := f.Source
		if len(sources) == 0 {
			sources = []string{f.PayloadKey()}
		}
		parts := make([]string, 0, len(sources))
		found := false
		for _, key := range sources {
			raw, ok := snapshot[key]
			if !ok || raw == nil {
				continue
			}
			found = true
			if s := stringify(raw); s != "" {
				parts = append(parts, s)
			}
		}
		if !found {
			continue
		}
		value := strings.Join(parts, " ")
		if alias, ok := f.Aliases[value]; ok {
			value = alias
		}
		if f.Kind == validation.KindDate || f.Kind == validation.KindDateTo || f.Kind == validation.KindBirthDate {
			if t, ok := validation.ParseDate(value, nil); ok {
				value = validation.ISODate(t)
			}
		}
		values[f.Name] = value
	}
	return values
}

// Payload serializes the visible, normalized values under their upstream
// keys. Checkboxes become booleans; omitted and hidden fields are skipped.
func (d *Definition) Payload(report Report) map[string]interface{} {
	out := make(map[string]interface{}, len(report.Values))
	for _, f := range d.Fields {
		value, visible := report.Values[f.Name]
		if !visible || f.Omit {
			continue
		}
		if f.Kind == validation.KindCheckbox {
			out[f.PayloadKey()] = value == "true"
			continue
		}
		if f.Transform == TransformInitials {
			value = Initials(value)
		}
		if value == "" && f.EmptyAs != "" {
			value = f.EmptyAs
		}
		out[f.PayloadKey()] = value
	}
	return out
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// Initials turns "Иванов Иван Иванович" into "Иванов И. И.".
func Initials(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:min(len(parts), 3)] {
		r, _ := utf8.DecodeRuneInString(p)
		b.WriteString(" ")
		b.WriteRune(r)
		b.WriteString(".")
	}
	return b.String()
}
