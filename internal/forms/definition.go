// Package forms describes admin forms declaratively and evaluates them:
// per-field rules, cross-field visibility and exclusivity, aggregate reports
// and live input handling.
package forms

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/guard-forms/internal/validation"
)

// Method selects how a form is sent upstream.
type Method string

const (
	MethodPostJSON      Method = "post_json"
	MethodPostMultipart Method = "post_multipart"
	MethodPatch         Method = "patch"
	MethodPostForm      Method = "post_form"
)

// TransformInitials shortens "Фамилия Имя Отчество" to "Фамилия И. О." in the payload.
const TransformInitials = "initials"

// Field is one input of a form.
type Field struct {
	Name              string            `yaml:"name" json:"name"`
	Label             string            `yaml:"label,omitempty" json:"label,omitempty"`
	Kind              string            `yaml:"kind" json:"kind"`
	Key               string            `yaml:"key,omitempty" json:"key,omitempty"`
	Required          bool              `yaml:"required,omitempty" json:"required,omitempty"`
	MinLength         int               `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength         int               `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	RequireMiddleName bool              `yaml:"require_middle_name,omitempty" json:"require_middle_name,omitempty"`
	NotFuture         bool              `yaml:"not_future,omitempty" json:"not_future,omitempty"`
	Match             string            `yaml:"match,omitempty" json:"match,omitempty"`
	After             string            `yaml:"after,omitempty" json:"after,omitempty"`
	Options           []string          `yaml:"options,omitempty" json:"options,omitempty"`
	Filter            string            `yaml:"filter,omitempty" json:"filter,omitempty"`
	Default           string            `yaml:"default,omitempty" json:"default,omitempty"`
	Source            []string          `yaml:"source,omitempty" json:"source,omitempty"`
	Aliases           map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Transform         string            `yaml:"transform,omitempty" json:"transform,omitempty"`
	EmptyAs           string            `yaml:"empty_as,omitempty" json:"empty_as,omitempty"`
	Omit              bool              `yaml:"omit,omitempty" json:"omit,omitempty"`
}

// PayloadKey is the upstream name of the field.
func (f Field) PayloadKey() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

func (f Field) options(required bool) validation.Options {
	return validation.Options{
		Required:          required,
		MinLength:         f.MinLength,
		MaxLength:         f.MaxLength,
		RequireMiddleName: f.RequireMiddleName,
		NotFuture:         f.NotFuture,
		Match:             f.Match,
		After:             f.After,
		Choices:           f.Options,
	}
}

// Exclusive allows at most one checked member.
type Exclusive struct {
	Members []string `yaml:"members" json:"members"`
}

// AtLeastOne requires one of Members to be checked.
type AtLeastOne struct {
	Members []string `yaml:"members" json:"members"`
	Message string   `yaml:"message" json:"message"`
}

// Toggle shows Fields only while Checkbox is checked, or only while it is
// unchecked when Inverted is set.
type Toggle struct {
	Checkbox string   `yaml:"checkbox" json:"checkbox"`
	Fields   []string `yaml:"fields" json:"fields"`
	Inverted bool     `yaml:"inverted,omitempty" json:"inverted,omitempty"`
}

func (t Toggle) open(values map[string]string) bool {
	return validation.IsChecked(values[t.Checkbox]) != t.Inverted
}

// Panel shows only the field set of the selected option.
type Panel struct {
	Selector string              `yaml:"selector" json:"selector"`
	Options  map[string][]string `yaml:"options" json:"options"`
}

// RequiredWhen makes Field mandatory while Checkbox is checked.
type RequiredWhen struct {
	Field    string `yaml:"field" json:"field"`
	Checkbox string `yaml:"checkbox" json:"checkbox"`
}

// Rules groups the cross-field rules of a form.
type Rules struct {
	Exclusive    []Exclusive    `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
	AtLeastOne   []AtLeastOne   `yaml:"at_least_one,omitempty" json:"at_least_one,omitempty"`
	Toggles      []Toggle       `yaml:"toggles,omitempty" json:"toggles,omitempty"`
	Panels       []Panel        `yaml:"panels,omitempty" json:"panels,omitempty"`
	RequiredWhen []RequiredWhen `yaml:"required_when,omitempty" json:"required_when,omitempty"`
}

// Preload names the reads performed once the modal is shown.
type Preload struct {
	DetailPath      string `yaml:"detail_path" json:"detail_path"`
	Unwrap          string `yaml:"unwrap,omitempty" json:"unwrap,omitempty"`
	AttachmentsPath string `yaml:"attachments_path,omitempty" json:"attachments_path,omitempty"`
}

// Step is an extra write issued before the main submission while When is
// checked. SkipIf names a boolean snapshot key that suppresses the step.
type Step struct {
	When     string `yaml:"when" json:"when"`
	SkipIf   string `yaml:"skip_if,omitempty" json:"skip_if,omitempty"`
	Method   Method `yaml:"method" json:"method"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// Submission describes the main write. Deselect names the list whose views
// drop the written entity from their selection once the write succeeds.
type Submission struct {
	Method         Method   `yaml:"method" json:"method"`
	Endpoint       string   `yaml:"endpoint" json:"endpoint"`
	Payload        string   `yaml:"payload" json:"payload"`
	EntityKey      string   `yaml:"entity_key,omitempty" json:"entity_key,omitempty"`
	SuccessMessage string   `yaml:"success_message" json:"success_message"`
	ErrorMessage   string   `yaml:"error_message" json:"error_message"`
	Refresh        []string `yaml:"refresh,omitempty" json:"refresh,omitempty"`
	Deselect       string   `yaml:"deselect,omitempty" json:"deselect,omitempty"`
	Before         []Step   `yaml:"before,omitempty" json:"before,omitempty"`
}

// Uploads configures the chained attachment upload phase.
type Uploads struct {
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	DeletePath string `yaml:"delete_path" json:"delete_path"`
	FileType   string `yaml:"file_type" json:"file_type"`
}

// Definition is a complete form description.
type Definition struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Entity      string     `yaml:"entity" json:"entity"`
	Fields      []Field    `yaml:"fields" json:"fields"`
	Rules       Rules      `yaml:"rules,omitempty" json:"rules,omitempty"`
	Preload     *Preload   `yaml:"preload,omitempty" json:"preload,omitempty"`
	Submit      Submission `yaml:"submit" json:"submit"`
	Attachments *Uploads   `yaml:"attachments,omitempty" json:"attachments,omitempty"`

	index map[string]int
}

// ParseDefinition decodes and checks one YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode form definition: %w", err)
	}
	if err := def.init(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Field returns the named field.
func (d *Definition) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// NeedsPreload reports whether submit stays disabled until the entity is loaded.
func (d *Definition) NeedsPreload() bool {
	return d.Preload != nil && d.Preload.DetailPath != ""
}

func (d *Definition) init() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("form definition without id")
	}
	d.index = make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("form %s: field %d has no name", d.ID, i)
		}
		if _, dup := d.index[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field %s", d.ID, f.Name)
		}
		if _, ok := validation.Lookup(f.Kind); !ok {
			return fmt.Errorf("form %s: field %s has unknown kind %q", d.ID, f.Name, f.Kind)
		}
		if f.Transform != "" && f.Transform != TransformInitials {
			return fmt.Errorf("form %s: field %s has unknown transform %q", d.ID, f.Name, f.Transform)
		}
		if f.Filter != "" {
			if _, ok := validation.LookupFilter(f.Filter, f.MaxLength); !ok {
				return fmt.Errorf("form %s: field %s has unknown filter %q", d.ID, f.Name, f.Filter)
			}
		}
		d.index[f.Name] = i
	}

	refs := make([]string, 0)
	for _, f := range d.Fields {
		if f.Match != "" {
			refs = append(refs, f.Match)
		}
		if f.After != "" {
			refs = append(refs, f.After)
		}
	}
	for _, ex := range d.Rules.Exclusive {
		refs = append(refs, ex.Members...)
	}
	for _, al := range d.Rules.AtLeastOne {
		refs = append(refs, al.Members...)
	}
	for _, tg := range d.Rules.Toggles {
		refs = append(refs, tg.Checkbox)
		refs = append(refs, tg.Fields...)
	}
	for _, p := range d.Rules.Panels {
		refs = append(refs, p.Selector)
		for _, fields := range p.Options {
			refs = append(refs, fields...)
		}
	}
	for _, rw := range d.Rules.RequiredWhen {
		refs = append(refs, rw.Field, rw.Checkbox)
	}
	for _, step := range d.Submit.Before {
		refs = append(refs, step.When)
	}
	for _, ref := range refs {
		if _, ok := d.index[ref]; !ok {
			return fmt.Errorf("form %s: rule references unknown field %q", d.ID, ref)
		}
	}

	switch d.Submit.Method {
	case MethodPostJSON, MethodPostMultipart, MethodPatch, MethodPostForm:
	default:
		return fmt.Errorf("form %s: unsupported submit method %q", d.ID, d.Submit.Method)
	}
	if d.Submit.Endpoint == "" {
		return fmt.Errorf("form %s: submit endpoint missing", d.ID)
	}
	for _, step := range d.Submit.Before {
		if step.Endpoint == "" {
			return fmt.Errorf("form %s: step on %s has no endpoint", d.ID, step.When)
		}
		switch step.Method {
		case MethodPostJSON, MethodPostMultipart, MethodPatch, MethodPostForm:
		default:
			return fmt.Errorf("form %s: unsupported step method %q", d.ID, step.Method)
		}
	}
	return nil
}
