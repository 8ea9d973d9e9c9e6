package forms

import (
	"github.com/noah-isme/guard-forms/internal/validation"
)

// Visible reports, for every field, whether it is currently shown.
func (d *Definition) Visible(values map[string]string) map[string]bool {
	visible := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		visible[f.Name] = true
	}
	for _, tg := range d.Rules.Toggles {
		if tg.open(values) {
			continue
		}
		for _, name := range tg.Fields {
			visible[name] = false
		}
	}
	for _, p := range d.Rules.Panels {
		selected := values[p.Selector]
		shown := make(map[string]bool)
		for _, name := range p.Options[selected] {
			shown[name] = true
		}
		for option, fields := range p.Options {
			if option == selected {
				continue
			}
			for _, name := range fields {
				if !shown[name] {
					visible[name] = false
				}
			}
		}
	}
	return visible
}

// Required reports whether a field is mandatory given the current values.
func (d *Definition) Required(name string, values map[string]string) bool {
	f, ok := d.Field(name)
	if !ok {
		return false
	}
	if f.Required {
		return true
	}
	for _, rw := range d.Rules.RequiredWhen {
		if rw.Field == name && validation.IsChecked(values[rw.Checkbox]) {
			return true
		}
	}
	return false
}

// ApplyChange returns a copy of values with the cross-field effects of
// changing one field applied: checking an exclusive member unchecks its
// siblings and unchecked toggles clear the fields they control.
func (d *Definition) ApplyChange(values map[string]string, changed string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	if validation.IsChecked(out[changed]) {
		for _, ex := range d.Rules.Exclusive {
			if !contains(ex.Members, changed) {
				continue
			}
			for _, m := range ex.Members {
				if m != changed {
					out[m] = "false"
				}
			}
		}
	}
	for _, tg := range d.Rules.Toggles {
		if tg.open(out) {
			continue
		}
		for _, name := range tg.Fields {
			out[name] = ""
		}
	}
	return out
}

// Dependents lists the fields that must be re-validated when name changes,
// excluding name itself. Order follows the definition.
func (d *Definition) Dependents(name string) []string {
	self, _ := d.Field(name)
	linked := make(map[string]bool)
	if self.Match != "" {
		linked[self.Match] = true
	}
	if self.After != "" {
		linked[self.After] = true
	}
	for _, f := range d.Fields {
		if f.Match == name || f.After == name {
			linked[f.Name] = true
		}
	}
	for _, rw := range d.Rules.RequiredWhen {
		if rw.Checkbox == name {
			linked[rw.Field] = true
		}
	}
	for _, ex := range d.Rules.Exclusive {
		if contains(ex.Members, name) {
			for _, m := range ex.Members {
				linked[m] = true
			}
		}
	}
	for _, tg := range d.Rules.Toggles {
		if tg.Checkbox == name {
			for _, f := range tg.Fields {
				linked[f] = true
			}
		}
	}
	delete(linked, name)

	out := make([]string, 0, len(linked))
	for _, f := range d.Fields {
		if linked[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
