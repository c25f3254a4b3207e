package form

import "strings"

// FieldType is the logical type of a survey field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeEmail    FieldType = "email"
	TypeNumber   FieldType = "number"
	TypeTextarea FieldType = "textarea"
	TypeDate     FieldType = "date"
	TypeURL      FieldType = "url"
	TypeTel      FieldType = "tel"
	TypeSelect   FieldType = "select"
	TypeRadio    FieldType = "radio"
	TypeCheckbox FieldType = "checkbox"
)

// Types lists every supported field type in display order.
var Types = []FieldType{
	TypeText, TypeEmail, TypeNumber, TypeTextarea, TypeDate,
	TypeURL, TypeTel, TypeSelect, TypeRadio, TypeCheckbox,
}

// Valid reports whether t is one of the supported types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeEmail, TypeNumber, TypeTextarea, TypeDate,
		TypeURL, TypeTel, TypeSelect, TypeRadio, TypeCheckbox:
		return true
	default:
		return false
	}
}

// HasOptions reports whether the type is a choice type that carries options.
func (t FieldType) HasOptions() bool {
	switch t {
	case TypeSelect, TypeRadio, TypeCheckbox:
		return true
	default:
		return false
	}
}

// FieldSpec describes one user-defined field of a form.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Label    string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// ColumnName returns the storage identifier for the field.
func (f FieldSpec) ColumnName() string {
	return strings.ToLower(strings.TrimSpace(f.Name))
}

// APIFields normalizes fields for submission to the backend: names are
// lower-cased and trimmed, and a missing label defaults to the name.
// Options are only carried for choice types.
func APIFields(fields []FieldSpec) []FieldSpec {
	out := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		af := FieldSpec{
			Name:     f.ColumnName(),
			Label:    label,
			Type:     f.Type,
			Required: f.Required,
		}
		if f.Type.HasOptions() && len(f.Options) > 0 {
			af.Options = append([]string(nil), f.Options...)
		}
		out = append(out, af)
	}
	return out
}
