package schema

import (
	"github.com/faciam-dev/geosurvey/internal/layers"
	"github.com/faciam-dev/geosurvey/pkg/form"
)

// Field is a field as typed into the designer. Every member is optional so
// that incomplete fields reach the validator and get its message.
type Field struct {
	Name     string   `json:"name,omitempty"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Specs converts designer fields to form fields.
func Specs(fields []Field) []form.FieldSpec {
	out := make([]form.FieldSpec, len(fields))
	for i, f := range fields {
		out[i] = form.FieldSpec{
			Name:     f.Name,
			Label:    f.Label,
			Type:     form.FieldType(f.Type),
			Required: f.Required,
			Options:  f.Options,
		}
	}
	return out
}

// FieldType describes one supported field type.
type FieldType struct {
	Type       string `json:"type"`
	SQLType    string `json:"sql_type"`
	HasOptions bool   `json:"has_options"`
}

// ValidateForm is the body of POST /v1/forms/validate.
type ValidateForm struct {
	Title  string  `json:"title,omitempty"`
	Plan   string  `json:"plan,omitempty" enum:"free,basic,premium"`
	Fields []Field `json:"fields"`
}

// FormVerdict is the verdict on a form. Its name must stay distinct from
// form.Validation, which is registered by the package operation.
type FormVerdict struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Field string `json:"field,omitempty"`
}

// Normalize is the body of POST /v1/fields/normalize.
type Normalize struct {
	Labels []string `json:"labels"`
	// Existing names the generated identifiers must not collide with.
	Existing []string `json:"existing,omitempty"`
}

// Names lists identifiers in the order of the labels.
type Names struct {
	Names []string `json:"names"`
}

// GenerateDDL is the body of POST /v1/ddl.
type GenerateDDL struct {
	Table  string  `json:"table,omitempty" pattern:"^[a-z][a-z0-9_]*$"`
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields"`
}

// DDL is a rendered table script.
type DDL struct {
	Table string `json:"table"`
	SQL   string `json:"sql"`
}

// AssemblePackage is the body of POST /v1/packages.
type AssemblePackage struct {
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Plan           string  `json:"plan,omitempty" enum:"free,basic,premium"`
	CanUsePostgres bool    `json:"can_use_postgres,omitempty"`
	Fields         []Field `json:"fields"`
}

// Package is an assembled form package with its summary.
type Package struct {
	Package    form.FormPackage `json:"package"`
	Validation form.Validation  `json:"validation"`
}

// Style is the default rendering of a geometry type.
type Style = layers.Style
