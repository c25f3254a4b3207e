package form

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxFields is the hard ceiling of fields per form.
	MaxFields = 15
	// MaxNameLength is the longest accepted field identifier.
	MaxNameLength = 15
)

var (
	ErrEmptyFieldSet     = errors.New("at least one field is required")
	ErrTooManyFields     = errors.New("too many fields")
	ErrMissingName       = errors.New("field name is required")
	ErrMissingType       = errors.New("field type is required")
	ErrDuplicateName     = errors.New("duplicate field name")
	ErrInvalidIdentifier = errors.New("invalid field name")
	ErrMissingTitle      = errors.New("form title is required")
	ErrMissingOptions    = errors.New("field requires at least one option")
	ErrNameTooLong       = errors.New("field name too long")
)

var identPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidationError reports a rejected field schema. Field holds the offending
// (normalized) field name when there is one.
type ValidationError struct {
	Err   error
	Field string
	Limit int
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrTooManyFields):
		return fmt.Sprintf("maximum %d fields allowed", e.Limit)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Err, e.Field)
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, field string) error {
	return &ValidationError{Err: err, Field: field}
}

// Validate checks a field list for count limits, missing names or types,
// case-insensitive duplicates and identifier syntax. It returns nil when
// every field passes.
func Validate(fields []FieldSpec) error {
	return validate(fields, MaxFields)
}

func validate(fields []FieldSpec, max int) error {
	if len(fields) == 0 {
		return invalid(ErrEmptyFieldSet, "")
	}
	if len(fields) > max {
		return &ValidationError{Err: ErrTooManyFields, Limit: max}
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return invalid(ErrMissingName, "")
		}
		if f.Type == "" {
			return invalid(ErrMissingType, f.Name)
		}
		name := f.ColumnName()
		if _, dup := seen[name]; dup {
			return invalid(ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
		if !identPattern.MatchString(name) {
			return invalid(ErrInvalidIdentifier, name)
		}
	}
	return nil
}

// ValidateForm runs the checks performed before a form is submitted: a
// non-empty title, the plan's field ceiling, identifier length and options
// for choice types, followed by Validate. maxFields <= 0 or above MaxFields
// falls back to MaxFields.
func ValidateForm(title string, fields []FieldSpec, maxFields int) error {
	if strings.TrimSpace(title) == "" {
		return invalid(ErrMissingTitle, "")
	}
	if maxFields <= 0 || maxFields > MaxFields {
		maxFields = MaxFields
	}
	if err := validate(fields, maxFields); err != nil {
		return err
	}
	for _, f := range fields {
		if err := checkLength(f); err != nil {
			return err
		}
		if f.Type.HasOptions() && len(f.Options) == 0 {
			label := f.Label
			if label == "" {
				label = f.Name
			}
			return invalid(ErrMissingOptions, label)
		}
	}
	return nil
}

// ValidateColumns runs Validate and then rejects names longer than
// MaxNameLength. It guards every path that turns fields into columns.
func ValidateColumns(fields []FieldSpec) error {
	if err := Validate(fields); err != nil {
		return err
	}
	for _, f := range fields {
		if err := checkLength(f); err != nil {
			return err
		}
	}
	return nil
}

func checkLength(f FieldSpec) error {
	if n := f.ColumnName(); len(n) > MaxNameLength {
		return invalid(ErrNameTooLong, n)
	}
	return nil
}
