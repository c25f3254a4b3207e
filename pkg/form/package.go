package form

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// CreationType selects where responses of a form are stored.
type CreationType string

const (
	CreationFree     CreationType = "free"
	CreationPostgres CreationType = "postgres"
)

const (
	// FreeTable is the shared hosted table that stores free-tier responses.
	FreeTable = "responses_free"
	// SurveyTablePrefix prefixes every generated survey table.
	SurveyTablePrefix = "survey_arcgeek_"
)

// ErrNoGenerator is returned when a postgres package is requested without a
// DDL generator configured.
var ErrNoGenerator = errors.New("no DDL generator configured")

// FormPackage is the request payload for registering a form.
type FormPackage struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Fields       []FieldSpec  `json:"fields"`
	TableName    string       `json:"table_name"`
	CreationType CreationType `json:"creation_type"`
	SQL          *string      `json:"sql,omitempty"`
}

// Validation summarizes an assembled package.
type Validation struct {
	Valid        bool         `json:"valid"`
	FieldsCount  int          `json:"fields_count"`
	TableName    string       `json:"table_name"`
	CreationType CreationType `json:"creation_type"`
}

// Summary describes the package for status display.
func (p *FormPackage) Summary() Validation {
	return Validation{
		Valid:        true,
		FieldsCount:  len(p.Fields),
		TableName:    p.TableName,
		CreationType: p.CreationType,
	}
}

// DDLFunc generates the storage script for a table and its fields.
type DDLFunc func(table string, fields []FieldSpec, title string) (string, error)

// Assembler builds FormPackages.
type Assembler struct {
	// DDL generates the table script for postgres packages.
	DDL DDLFunc
	// IntN returns a random integer in [0,n). Defaults to math/rand/v2.IntN.
	IntN func(n int) int
}

// NewTableName returns a survey table name of the form survey_arcgeek_NNNNN.
// Uniqueness is probabilistic only.
func NewTableName(intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return fmt.Sprintf("%s%05d", SurveyTablePrefix, intn(99999)+1)
}

// Assemble validates fields and combines them with the plan rules into a
// FormPackage. Free plans, or callers that cannot use PostgreSQL, get the
// shared free table and no SQL.
func (a Assembler) Assemble(title, description string, fields []FieldSpec, plan Plan, canUsePostgres bool) (*FormPackage, error) {
	if err := ValidateColumns(fields); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	pkg := &FormPackage{
		Title:       title,
		Description: strings.TrimSpace(description),
		Fields:      APIFields(fields),
	}
	if plan == PlanFree || !canUsePostgres {
		pkg.TableName = FreeTable
		pkg.CreationType = CreationFree
		return pkg, nil
	}
	if a.DDL == nil {
		return nil, ErrNoGenerator
	}
	table := NewTableName(a.IntN)
	script, err := a.DDL(table, fields, title)
	if err != nil {
		return nil, err
	}
	pkg.TableName = table
	pkg.CreationType = CreationPostgres
	pkg.SQL = &script
	return pkg, nil
}
