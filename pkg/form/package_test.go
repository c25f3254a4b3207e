package form_test

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/geosurvey/pkg/ddl"
	"github.com/faciam-dev/geosurvey/pkg/form"
)

var sample = []form.FieldSpec{
	{Name: "name", Type: form.TypeText},
	{Name: "age", Type: form.TypeNumber},
}

func TestAssemblePostgres(t *testing.T) {
	a := form.Assembler{DDL: ddl.GenerateSpatial}
	pkg, err := a.Assemble(" Trees ", " census ", sample, form.PlanPremium, true)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if pkg.CreationType != form.CreationPostgres {
		t.Fatalf("creation type %q", pkg.CreationType)
	}
	if !regexp.MustCompile(`^survey_arcgeek_\d{5}$`).MatchString(pkg.TableName) {
		t.Fatalf("table name %q", pkg.TableName)
	}
	if pkg.SQL == nil {
		t.Fatalf("sql missing")
	}
	for _, col := range []string{"name VARCHAR(255)", "age DECIMAL(10,2)"} {
		if !strings.Contains(*pkg.SQL, col) {
			t.Fatalf("sql lacks %q", col)
		}
	}
	if !strings.Contains(*pkg.SQL, "CREATE TABLE "+pkg.TableName+" (") {
		t.Fatalf("sql does not create %s", pkg.TableName)
	}
	if pkg.Title != "Trees" || pkg.Description != "census" {
		t.Fatalf("trim: %q %q", pkg.Title, pkg.Description)
	}
}

func TestAssembleFree(t *testing.T) {
	a := form.Assembler{DDL: func(string, []form.FieldSpec, string) (string, error) {
		t.Fatalf("DDL must not run for free packages")
		return "", nil
	}}
	for _, tc := range []struct {
		plan form.Plan
		pg   bool
	}{{form.PlanFree, true}, {form.PlanPremium, false}} {
		pkg, err := a.Assemble("t", "", sample, tc.plan, tc.pg)
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		want := &form.FormPackage{
			Title:        "t",
			Fields:       []form.FieldSpec{{Name: "name", Label: "name", Type: form.TypeText}, {Name: "age", Label: "age", Type: form.TypeNumber}},
			TableName:    form.FreeTable,
			CreationType: form.CreationFree,
		}
		if diff := cmp.Diff(want, pkg); diff != "" {
			t.Fatalf("package mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestAssembleRejectsInvalid(t *testing.T) {
	a := form.Assembler{DDL: ddl.GenerateSpatial}
	_, err := a.Assemble("t", "", nil, form.PlanPremium, true)
	if !errors.Is(err, form.ErrEmptyFieldSet) {
		t.Fatalf("err %v", err)
	}
}

func TestAssembleRejectsLongNames(t *testing.T) {
	a := form.Assembler{DDL: func(string, []form.FieldSpec, string) (string, error) {
		t.Fatal("DDL must not run for rejected fields")
		return "", nil
	}}
	long := []form.FieldSpec{{Name: "observacion_del_arbol", Type: form.TypeText}}
	for _, plan := range []form.Plan{form.PlanFree, form.PlanPremium} {
		if _, err := a.Assemble("Trees", "", long, plan, true); !errors.Is(err, form.ErrNameTooLong) {
			t.Fatalf("%s: err = %v", plan, err)
		}
	}
}

func TestAssembleWithoutGenerator(t *testing.T) {
	_, err := form.Assembler{}.Assemble("t", "", sample, form.PlanBasic, true)
	if !errors.Is(err, form.ErrNoGenerator) {
		t.Fatalf("err %v", err)
	}
}

func TestNewTableName(t *testing.T) {
	if got := form.NewTableName(func(int) int { return 0 }); got != "survey_arcgeek_00001" {
		t.Fatalf("low %q", got)
	}
	if got := form.NewTableName(func(n int) int { return n - 1 }); got != "survey_arcgeek_99999" {
		t.Fatalf("high %q", got)
	}
}

func TestAPIFieldsKeepsOptionsForChoices(t *testing.T) {
	in := []form.FieldSpec{
		{Name: " Color ", Label: "Colour", Type: form.TypeRadio, Options: []string{"red", "blue"}},
		{Name: "note", Type: form.TypeText, Options: []string{"ignored"}},
	}
	want := []form.FieldSpec{
		{Name: "color", Label: "Colour", Type: form.TypeRadio, Options: []string{"red", "blue"}},
		{Name: "note", Label: "note", Type: form.TypeText},
	}
	if diff := cmp.Diff(want, form.APIFields(in)); diff != "" {
		t.Fatalf("api fields (-want +got):\n%s", diff)
	}
}

func TestSummary(t *testing.T) {
	pkg, _ := form.Assembler{}.Assemble("t", "", sample, form.PlanFree, false)
	s := pkg.Summary()
	if !s.Valid || s.FieldsCount != 2 || s.TableName != form.FreeTable || s.CreationType != form.CreationFree {
		t.Fatalf("summary %+v", s)
	}
}
