package form

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDefinitionMapping(t *testing.T) {
	src := `
title: Trees
description: Street trees
fields:
  - label: Especie
    type: select
    options: [oak, pine]
  - name: height
    type: number
    required: true
`
	def, err := ParseDefinition([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := &Definition{
		Title:       "Trees",
		Description: "Street trees",
		Fields: []FieldSpec{
			{Name: "especie", Label: "Especie", Type: TypeSelect, Options: []string{"oak", "pine"}},
			{Name: "height", Type: TypeNumber, Required: true},
		},
	}
	if diff := cmp.Diff(want, def); diff != "" {
		t.Fatalf("definition mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefinitionSequence(t *testing.T) {
	src := `
- name: especie
  type: text
- label: Especie
  type: text
`
	def, err := ParseDefinition([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Title != "" || len(def.Fields) != 2 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if got := def.Fields[1].Name; got != "especie_1" {
		t.Fatalf("derived name = %q, want especie_1", got)
	}
}

func TestParseDefinitionErrors(t *testing.T) {
	if _, err := ParseDefinition(nil); !errors.Is(err, ErrEmptyDefinition) {
		t.Fatalf("expected ErrEmptyDefinition, got %v", err)
	}
	if _, err := ParseDefinition([]byte("just a string")); err == nil {
		t.Fatal("expected error for scalar document")
	}
	if _, err := ParseDefinition([]byte("fields: [")); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.yaml")
	if err := os.WriteFile(path, []byte("title: T\nfields:\n  - name: a\n    type: text\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.Title != "T" || len(def.Fields) != 1 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if _, err := LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
