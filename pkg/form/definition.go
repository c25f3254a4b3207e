package form

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/geosurvey/pkg/ident"
)

// ErrEmptyDefinition is returned for a definition document without content.
var ErrEmptyDefinition = errors.New("empty form definition")

// Definition is a form described in a YAML file.
//
//	title: Trees
//	description: Street tree inventory
//	fields:
//	  - label: Especie
//	    type: select
//	    options: [oak, pine]
//	  - name: height
//	    type: number
//	    required: true
//
// A bare sequence of fields is accepted as well.
type Definition struct {
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Fields      []FieldSpec `yaml:"fields"`
}

// ParseDefinition decodes a definition document. Fields without a name get
// one derived from their label that does not clash with the explicit names.
func ParseDefinition(b []byte) (*Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, ErrEmptyDefinition
	}
	doc := root.Content[0]

	var def Definition
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&def.Fields); err != nil {
			return nil, fmt.Errorf("parse definition: %w", err)
		}
	case yaml.MappingNode:
		if err := doc.Decode(&def); err != nil {
			return nil, fmt.Errorf("parse definition: %w", err)
		}
	default:
		return nil, fmt.Errorf("parse definition: unexpected %s at line %d", kindName(doc.Kind), doc.Line)
	}
	def.fillNames()
	return &def, nil
}

// LoadDefinition reads and parses the definition file at path.
func LoadDefinition(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDefinition(b)
}

func (d *Definition) fillNames() {
	seq := ident.NewSequence()
	for _, f := range d.Fields {
		if n := f.ColumnName(); n != "" {
			seq.Reserve(n)
		}
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.ColumnName() == "" && f.Label != "" {
			f.Name = seq.Next(f.Label)
		}
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "node"
	}
}
