package mapping

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/records"
)

type yamlLookup struct {
	Column  string            `yaml:"column"`
	Table   map[string]string `yaml:"table"`
	Default string            `yaml:"default"`
}

type yamlField struct {
	Target   string      `yaml:"target"`
	Kind     string      `yaml:"kind"`
	Required bool        `yaml:"required"`
	Literal  *string     `yaml:"literal"`
	Column   string      `yaml:"column"`
	Lookup   *yamlLookup `yaml:"lookup"`
}

type yamlMapping struct {
	Fields []yamlField `yaml:"fields"`
}

// ParseMappings decodes a YAML mapping document keyed by entity kind into
// validated entity mappings.
func ParseMappings(data []byte) (map[records.Entity]EntityMapping, error) {
	var doc map[string]yamlMapping
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}

	out := make(map[records.Entity]EntityMapping, len(doc))
	for name, ym := range doc {
		entity := records.Entity(name)
		m := EntityMapping{Entity: entity, Fields: make([]FieldSpec, 0, len(ym.Fields))}
		for _, yf := range ym.Fields {
			spec, err := yf.fieldSpec()
			if err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, spec)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out[entity] = m.normalized()
	}
	return out, nil
}

// LoadMappings reads and parses a YAML mapping file.
func LoadMappings(path string) (map[records.Entity]EntityMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	mappings, err := ParseMappings(data)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	return mappings, nil
}

// fieldSpec converts one YAML field into a FieldSpec, enforcing exactly one
// source variant.
func (yf yamlField) fieldSpec() (FieldSpec, error) {
	var source Source
	count := 0
	if yf.Literal != nil {
		source = Literal{Value: *yf.Literal}
		count++
	}
	if yf.Column != "" {
		source = Column{Name: yf.Column}
		count++
	}
	if yf.Lookup != nil {
		source = Lookup{
			Column:     yf.Lookup.Column,
			Table:      yf.Lookup.Table,
			DefaultKey: yf.Lookup.Default,
		}
		count++
	}
	if count != 1 {
		return FieldSpec{}, errors.NewValidationError("source", yf.Target,
			"field must have exactly one of literal, column, or lookup")
	}

	return FieldSpec{
		Target:   yf.Target,
		Kind:     Kind(yf.Kind),
		Required: yf.Required,
		Source:   source,
	}, nil
}
