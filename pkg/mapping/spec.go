// Package mapping applies declarative per-entity field specifications to
// decoded rows, producing typed import records with per-record validation
// errors. A field is sourced from a literal, a column copy, or a lookup
// table; its kind decides how the resolved string becomes a typed value.
package mapping

import (
	"strings"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/tabular"
)

// Kind decides how a resolved field value is interpreted.
type Kind string

// Field kinds.
const (
	KindString Kind = "string"
	KindDate   Kind = "date"
	KindInt    Kind = "int"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindDate, KindInt:
		return true
	}
	return false
}

// Source is the tagged union of the three ways a target field is populated.
type Source interface {
	isSource()
}

// Literal passes a fixed value through for every row.
type Literal struct {
	Value string
}

// Column copies the named column's raw value; absent columns read as empty.
type Column struct {
	Name string
}

// Lookup reads a column, then maps the trimmed raw value through a table.
// When the raw value has no entry, the table's default key is tried before
// the entity hard default takes over.
type Lookup struct {
	Column     string
	Table      map[string]string
	DefaultKey string
}

func (Literal) isSource() {}
func (Column) isSource()  {}
func (Lookup) isSource()  {}

// FieldSpec describes how one target field is produced from a row.
// Immutable once loaded.
type FieldSpec struct {
	Target   string
	Kind     Kind
	Required bool
	Source   Source
}

// EntityMapping is the ordered field specification for one entity kind.
type EntityMapping struct {
	Entity records.Entity
	Fields []FieldSpec
}

// knownTargets lists the assignable target fields per entity kind, each
// with the kind its record field demands.
var knownTargets = map[records.Entity]map[string]Kind{
	records.EntityMember: {
		"externalId": KindString, "firstName": KindString, "lastName": KindString,
		"email": KindString, "phone": KindString, "joinDate": KindDate,
		"status": KindString, "tierLabel": KindString,
	},
	records.EntityEvent: {
		"externalId": KindString, "title": KindString, "description": KindString,
		"location": KindString, "start": KindDate, "end": KindDate,
		"capacity": KindInt,
	},
	records.EntityRegistration: {
		"externalId": KindString, "memberExternalId": KindString, "eventExternalId": KindString,
		"status": KindString, "registeredAt": KindDate,
	},
}

// Validate checks the mapping against the entity's known target fields and
// the field specs' internal consistency. A declared kind must match the
// target field's kind; an omitted kind is filled by normalized.
func (m EntityMapping) Validate() error {
	if !m.Entity.Valid() {
		return errors.NewValidationError("entity", string(m.Entity), "unknown entity kind")
	}
	targets := knownTargets[m.Entity]
	for _, f := range m.Fields {
		if f.Target == "" {
			return errors.NewValidationError("target", "", "field spec missing target")
		}
		expected, ok := targets[f.Target]
		if !ok {
			return errors.NewValidationError("target", f.Target,
				"unknown target field for entity "+string(m.Entity))
		}
		if f.Kind != "" && !f.Kind.Valid() {
			return errors.NewValidationError("kind", string(f.Kind),
				"unknown kind for field "+f.Target)
		}
		if f.Kind != "" && f.Kind != expected {
			return errors.NewValidationError("kind", string(f.Kind),
				"field "+f.Target+" requires kind "+string(expected))
		}
		if f.Source == nil {
			return errors.NewValidationError("source", f.Target,
				"field spec has no literal, column, or lookup source")
		}
	}
	return nil
}

// normalized returns a copy of the mapping with omitted kinds filled from
// the entity's target table.
func (m EntityMapping) normalized() EntityMapping {
	targets := knownTargets[m.Entity]
	fields := make([]FieldSpec, len(m.Fields))
	for i, f := range m.Fields {
		if f.Kind == "" {
			f.Kind = targets[f.Target]
		}
		fields[i] = f
	}
	return EntityMapping{Entity: m.Entity, Fields: fields}
}

// resolve produces the raw string value for one field spec from one row,
// dispatching exhaustively over the source union.
func resolve(spec FieldSpec, row tabular.Row) string {
	switch src := spec.Source.(type) {
	case Literal:
		return src.Value
	case Column:
		return row.Get(src.Name)
	case Lookup:
		raw := strings.TrimSpace(row.Get(src.Column))
		if v, ok := src.Table[raw]; ok && raw != "" {
			return v
		}
		if src.DefaultKey != "" {
			if v, ok := src.Table[src.DefaultKey]; ok {
				return v
			}
		}
		return ""
	default:
		return ""
	}
}
