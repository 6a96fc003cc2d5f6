package mapping

import (
	"strings"
	"time"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/tabular"
	"github.com/parkgrove/clubsync/pkg/tiers"
)

// hardDefaults are the entity-level fallbacks applied when a lookup resolves
// to nothing at all.
var hardDefaults = map[records.Entity]map[string]string{
	records.EntityMember:       {"status": "active"},
	records.EntityRegistration: {"status": "registered"},
}

// Transformer turns decoded rows into typed import records by applying the
// loaded entity mappings. One transformer serves a whole run; it is
// stateless across rows.
type Transformer struct {
	mappings map[records.Entity]EntityMapping
	tiers    *tiers.Resolver
	now      func() time.Time
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithTierResolver attaches a tier resolver; member tier labels are resolved
// to target tier ids during transformation.
func WithTierResolver(r *tiers.Resolver) TransformerOption {
	return func(t *Transformer) {
		t.tiers = r
	}
}

// WithClock overrides the time source used for required-date fallbacks.
func WithClock(now func() time.Time) TransformerOption {
	return func(t *Transformer) {
		t.now = now
	}
}

// NewTransformer validates the mappings, fills omitted field kinds from
// the entity target tables, and creates a Transformer.
func NewTransformer(mappings map[records.Entity]EntityMapping, opts ...TransformerOption) (*Transformer, error) {
	normalized := make(map[records.Entity]EntityMapping, len(mappings))
	for entity, m := range mappings {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		normalized[entity] = m.normalized()
	}

	t := &Transformer{
		mappings: normalized,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Records transforms a batch of rows for one entity kind, in order.
func (t *Transformer) Records(entity records.Entity, rows []tabular.Row) ([]*records.ImportRecord, error) {
	if _, ok := t.mappings[entity]; !ok {
		return nil, errors.NewConfigError("mapping", "no mapping configured for entity "+string(entity), nil)
	}

	out := make([]*records.ImportRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, t.Record(entity, row))
	}
	return out, nil
}

// Record transforms one row into one import record. Field failures
// accumulate on the record; the row's remaining fields are always processed.
func (t *Transformer) Record(entity records.Entity, row tabular.Row) *records.ImportRecord {
	rec := &records.ImportRecord{Entity: entity, Row: row.Line}
	switch entity {
	case records.EntityMember:
		rec.Member = &records.Member{}
	case records.EntityEvent:
		rec.Event = &records.Event{}
	case records.EntityRegistration:
		rec.Registration = &records.Registration{}
	}

	mapping := t.mappings[entity]
	for _, spec := range mapping.Fields {
		t.assign(rec, spec, resolve(spec, row))
	}
	t.applyDefaults(rec)
	t.resolveTier(rec)
	t.validate(rec)
	return rec
}

// fieldValue is the typed result of interpreting one resolved raw value.
// The spec's kind decides which variant is populated.
type fieldValue struct {
	str string
	ts  *time.Time
	n   int
	set bool
}

// assign interprets one resolved value per the field spec's declared kind,
// then stores the typed result on the record's payload.
func (t *Transformer) assign(rec *records.ImportRecord, spec FieldSpec, raw string) {
	v := t.interpret(rec, spec, raw)
	switch rec.Entity {
	case records.EntityMember:
		t.assignMember(rec, spec.Target, v)
	case records.EntityEvent:
		t.assignEvent(rec, spec.Target, v)
	case records.EntityRegistration:
		t.assignRegistration(rec, spec.Target, v)
	}
}

// interpret dispatches once over the kind. Target fields below only store
// the variant their table entry declares.
func (t *Transformer) interpret(rec *records.ImportRecord, spec FieldSpec, raw string) fieldValue {
	switch spec.Kind {
	case KindDate:
		return fieldValue{ts: t.date(rec, spec, raw)}
	case KindInt:
		n, ok := ParsePositiveInt(raw)
		if !ok && strings.TrimSpace(raw) != "" {
			rec.AddWarning("dropped non-positive %s %q", spec.Target, raw)
		}
		return fieldValue{n: n, set: ok}
	default:
		return fieldValue{str: raw}
	}
}

func (t *Transformer) assignMember(rec *records.ImportRecord, target string, v fieldValue) {
	m := rec.Member
	switch target {
	case "externalId":
		rec.ExternalID = strings.TrimSpace(v.str)
	case "firstName":
		m.FirstName = strings.TrimSpace(v.str)
	case "lastName":
		m.LastName = strings.TrimSpace(v.str)
	case "email":
		m.Email = strings.TrimSpace(v.str)
	case "phone":
		m.Phone = strings.TrimSpace(v.str)
	case "joinDate":
		m.JoinDate = v.ts
	case "status":
		m.Status = strings.TrimSpace(v.str)
	case "tierLabel":
		m.TierLabel = strings.TrimSpace(v.str)
	}
}

func (t *Transformer) assignEvent(rec *records.ImportRecord, target string, v fieldValue) {
	e := rec.Event
	switch target {
	case "externalId":
		rec.ExternalID = strings.TrimSpace(v.str)
	case "title":
		e.Title = strings.TrimSpace(v.str)
	case "description":
		e.Description = v.str
	case "location":
		e.Location = strings.TrimSpace(v.str)
	case "start":
		if v.ts != nil {
			e.Start = *v.ts
		}
	case "end":
		e.End = v.ts
	case "capacity":
		if v.set {
			e.Capacity = v.n
		}
	}
}

func (t *Transformer) assignRegistration(rec *records.ImportRecord, target string, v fieldValue) {
	r := rec.Registration
	switch target {
	case "externalId":
		rec.ExternalID = strings.TrimSpace(v.str)
	case "memberExternalId":
		r.MemberExternalID = strings.TrimSpace(v.str)
	case "eventExternalId":
		r.EventExternalID = strings.TrimSpace(v.str)
	case "status":
		r.Status = strings.TrimSpace(v.str)
	case "registeredAt":
		r.RegisteredAt = v.ts
	}
}

// date parses one date field. Required dates fall back to "now" when
// unparsable; optional dates are left unset, never coerced.
func (t *Transformer) date(rec *records.ImportRecord, spec FieldSpec, value string) *time.Time {
	if ts, ok := ParseDate(value); ok {
		return &ts
	}
	if spec.Required {
		now := t.now()
		if strings.TrimSpace(value) != "" {
			rec.AddWarning("unparsable %s %q defaulted to now", spec.Target, value)
		}
		return &now
	}
	if strings.TrimSpace(value) != "" {
		rec.AddWarning("unparsable %s %q left unset", spec.Target, value)
	}
	return nil
}

// applyDefaults fills entity hard defaults for fields still empty after all
// specs ran.
func (t *Transformer) applyDefaults(rec *records.ImportRecord) {
	defaults := hardDefaults[rec.Entity]
	if defaults == nil {
		return
	}
	if v, ok := defaults["status"]; ok {
		switch rec.Entity {
		case records.EntityMember:
			if rec.Member.Status == "" {
				rec.Member.Status = v
			}
		case records.EntityRegistration:
			if rec.Registration.Status == "" {
				rec.Registration.Status = v
			}
		}
	}
}

// resolveTier maps the member's tier label to a target tier id. Resolution
// failures are advisory; the member simply stays tier-less.
func (t *Transformer) resolveTier(rec *records.ImportRecord) {
	if rec.Entity != records.EntityMember || t.tiers == nil || !t.tiers.Enabled() {
		return
	}
	if rec.Member.TierLabel == "" {
		return
	}

	id, err := t.tiers.Resolve(rec.Member.TierLabel)
	if err != nil {
		rec.AddWarning("%s", err)
		return
	}
	rec.Member.TierID = id
}

// validate applies the layer-level required-field checks. Registrations have
// no layer-level requirement; their linkage is checked by reconciliation.
func (t *Transformer) validate(rec *records.ImportRecord) {
	switch rec.Entity {
	case records.EntityMember:
		if rec.Member.FirstName == "" {
			rec.AddError("Missing firstName")
		}
		if rec.Member.LastName == "" {
			rec.AddError("Missing lastName")
		}
		if rec.Member.Email == "" {
			rec.AddError("Missing email")
		}
	case records.EntityEvent:
		if rec.Event.Title == "" {
			rec.AddError("Missing title")
		}
		if rec.Event.Start.IsZero() {
			rec.AddError("Missing start")
		}
	}
}
