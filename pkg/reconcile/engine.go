// Package reconcile decides create/update/skip for each import record
// against the target platform's existing state. Records are processed in
// source order, entity by entity, strictly members → events → registrations,
// because registrations resolve references through the id maps the earlier
// phases build. One bad row never blocks the rest of the run.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/logging"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/target"
)

// Counts tallies reconciliation outcomes for one entity kind. For every
// phase, Created+Updated+Skipped+Errored equals Parsed.
type Counts struct {
	Parsed  int `json:"parsed"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Consistent reports whether the tallies add up.
func (c Counts) Consistent() bool {
	return c.Created+c.Updated+c.Skipped+c.Errored == c.Parsed
}

// String summarizes the tallies for operators.
func (c Counts) String() string {
	return fmt.Sprintf("%d parsed, %d created, %d updated, %d skipped, %d errored",
		c.Parsed, c.Created, c.Updated, c.Skipped, c.Errored)
}

// Outcome is the result of one reconciliation run.
type Outcome struct {
	Counts          map[records.Entity]Counts
	MemberIDs       *records.ExternalIDMap
	EventIDs        *records.ExternalIDMap
	RegistrationIDs *records.ExternalIDMap
}

// Engine reconciles import records against the target through an injected
// storage client. It owns the run's identity indexes and external-id maps
// exclusively; one engine serves exactly one run.
type Engine struct {
	client   target.Client
	policies Policies

	members  *records.IdentityIndex
	events   *records.IdentityIndex
	regs     *records.IdentityIndex
	statuses map[string]string // folded status label/code -> target code

	memberIDs *records.ExternalIDMap
	eventIDs  *records.ExternalIDMap
	regIDs    *records.ExternalIDMap

	counts    map[records.Entity]*Counts
	preloaded bool
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPolicies sets the per-entity conflict policies.
func WithPolicies(p Policies) Option {
	return func(e *Engine) error {
		if !p.Valid() {
			return errors.NewValidationError("policies", p, "on_conflict must be skip or update")
		}
		e.policies = p
		return nil
	}
}

// New creates an Engine writing through the given client. Pass a dry-run
// client for dry runs; the engine itself has no dry-run branching.
func New(client target.Client, opts ...Option) (*Engine, error) {
	e := &Engine{
		client:    client,
		members:   records.NewIdentityIndex(records.EntityMember),
		events:    records.NewIdentityIndex(records.EntityEvent),
		regs:      records.NewIdentityIndex(records.EntityRegistration),
		statuses:  make(map[string]string),
		memberIDs: records.NewExternalIDMap(records.EntityMember),
		eventIDs:  records.NewExternalIDMap(records.EntityEvent),
		regIDs:    records.NewExternalIDMap(records.EntityRegistration),
		counts: map[records.Entity]*Counts{
			records.EntityMember:       {},
			records.EntityEvent:        {},
			records.EntityRegistration: {},
		},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Preload builds the identity indexes and status table from the target's
// existing records. A failure here is systemic and aborts the run.
func (e *Engine) Preload(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	statuses, err := e.client.ListStatuses(ctx)
	if err != nil {
		return errors.WrapResource("list", "statuses", "", err)
	}
	for _, s := range statuses {
		e.statuses[strings.ToLower(s.Label)] = s.Code
		e.statuses[strings.ToLower(s.Code)] = s.Code
	}

	members, err := e.client.ListMembers(ctx)
	if err != nil {
		return errors.WrapResource("list", "members", "", err)
	}
	for _, m := range members {
		e.members.Insert(records.MemberKey(m.Email), m.ID)
	}

	events, err := e.client.ListEvents(ctx)
	if err != nil {
		return errors.WrapResource("list", "events", "", err)
	}
	for _, ev := range events {
		e.events.Insert(records.EventKey(ev.Title, ev.Start), ev.ID)
	}

	logger.Debug().
		Int("members", e.members.Len()).
		Int("events", e.events.Len()).
		Int("statuses", len(statuses)).
		Msg("Preloaded target identity indexes")

	e.preloaded = true
	return nil
}

// Run reconciles all records and returns the per-entity counts and id maps.
// Records are grouped by entity kind and processed in the fixed entity
// order, preserving source order within each kind.
func (e *Engine) Run(ctx context.Context, recs []*records.ImportRecord) (*Outcome, error) {
	if !e.preloaded {
		if err := e.Preload(ctx); err != nil {
			return nil, err
		}
	}

	byEntity := make(map[records.Entity][]*records.ImportRecord)
	for _, rec := range recs {
		byEntity[rec.Entity] = append(byEntity[rec.Entity], rec)
	}

	for _, entity := range records.Entities {
		ectx := logging.WithEntity(ctx, string(entity))
		for _, rec := range byEntity[entity] {
			e.reconcile(ectx, rec)
		}
		c := e.counts[entity]
		logging.FromContext(ectx).Info().
			Int("parsed", c.Parsed).
			Int("created", c.Created).
			Int("updated", c.Updated).
			Int("skipped", c.Skipped).
			Int("errored", c.Errored).
			Msg("Reconciled entity phase")
	}

	return e.outcome(), nil
}

// reconcile processes one record, converting any panic from the storage
// client into a row-level error so the run continues.
func (e *Engine) reconcile(ctx context.Context, rec *records.ImportRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec.AddError("unexpected fault: %v", r)
			rec.Action = records.ActionSkip
			e.count(rec)
		}
	}()

	hadErrors := !rec.Valid()
	if hadErrors {
		// Validation already failed; no target contact.
		rec.Action = records.ActionSkip
		e.count(rec)
		return
	}

	switch rec.Entity {
	case records.EntityMember:
		e.member(ctx, rec)
	case records.EntityEvent:
		e.event(ctx, rec)
	case records.EntityRegistration:
		e.registration(ctx, rec)
	default:
		rec.AddError("unknown entity kind %q", rec.Entity)
		rec.Action = records.ActionSkip
	}
	e.count(rec)
}

// count tallies a record exactly once, after its final action is known.
func (e *Engine) count(rec *records.ImportRecord) {
	c := e.counts[rec.Entity]
	if c == nil {
		return
	}
	c.Parsed++
	switch {
	case !rec.Valid():
		c.Errored++
	case rec.Action == records.ActionCreate:
		c.Created++
	case rec.Action == records.ActionUpdate:
		c.Updated++
	default:
		c.Skipped++
	}
}

// member reconciles one member record by email identity.
func (e *Engine) member(ctx context.Context, rec *records.ImportRecord) {
	m := rec.Member
	m.Status = e.normalizeStatus(m.Status)

	key := records.MemberKey(m.Email)
	if id, ok := e.members.Lookup(key); ok {
		if e.policies.Member.update() {
			if err := e.client.UpdateMember(ctx, id, m); err != nil {
				e.storageFault(rec, err)
				return
			}
			rec.Action = records.ActionUpdate
		} else {
			rec.Action = records.ActionSkip
		}
		rec.TargetID = id
	} else {
		id, err := e.client.CreateMember(ctx, m)
		if err != nil {
			e.storageFault(rec, err)
			return
		}
		rec.Action = records.ActionCreate
		rec.TargetID = id
		// Later rows in this run must observe this create.
		e.members.Insert(key, id)
	}

	if rec.ExternalID != "" {
		e.memberIDs.Add(rec.ExternalID, rec.TargetID)
	}
}

// event reconciles one event record by title+hour identity. Events are
// immutable once migrated: any match is a skip, with no update path.
func (e *Engine) event(ctx context.Context, rec *records.ImportRecord) {
	ev := rec.Event

	key := records.EventKey(ev.Title, ev.Start)
	if id, ok := e.events.Lookup(key); ok {
		rec.Action = records.ActionSkip
		rec.TargetID = id
	} else {
		id, err := e.client.CreateEvent(ctx, ev)
		if err != nil {
			e.storageFault(rec, err)
			return
		}
		rec.Action = records.ActionCreate
		rec.TargetID = id
		e.events.Insert(key, id)
	}

	if rec.ExternalID != "" {
		e.eventIDs.Add(rec.ExternalID, rec.TargetID)
	}
}

// registration reconciles one registration. Source references resolve
// through the member and event external-id maps; an unresolved reference is
// a validation error attached before any decision, forcing a skip.
func (e *Engine) registration(ctx context.Context, rec *records.ImportRecord) {
	r := rec.Registration

	memberID := e.resolveRef(rec, e.memberIDs, "member", r.MemberExternalID)
	eventID := e.resolveRef(rec, e.eventIDs, "event", r.EventExternalID)
	if !rec.Valid() {
		rec.Action = records.ActionSkip
		return
	}

	write := target.RegistrationWrite{
		EventID:      eventID,
		MemberID:     memberID,
		Status:       r.Status,
		RegisteredAt: r.RegisteredAt,
	}

	key := records.RegistrationKey(eventID, memberID)
	id, exists := e.regs.Lookup(key)
	if !exists {
		var err error
		id, exists, err = e.client.FindRegistration(ctx, eventID, memberID)
		if err != nil {
			e.storageFault(rec, err)
			return
		}
		if exists {
			e.regs.Insert(key, id)
		}
	}

	if exists {
		if e.policies.Registration.update() {
			if err := e.client.UpdateRegistration(ctx, id, write); err != nil {
				e.storageFault(rec, err)
				return
			}
			rec.Action = records.ActionUpdate
		} else {
			rec.Action = records.ActionSkip
		}
		rec.TargetID = id
	} else {
		created, err := e.client.CreateRegistration(ctx, write)
		if err != nil {
			e.storageFault(rec, err)
			return
		}
		rec.Action = records.ActionCreate
		rec.TargetID = created
		e.regs.Insert(key, created)
	}

	if rec.ExternalID != "" {
		e.regIDs.Add(rec.ExternalID, rec.TargetID)
	}
}

// resolveRef resolves one source external id through an external-id map,
// attaching a validation error when it cannot be resolved.
func (e *Engine) resolveRef(rec *records.ImportRecord, ids *records.ExternalIDMap, kind, externalID string) string {
	if externalID == "" {
		rec.AddError("Missing %s reference", kind)
		return ""
	}
	id, ok := ids.Resolve(externalID)
	if !ok {
		rec.AddError("No migrated %s for external id %q", kind, externalID)
		return ""
	}
	return id
}

// storageFault records a single-record storage failure and forces a skip.
func (e *Engine) storageFault(rec *records.ImportRecord, err error) {
	rec.AddError("storage: %v", err)
	rec.Action = records.ActionSkip
}

// normalizeStatus maps a source status label onto the target's status codes
// when one matches; unknown labels pass through unchanged.
func (e *Engine) normalizeStatus(status string) string {
	if status == "" {
		return status
	}
	if code, ok := e.statuses[strings.ToLower(status)]; ok {
		return code
	}
	return status
}

// outcome snapshots the per-entity counts and id maps.
func (e *Engine) outcome() *Outcome {
	out := &Outcome{
		Counts:          make(map[records.Entity]Counts, len(e.counts)),
		MemberIDs:       e.memberIDs,
		EventIDs:        e.eventIDs,
		RegistrationIDs: e.regIDs,
	}
	for entity, c := range e.counts {
		out.Counts[entity] = *c
	}
	return out
}

// String summarizes an outcome for operators.
func (o *Outcome) String() string {
	var sb strings.Builder
	for i, entity := range records.Entities {
		c := o.Counts[entity]
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%ss: %s", entity, c)
	}
	return sb.String()
}
