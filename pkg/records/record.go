// Package records defines the import data model shared by the mapping,
// reconciliation, and reporting layers: typed import records, derived
// identity keys, the per-run identity indexes, and external-id maps.
package records

import (
	"fmt"
	"time"
)

// Entity identifies the kind of record being migrated.
type Entity string

// Entity kinds, in reconciliation order.
const (
	EntityMember       Entity = "member"
	EntityEvent        Entity = "event"
	EntityRegistration Entity = "registration"
)

// Entities lists all entity kinds in reconciliation order. Registrations
// must come last because they resolve member and event external ids.
var Entities = []Entity{EntityMember, EntityEvent, EntityRegistration}

// Valid reports whether the entity is a known kind.
func (e Entity) Valid() bool {
	switch e {
	case EntityMember, EntityEvent, EntityRegistration:
		return true
	}
	return false
}

// Action is the reconciliation decision for one record. It is set exactly
// once, during reconciliation.
type Action string

// Reconciliation actions.
const (
	ActionNone   Action = ""
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Member holds the typed fields of one member import row.
type Member struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	JoinDate  *time.Time `json:"joinDate,omitempty"`
	Status    string     `json:"status,omitempty"`
	TierLabel string     `json:"tierLabel,omitempty"`
	TierID    string     `json:"tierId,omitempty"`
}

// Event holds the typed fields of one event import row.
type Event struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Capacity    int        `json:"capacity,omitempty"`
}

// Registration holds the typed fields of one registration import row.
// Member and event references are source external ids until reconciliation
// resolves them against the external-id maps.
type Registration struct {
	MemberExternalID string     `json:"memberExternalId"`
	EventExternalID  string     `json:"eventExternalId"`
	Status           string     `json:"status,omitempty"`
	RegisteredAt     *time.Time `json:"registeredAt,omitempty"`
}

// ImportRecord is one source row carried through the pipeline. It is created
// by the mapping layer, mutated only by the reconciliation engine, and
// retained for audit.
type ImportRecord struct {
	Entity     Entity  `json:"entity"`
	Row        int     `json:"row"`
	ExternalID string  `json:"externalId,omitempty"`
	Action     Action  `json:"action,omitempty"`
	TargetID   string  `json:"targetId,omitempty"`

	Member       *Member       `json:"member,omitempty"`
	Event        *Event        `json:"event,omitempty"`
	Registration *Registration `json:"registration,omitempty"`

	// Errors are row-level validation and reconciliation failures. A
	// non-empty list forces the record to be skipped.
	Errors []string `json:"errors,omitempty"`

	// Warnings are advisory findings (e.g. unmapped tier labels) that do
	// not block the record.
	Warnings []string `json:"warnings,omitempty"`
}

// AddError appends a row-level error to the record.
func (r *ImportRecord) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning appends an advisory finding to the record.
func (r *ImportRecord) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Valid reports whether the record has no accumulated errors.
func (r *ImportRecord) Valid() bool {
	return len(r.Errors) == 0
}
