// Package target defines the storage port for the destination platform:
// the Client interface the reconciliation engine writes through, plus the
// dry-run decorator and an in-memory implementation. The real HTTP client
// lives in internal/target.
package target

import (
	"context"
	"time"

	"github.com/parkgrove/clubsync/pkg/records"
)

// MemberRef is the identity slice of an existing target member.
type MemberRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// EventRef is the identity slice of an existing target event.
type EventRef struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
}

// TierRef is one target membership tier.
type TierRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// StatusRef is one target member-status code.
type StatusRef struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// RegistrationWrite is the payload for creating or updating a registration,
// expressed in resolved target ids.
type RegistrationWrite struct {
	EventID      string     `json:"eventId"`
	MemberID     string     `json:"memberId"`
	Status       string     `json:"status,omitempty"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
}

// Client is the storage port to the target platform. Read methods are used
// for the run-start preloads and point lookups; write methods perform one
// storage call per create/update decision. Implementations own their retry
// behavior; the engine never retries.
type Client interface {
	// ListStatuses returns the target's member-status codes.
	ListStatuses(ctx context.Context) ([]StatusRef, error)

	// ListMembers returns id+email for every existing member.
	ListMembers(ctx context.Context) ([]MemberRef, error)

	// ListEvents returns id+title+start for every existing event.
	ListEvents(ctx context.Context) ([]EventRef, error)

	// ListTiers returns the target's membership tiers.
	ListTiers(ctx context.Context) ([]TierRef, error)

	// FindRegistration looks up an existing registration by (event, member).
	// ok is false when none exists.
	FindRegistration(ctx context.Context, eventID, memberID string) (id string, ok bool, err error)

	// CreateMember creates a member and returns its new target id.
	CreateMember(ctx context.Context, m *records.Member) (string, error)

	// UpdateMember overwrites a member's mutable fields. The identity key
	// (email) is immutable.
	UpdateMember(ctx context.Context, id string, m *records.Member) error

	// CreateEvent creates an event and returns its new target id.
	CreateEvent(ctx context.Context, e *records.Event) (string, error)

	// CreateRegistration creates a registration and returns its new target id.
	CreateRegistration(ctx context.Context, w RegistrationWrite) (string, error)

	// UpdateRegistration overwrites a registration's status and timestamps.
	UpdateRegistration(ctx context.Context, id string, w RegistrationWrite) error
}
