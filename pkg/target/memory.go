package target

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/records"
)

// Memory is an in-memory Client used by tests and by the verify stage's
// recount checks. Seed the exported slices before the run; writes mutate
// them. Set an entry in FailOn to force a storage fault for one operation
// name ("create-member", "update-member", "create-event",
// "create-registration", "update-registration", or a list operation).
type Memory struct {
	mu sync.Mutex

	Members       []MemberRef
	Events        []EventRef
	Tiers         []TierRef
	Statuses      []StatusRef
	Registrations map[string]string // RegistrationKey(event, member) -> id

	FailOn map[string]error

	nextID int
}

// NewMemory creates an empty in-memory client.
func NewMemory() *Memory {
	return &Memory{Registrations: make(map[string]string)}
}

func (m *Memory) fail(op string) error {
	if m.FailOn == nil {
		return nil
	}
	return m.FailOn[op]
}

func (m *Memory) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%03d", prefix, m.nextID)
}

// ListStatuses implements Client.
func (m *Memory) ListStatuses(_ context.Context) ([]StatusRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list-statuses"); err != nil {
		return nil, err
	}
	return append([]StatusRef(nil), m.Statuses...), nil
}

// ListMembers implements Client.
func (m *Memory) ListMembers(_ context.Context) ([]MemberRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list-members"); err != nil {
		return nil, err
	}
	return append([]MemberRef(nil), m.Members...), nil
}

// ListEvents implements Client.
func (m *Memory) ListEvents(_ context.Context) ([]EventRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list-events"); err != nil {
		return nil, err
	}
	return append([]EventRef(nil), m.Events...), nil
}

// ListTiers implements Client.
func (m *Memory) ListTiers(_ context.Context) ([]TierRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list-tiers"); err != nil {
		return nil, err
	}
	return append([]TierRef(nil), m.Tiers...), nil
}

// FindRegistration implements Client.
func (m *Memory) FindRegistration(_ context.Context, eventID, memberID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("find-registration"); err != nil {
		return "", false, err
	}
	id, ok := m.Registrations[records.RegistrationKey(eventID, memberID)]
	return id, ok, nil
}

// CreateMember implements Client.
func (m *Memory) CreateMember(_ context.Context, rec *records.Member) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create-member"); err != nil {
		return "", err
	}
	for _, ref := range m.Members {
		if records.MemberKey(ref.Email) == records.MemberKey(rec.Email) {
			return "", fmt.Errorf("member %s: %w", rec.Email, errors.ErrAlreadyExists)
		}
	}
	id := m.id("mem")
	m.Members = append(m.Members, MemberRef{ID: id, Email: rec.Email})
	return id, nil
}

// UpdateMember implements Client.
func (m *Memory) UpdateMember(_ context.Context, id string, _ *records.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update-member"); err != nil {
		return err
	}
	for _, ref := range m.Members {
		if ref.ID == id {
			return nil
		}
	}
	return errors.NewNotFoundError("member", id)
}

// CreateEvent implements Client.
func (m *Memory) CreateEvent(_ context.Context, rec *records.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create-event"); err != nil {
		return "", err
	}
	id := m.id("evt")
	m.Events = append(m.Events, EventRef{ID: id, Title: rec.Title, Start: rec.Start})
	return id, nil
}

// CreateRegistration implements Client.
func (m *Memory) CreateRegistration(_ context.Context, w RegistrationWrite) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create-registration"); err != nil {
		return "", err
	}
	key := records.RegistrationKey(w.EventID, w.MemberID)
	if _, ok := m.Registrations[key]; ok {
		return "", fmt.Errorf("registration %s: %w", key, errors.ErrAlreadyExists)
	}
	id := m.id("reg")
	m.Registrations[key] = id
	return id, nil
}

// UpdateRegistration implements Client.
func (m *Memory) UpdateRegistration(_ context.Context, id string, _ RegistrationWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update-registration"); err != nil {
		return err
	}
	for _, existing := range m.Registrations {
		if existing == id {
			return nil
		}
	}
	return errors.NewNotFoundError("registration", id)
}

// SeedMember adds an existing member and returns its id.
func (m *Memory) SeedMember(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id("mem")
	m.Members = append(m.Members, MemberRef{ID: id, Email: email})
	return id
}

// SeedEvent adds an existing event and returns its id.
func (m *Memory) SeedEvent(title string, start time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id("evt")
	m.Events = append(m.Events, EventRef{ID: id, Title: title, Start: start})
	return id
}
