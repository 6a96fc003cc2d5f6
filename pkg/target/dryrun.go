package target

import (
	"context"
	"fmt"
	"sync"

	"github.com/parkgrove/clubsync/pkg/records"
)

// dryRun decorates a Client so every read hits real storage while every
// write is swallowed and answered with a locally generated placeholder id.
// Reconciliation decisions stay realistic; the target is never mutated.
// Placeholder ids are deterministic per run so two dry runs over identical
// input produce identical reports.
type dryRun struct {
	reads Client

	mu  sync.Mutex
	seq map[string]int
}

// DryRun wraps a client for dry-run execution.
func DryRun(reads Client) Client {
	return &dryRun{reads: reads, seq: make(map[string]int)}
}

// placeholder fabricates the next id for an entity kind.
func (d *dryRun) placeholder(entity string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq[entity]++
	return fmt.Sprintf("dry-%s-%04d", entity, d.seq[entity])
}

func (d *dryRun) ListStatuses(ctx context.Context) ([]StatusRef, error) {
	return d.reads.ListStatuses(ctx)
}

func (d *dryRun) ListMembers(ctx context.Context) ([]MemberRef, error) {
	return d.reads.ListMembers(ctx)
}

func (d *dryRun) ListEvents(ctx context.Context) ([]EventRef, error) {
	return d.reads.ListEvents(ctx)
}

func (d *dryRun) ListTiers(ctx context.Context) ([]TierRef, error) {
	return d.reads.ListTiers(ctx)
}

func (d *dryRun) FindRegistration(ctx context.Context, eventID, memberID string) (string, bool, error) {
	return d.reads.FindRegistration(ctx, eventID, memberID)
}

func (d *dryRun) CreateMember(_ context.Context, _ *records.Member) (string, error) {
	return d.placeholder("member"), nil
}

func (d *dryRun) UpdateMember(_ context.Context, _ string, _ *records.Member) error {
	return nil
}

func (d *dryRun) CreateEvent(_ context.Context, _ *records.Event) (string, error) {
	return d.placeholder("event"), nil
}

func (d *dryRun) CreateRegistration(_ context.Context, _ RegistrationWrite) (string, error) {
	return d.placeholder("registration"), nil
}

func (d *dryRun) UpdateRegistration(_ context.Context, _ string, _ RegistrationWrite) error {
	return nil
}
