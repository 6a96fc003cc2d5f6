package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkgrove/clubsync/pkg/logging"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/target"
)

func memberRec(row int, externalID, email, first, last string) *records.ImportRecord {
	return &records.ImportRecord{
		Entity:     records.EntityMember,
		Row:        row,
		ExternalID: externalID,
		Member:     &records.Member{FirstName: first, LastName: last, Email: email},
	}
}

func eventRec(row int, externalID, title string, start time.Time) *records.ImportRecord {
	return &records.ImportRecord{
		Entity:     records.EntityEvent,
		Row:        row,
		ExternalID: externalID,
		Event:      &records.Event{Title: title, Start: start},
	}
}

func regRec(row int, externalID, memberExt, eventExt string) *records.ImportRecord {
	return &records.ImportRecord{
		Entity:     records.EntityRegistration,
		Row:        row,
		ExternalID: externalID,
		Registration: &records.Registration{
			MemberExternalID: memberExt,
			EventExternalID:  eventExt,
		},
	}
}

func newEngine(t *testing.T, client target.Client, policies Policies) *Engine {
	t.Helper()
	e, err := New(client, WithPolicies(policies))
	require.NoError(t, err)
	return e
}

func TestMemberCreateAndConflictSkip(t *testing.T) {
	mem := target.NewMemory()
	existing := mem.SeedMember("known@x.com")

	e := newEngine(t, mem, Policies{Member: PolicySkip})
	out, err := e.Run(context.Background(), []*records.ImportRecord{
		memberRec(2, "ext-1", "new@x.com", "Ada", "Lovelace"),
		memberRec(3, "ext-2", "Known@X.com", "Alan", "Turing"),
	})
	require.NoError(t, err)

	c := out.Counts[records.EntityMember]
	assert.Equal(t, Counts{Parsed: 2, Created: 1, Skipped: 1}, c)
	assert.True(t, c.Consistent())

	id, ok := out.MemberIDs.Resolve("ext-2")
	require.True(t, ok)
	assert.Equal(t, existing, id, "skip keeps the existing target id")
}

func TestMemberConflictUpdate(t *testing.T) {
	mem := target.NewMemory()
	existing := mem.SeedMember("known@x.com")

	e := newEngine(t, mem, Policies{Member: PolicyUpdate})
	rec := memberRec(2, "ext-1", "known@x.com", "Ada", "Lovelace")
	out, err := e.Run(context.Background(), []*records.ImportRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, records.ActionUpdate, rec.Action)
	assert.Equal(t, existing, rec.TargetID)
	assert.Equal(t, Counts{Parsed: 1, Updated: 1}, out.Counts[records.EntityMember])
}

func TestValidationErrorSkipsWithoutTargetContact(t *testing.T) {
	mem := target.NewMemory()
	e := newEngine(t, mem, Policies{})

	rec := memberRec(2, "ext-1", "a@x.com", "", "Lee")
	rec.AddError("Missing firstName")

	out, err := e.Run(context.Background(), []*records.ImportRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, records.ActionSkip, rec.Action)
	assert.Empty(t, rec.TargetID)
	assert.Empty(t, mem.Members, "no storage contact for invalid records")
	assert.Equal(t, Counts{Parsed: 1, Errored: 1}, out.Counts[records.EntityMember])

	_, ok := out.MemberIDs.Resolve("ext-1")
	assert.False(t, ok, "blocked records contribute no association")
}

func TestAtMostOneCreatePerIdentity(t *testing.T) {
	mem := target.NewMemory()
	e := newEngine(t, mem, Policies{Member: PolicyUpdate})

	r1 := memberRec(2, "ext-1", "dup@x.com", "Ada", "Lovelace")
	r2 := memberRec(3, "ext-2", "dup@x.com", "Ada", "Byron")
	out, err := e.Run(context.Background(), []*records.ImportRecord{r1, r2})
	require.NoError(t, err)

	assert.Equal(t, records.ActionCreate, r1.Action)
	assert.Equal(t, records.ActionUpdate, r2.Action, "second row observes the first create")
	assert.Equal(t, r1.TargetID, r2.TargetID)
	require.Len(t, mem.Members, 1)

	// Two distinct external ids landed on one target id; both associations
	// exist so the duplicate surfaces in the ID-mapping report.
	id1, _ := out.MemberIDs.Resolve("ext-1")
	id2, _ := out.MemberIDs.Resolve("ext-2")
	assert.Equal(t, id1, id2)
}

func TestEventMatchAlwaysSkips(t *testing.T) {
	start := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)
	mem := target.NewMemory()
	existing := mem.SeedEvent("Gala", start)

	e := newEngine(t, mem, Policies{})
	rec := eventRec(2, "ev-1", "gala", start.Add(30*time.Minute))
	out, err := e.Run(context.Background(), []*records.ImportRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, records.ActionSkip, rec.Action, "events have no update path")
	assert.Equal(t, existing, rec.TargetID)
	assert.Equal(t, Counts{Parsed: 1, Skipped: 1}, out.Counts[records.EntityEvent])
}

func TestEventInRunDeduplication(t *testing.T) {
	start := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)
	mem := target.NewMemory()

	e := newEngine(t, mem, Policies{})
	r1 := eventRec(2, "ev-1", "Gala", start)
	r2 := eventRec(3, "ev-2", "Gala", start.Add(15*time.Minute))
	out, err := e.Run(context.Background(), []*records.ImportRecord{r1, r2})
	require.NoError(t, err)

	assert.Equal(t, records.ActionCreate, r1.Action)
	assert.Equal(t, records.ActionSkip, r2.Action, "identical key in the same run is a skip, not a double-create")
	require.Len(t, mem.Events, 1)
	assert.Equal(t, Counts{Parsed: 2, Created: 1, Skipped: 1}, out.Counts[records.EntityEvent])
}

func TestRegistrationResolvesReferences(t *testing.T) {
	start := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)
	mem := target.NewMemory()
	e := newEngine(t, mem, Policies{})

	recs := []*records.ImportRecord{
		memberRec(2, "m-ext", "ada@x.com", "Ada", "Lovelace"),
		eventRec(2, "e-ext", "Gala", start),
		regRec(2, "r-ext", "m-ext", "e-ext"),
	}
	out, err := e.Run(context.Background(), recs)
	require.NoError(t, err)

	reg := recs[2]
	assert.Equal(t, records.ActionCreate, reg.Action)
	assert.NotEmpty(t, reg.TargetID)
	assert.Equal(t, Counts{Parsed: 1, Created: 1}, out.Counts[records.EntityRegistration])
	require.Len(t, mem.Registrations, 1)
}

func TestRegistrationDanglingReferenceSkips(t *testing.T) {
	mem := target.NewMemory()
	e := newEngine(t, mem, Policies{})

	reg := regRec(2, "r-ext", "ghost-member", "ghost-event")
	out, err := e.Run(context.Background(), []*records.ImportRecord{reg})
	require.NoError(t, err)

	assert.Equal(t, records.ActionSkip, reg.Action)
	assert.Empty(t, mem.Registrations, "never create with a dangling reference")
	assert.Contains(t, reg.Errors[0], `"ghost-member"`, "error names the missing id")
	assert.Equal(t, Counts{Parsed: 1, Errored: 1}, out.Counts[records.EntityRegistration])
}

func TestRegistrationExistingMatch(t *testing.T) {
	start := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)
	mem := target.NewMemory()
	memberID := mem.SeedMember("ada@x.com")
	eventID := mem.SeedEvent("Gala", start)
	mem.Registrations[records.RegistrationKey(eventID, memberID)] = "reg-999"

	e := newEngine(t, mem, Policies{Registration: PolicyUpdate})
	recs := []*records.ImportRecord{
		memberRec(2, "m-ext", "ada@x.com", "Ada", "Lovelace"),
		eventRec(2, "e-ext", "Gala", start),
		regRec(2, "r-ext", "m-ext", "e-ext"),
	}
	_, err := e.Run(context.Background(), recs)
	require.NoError(t, err)

	reg := recs[2]
	assert.Equal(t, records.ActionUpdate, reg.Action)
	assert.Equal(t, "reg-999", reg.TargetID)
}

func TestStorageFaultIsolatesRecord(t *testing.T) {
	mem := target.NewMemory()
	mem.FailOn = map[string]error{"create-member": assert.AnError}

	e := newEngine(t, mem, Policies{})
	r1 := memberRec(2, "ext-1", "a@x.com", "Ada", "Lovelace")

	out, err := e.Run(context.Background(), []*records.ImportRecord{r1})
	require.NoError(t, err, "a single-record fault must not abort the run")

	assert.Equal(t, records.ActionSkip, r1.Action)
	require.NotEmpty(t, r1.Errors)
	assert.Contains(t, r1.Errors[0], "storage:")
	assert.Equal(t, Counts{Parsed: 1, Errored: 1}, out.Counts[records.EntityMember])
}

func TestPreloadFailureAbortsRun(t *testing.T) {
	mem := target.NewMemory()
	mem.FailOn = map[string]error{"list-members": assert.AnError}

	e := newEngine(t, mem, Policies{})
	_, err := e.Run(context.Background(), nil)
	require.Error(t, err, "systemic storage faults abort the run")
}

func TestStatusNormalization(t *testing.T) {
	mem := target.NewMemory()
	mem.Statuses = []target.StatusRef{{Code: "active", Label: "Active Member"}}

	e := newEngine(t, mem, Policies{})
	rec := memberRec(2, "", "a@x.com", "Ada", "Lovelace")
	rec.Member.Status = "ACTIVE MEMBER"

	_, err := e.Run(context.Background(), []*records.ImportRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, "active", rec.Member.Status)
}

func TestDryRunIdempotence(t *testing.T) {
	start := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)

	runOnce := func() *Outcome {
		mem := target.NewMemory()
		mem.SeedMember("known@x.com")

		e := newEngine(t, target.DryRun(mem), Policies{Member: PolicySkip})
		recs := []*records.ImportRecord{
			memberRec(2, "m-1", "new@x.com", "Ada", "Lovelace"),
			memberRec(3, "m-2", "known@x.com", "Alan", "Turing"),
			eventRec(2, "e-1", "Gala", start),
			regRec(2, "r-1", "m-1", "e-1"),
		}
		out, err := e.Run(context.Background(), recs)
		require.NoError(t, err)
		return out
	}

	first := runOnce()
	second := runOnce()
	assert.Equal(t, first.Counts, second.Counts, "two dry runs over identical state classify identically")
}

func TestInvalidPolicyRejected(t *testing.T) {
	_, err := New(target.NewMemory(), WithPolicies(Policies{Member: Policy("merge")}))
	assert.Error(t, err)
}

func TestRunLogsCarryEntityField(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	e := newEngine(t, target.NewMemory(), Policies{})
	_, err := e.Run(ctx, []*records.ImportRecord{
		memberRec(2, "ext-1", "ada@x.com", "Ada", "Lovelace"),
	})
	require.NoError(t, err)

	assert.True(t, tl.Contains(`"entity":"member"`))
}
