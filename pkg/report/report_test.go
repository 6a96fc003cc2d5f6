package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkgrove/clubsync/pkg/reconcile"
	"github.com/parkgrove/clubsync/pkg/records"
)

func sampleReport() *RunReport {
	r := New("run-1", true)
	recs := []*records.ImportRecord{
		{Entity: records.EntityMember, Row: 2, ExternalID: "m-1", Action: records.ActionCreate, TargetID: "dry-member-0001"},
		{Entity: records.EntityMember, Row: 3, ExternalID: "m-2", Action: records.ActionSkip, Errors: []string{"Missing email"}},
	}
	r.AddEntity(records.EntityMember, reconcile.Counts{Parsed: 2, Created: 1, Errored: 1}, recs,
		map[string][]string{"m-1": {"dry-member-0001"}})
	return r
}

func TestAddEntityFlattensRowErrors(t *testing.T) {
	r := sampleReport()
	require.Len(t, r.RowErrors, 1)
	assert.Equal(t, RowError{
		Entity:     records.EntityMember,
		Row:        3,
		ExternalID: "m-2",
		Message:    "Missing email",
	}, r.RowErrors[0])
	assert.True(t, r.Errored())
}

func TestFinalizeSealsReport(t *testing.T) {
	r := sampleReport()
	r.Finalize()
	completed := r.CompletedAt

	r.Finalize()
	assert.Equal(t, completed, r.CompletedAt, "first completion time wins")

	r.AddEntity(records.EntityEvent, reconcile.Counts{Parsed: 1}, nil, nil)
	r.AddError("late")
	assert.NotContains(t, r.Entities, records.EntityEvent)
	assert.Empty(t, r.Errors)
}

func TestTrimDropsRecordsAndCapsErrors(t *testing.T) {
	r := New("run-1", false)
	var recs []*records.ImportRecord
	for i := 0; i < MaxSummaryRowErrors+10; i++ {
		recs = append(recs, &records.ImportRecord{
			Entity: records.EntityMember,
			Row:    i + 2,
			Errors: []string{fmt.Sprintf("Missing email on row %d", i+2)},
		})
	}
	counts := reconcile.Counts{Parsed: len(recs), Errored: len(recs)}
	r.AddEntity(records.EntityMember, counts, recs, nil)

	s := r.Trim()
	assert.True(t, s.Summary)
	assert.Nil(t, s.Entities[records.EntityMember].Records)
	assert.Equal(t, counts, s.Entities[records.EntityMember].Counts)
	assert.Len(t, s.RowErrors, MaxSummaryRowErrors)

	assert.Len(t, r.RowErrors, MaxSummaryRowErrors+10, "trim leaves the full report intact")
	assert.NotNil(t, r.Entities[records.EntityMember].Records)
}

func TestSaveWritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts", "run-1")
	r := sampleReport()

	_, err := r.Save(dir)
	require.Error(t, err, "unfinalized reports are not persisted")

	r.Finalize()
	a, err := r.Save(dir)
	require.NoError(t, err)

	for _, path := range []string{a.Report, a.Summary, a.IDMap} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, json.Valid(data), "artifact %s is valid JSON", path)
	}
	assert.Contains(t, filepath.Base(a.IDMap), "id-map-dry-run-")
	assert.NotContains(t, filepath.Base(a.Report), ":", "timestamp separators are filesystem safe")
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()
	r.Finalize()
	a, err := r.Save(dir)
	require.NoError(t, err)

	loaded, err := Load(a.Report)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, loaded.RunID)
	assert.Equal(t, r.Counts(records.EntityMember), loaded.Counts(records.EntityMember))
	assert.True(t, loaded.Finalized())

	// The ID-mapping pass is derivable from the stored report alone.
	im := loaded.IDMap()
	require.Contains(t, im.Entities, records.EntityMember)
	assert.Equal(t, []string{"m-2"}, im.Entities[records.EntityMember].Missing)
}
