package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkgrove/clubsync/internal/config"
	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/reconcile"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/stages"
	"github.com/parkgrove/clubsync/pkg/target"
)

const mappingsYAML = `
member:
  fields:
    - {target: externalId, column: id}
    - {target: firstName, column: first_name, required: true}
    - {target: lastName, column: last_name, required: true}
    - {target: email, column: email, required: true}
    - {target: tierLabel, column: tier}
event:
  fields:
    - {target: externalId, column: id}
    - {target: title, column: title, required: true}
    - {target: start, column: starts_at, required: true}
registration:
  fields:
    - {target: externalId, column: id}
    - {target: memberExternalId, column: member_id, required: true}
    - {target: eventExternalId, column: event_id, required: true}
`

const (
	membersCSV = "id,first_name,last_name,email,tier\n" +
		"m-1,Ada,Lovelace,ada@x.com,Gold\n" +
		"m-2,,Lee,lee@x.com,\n"
	eventsCSV = "id,title,starts_at\n" +
		"e-1,Gala,2025-04-01T18:00:00Z\n"
	regsCSV = "id,member_id,event_id\n" +
		"r-1,m-1,e-1\n" +
		"r-2,m-2,e-1\n"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testRunConfig(t *testing.T) *config.RunConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.RunConfig{
		OrgID:       "org-7",
		ArtifactDir: filepath.Join(dir, "artifacts"),
		Mappings:    writeTestFile(t, dir, "mappings.yaml", mappingsYAML),
		Entities: map[records.Entity]config.EntityInput{
			records.EntityMember:       {File: writeTestFile(t, dir, "members.csv", membersCSV)},
			records.EntityEvent:        {File: writeTestFile(t, dir, "events.csv", eventsCSV)},
			records.EntityRegistration: {File: writeTestFile(t, dir, "regs.csv", regsCSV)},
		},
	}
}

func TestMigrateDryRun(t *testing.T) {
	mem := target.NewMemory()
	r := New(testRunConfig(t), mem, WithDryRun(true), WithRunID("run-1"))

	rep, artifacts, err := r.Migrate(context.Background())
	require.NoError(t, err)

	// Row m-2 is missing first_name; its registration r-2 dangles.
	assert.Equal(t, reconcile.Counts{Parsed: 2, Created: 1, Errored: 1}, rep.Counts(records.EntityMember))
	assert.Equal(t, reconcile.Counts{Parsed: 1, Created: 1}, rep.Counts(records.EntityEvent))
	assert.Equal(t, reconcile.Counts{Parsed: 2, Created: 1, Errored: 1}, rep.Counts(records.EntityRegistration))

	assert.Empty(t, mem.Members, "dry run never mutates the target")
	assert.Empty(t, mem.Events)
	assert.Empty(t, mem.Registrations)

	for _, path := range []string{artifacts.Report, artifacts.Summary, artifacts.IDMap} {
		_, err := os.Stat(path)
		assert.NoError(t, err, "artifact %s exists", path)
	}
	assert.Contains(t, artifacts.Report, filepath.Join("artifacts", "run-1"))
}

func TestMigrateLive(t *testing.T) {
	mem := target.NewMemory()
	r := New(testRunConfig(t), mem)

	rep, _, err := r.Migrate(context.Background())
	require.NoError(t, err)

	assert.Len(t, mem.Members, 1)
	assert.Len(t, mem.Events, 1)
	assert.Len(t, mem.Registrations, 1)
	assert.True(t, rep.Finalized())
}

func TestMigrateTierFlagLive(t *testing.T) {
	v := viper.New()
	v.Set("flags.tier_mapping", true)
	lookups := func(r *Runner) {
		WithLookups(config.NewFlags(v), config.NewPolicies(v))(r)
	}

	mem := target.NewMemory()
	r := New(testRunConfig(t), mem, lookups)
	_, _, err := r.Migrate(context.Background())
	require.Error(t, err, "enabled but unconfigured tier mapping aborts a live run")

	dry := New(testRunConfig(t), mem, lookups, WithDryRun(true))
	_, _, err = dry.Migrate(context.Background())
	require.NoError(t, err, "a dry run continues without tier mappings")
}

func TestMigrateTierValidationAbortsLive(t *testing.T) {
	v := viper.New()
	v.Set("flags.tier_mapping", true)
	v.Set("policies.tiers.labels", map[string]any{"Gold": "gold"})

	// No tiers seeded: the "gold" code has no target id.
	mem := target.NewMemory()

	r := New(testRunConfig(t), mem, WithLookups(config.NewFlags(v), config.NewPolicies(v)))
	_, _, err := r.Migrate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestMigrateSaveFailureKeepsRunFault(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.ArtifactDir = writeTestFile(t, t.TempDir(), "blocked", "not a directory")

	mem := target.NewMemory()
	mem.FailOn = map[string]error{"list-members": errors.New("target down")}

	_, _, err := New(cfg, mem, WithRunID("run-9")).Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target down", "reconciliation fault survives the save failure")
	assert.Contains(t, err.Error(), "run-9")
}

func TestMigrateTierResolution(t *testing.T) {
	v := viper.New()
	v.Set("flags.tier_mapping", true)
	v.Set("policies.tiers.labels", map[string]any{"Gold": "gold"})

	mem := target.NewMemory()
	mem.Tiers = []target.TierRef{{ID: "tier-1", Code: "gold"}}

	r := New(testRunConfig(t), mem, WithLookups(config.NewFlags(v), config.NewPolicies(v)))
	rep, _, err := r.Migrate(context.Background())
	require.NoError(t, err)

	var created *records.ImportRecord
	for _, rec := range rep.Entities[records.EntityMember].Records {
		if rec.Action == records.ActionCreate {
			created = rec
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "tier-1", created.Member.TierID)
}

func TestStagedPipeline(t *testing.T) {
	mem := target.NewMemory()
	r := New(testRunConfig(t), mem, WithDryRun(true), WithRunID("run-2"))

	o, err := r.Orchestrator()
	require.NoError(t, err)

	sum, err := o.Run(context.Background(), r.StageContext(), stages.StageExtract, stages.StageVerify)
	require.NoError(t, err)

	assert.Equal(t, stages.StatusPass, sum.Overall)
	for _, stage := range []stages.Stage{stages.StageExtract, stages.StageNormalize, stages.StageSimulate, stages.StageLoad, stages.StageVerify} {
		assert.Equal(t, stages.StatusPass, sum.Results[stage].Status, "stage %s", stage)
	}

	path, ok := sum.Results[stages.StageVerify].Artifacts["id-map"]
	require.True(t, ok)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	assert.Empty(t, mem.Members, "staged dry run never mutates the target")
}

func TestStagedCutoverBlockedByErrors(t *testing.T) {
	mem := target.NewMemory()
	r := New(testRunConfig(t), mem, WithDryRun(true))

	o, err := r.Orchestrator()
	require.NoError(t, err)

	// The fixture data includes an invalid member row, so cutover must
	// refuse readiness.
	sum, err := o.Run(context.Background(), r.StageContext(), stages.StageExtract, stages.StageCutover)
	require.NoError(t, err)

	assert.Equal(t, stages.StatusFail, sum.Overall)
	assert.Equal(t, stages.StatusFail, sum.Results[stages.StageCutover].Status)
	assert.False(t, sum.CutoverReady)
}

func TestCutoverReadyOnCleanRun(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.RunConfig{
		OrgID:       "org-7",
		ArtifactDir: filepath.Join(dir, "artifacts"),
		Mappings:    writeTestFile(t, dir, "mappings.yaml", mappingsYAML),
		Entities: map[records.Entity]config.EntityInput{
			records.EntityMember: {File: writeTestFile(t, dir, "members.csv",
				"id,first_name,last_name,email,tier\nm-1,Ada,Lovelace,ada@x.com,\n")},
		},
	}

	mem := target.NewMemory()
	r := New(cfg, mem)

	o, err := r.Orchestrator()
	require.NoError(t, err)

	sum, err := o.Run(context.Background(), r.StageContext(), stages.StageExtract, stages.StageCutover)
	require.NoError(t, err)

	assert.Equal(t, stages.StatusPass, sum.Overall)
	assert.True(t, sum.CutoverReady)
	assert.Len(t, mem.Members, 1)
}

func TestMigrateMissingInputFile(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.Entities[records.EntityMember] = config.EntityInput{File: "does-not-exist.csv"}

	_, _, err := New(cfg, target.NewMemory()).Migrate(context.Background())
	require.Error(t, err)
}
