package runner

import (
	"context"
	"fmt"

	"github.com/parkgrove/clubsync/pkg/logging"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/stages"
	"github.com/parkgrove/clubsync/pkg/tiers"
)

// Orchestrator builds a stage orchestrator with the built-in executors
// registered. The runner carries record state between stages; the stage
// context carries results and artifacts.
func (r *Runner) Orchestrator() (*stages.Orchestrator, error) {
	o := stages.NewOrchestrator()
	bindings := map[stages.Stage]stages.ExecutorFunc{
		stages.StageExtract:   r.stageExtract,
		stages.StageNormalize: r.stageNormalize,
		stages.StageSimulate:  r.stageSimulate,
		stages.StageLoad:      r.stageLoad,
		stages.StageVerify:    r.stageVerify,
		stages.StageSync:      r.stageSync,
		stages.StageCutover:   r.stageCutover,
	}
	for stage, exec := range bindings {
		if err := o.Register(stage, exec); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// StageContext seeds a stage context for this run.
func (r *Runner) StageContext() *stages.Context {
	return &stages.Context{
		RunID:  r.runID,
		OrgID:  r.cfg.OrgID,
		DryRun: r.dryRun,
		Config: r.cfg,
	}
}

// stageExtract decodes the configured input files.
func (r *Runner) stageExtract(ctx context.Context, _ *stages.Context) (*stages.Result, error) {
	res := &stages.Result{}
	if err := r.Extract(ctx); err != nil {
		return res.Fail("extract: %v", err), nil
	}
	for _, entity := range records.Entities {
		rows, ok := r.rows[entity]
		if !ok {
			continue
		}
		res.AddCheck("rows:"+string(entity), true, fmt.Sprintf("%d rows", len(rows)))
	}
	return res.Pass(), nil
}

// stageNormalize transforms rows into records and prechecks the tier
// configuration. Row-level validation problems are checks, not
// failures; an unusable tier configuration fails a live pipeline.
func (r *Runner) stageNormalize(ctx context.Context, _ *stages.Context) (*stages.Result, error) {
	res := &stages.Result{}

	resolver, err := r.buildResolver(ctx)
	if err != nil {
		return res.Fail("tier configuration: %v", err), nil
	}
	res.AddCheck("tiers", true, tierDetail(resolver))

	if err := r.Transform(ctx, resolver); err != nil {
		return res.Fail("transform: %v", err), nil
	}
	for _, entity := range records.Entities {
		recs, ok := r.recs[entity]
		if !ok {
			continue
		}
		invalid := 0
		for _, rec := range recs {
			if !rec.Valid() {
				invalid++
			}
		}
		res.AddCheck("valid:"+string(entity), invalid == 0,
			fmt.Sprintf("%d of %d records invalid", invalid, len(recs)))
	}
	return res.Pass(), nil
}

// stageSimulate reconciles through the dry-run decorator regardless of
// the run mode, so the operator previews counts before loading.
func (r *Runner) stageSimulate(ctx context.Context, _ *stages.Context) (*stages.Result, error) {
	sim := New(r.cfg, r.client,
		WithDryRun(true),
		WithRunID(r.runID+"-simulate"),
		WithLookups(r.flags, r.policies))
	sim.rows = r.rows
	sim.recs = cloneRecords(r.recs)

	res := &stages.Result{}
	if err := sim.Reconcile(ctx); err != nil {
		return res.Fail("simulate: %v", err), nil
	}
	for _, entity := range records.Entities {
		counts, ok := sim.outcome.Counts[entity]
		if !ok {
			continue
		}
		res.AddCheck("counts:"+string(entity), counts.Consistent(), counts.String())
	}
	return res.Pass(), nil
}

// stageLoad reconciles for real. A dry run keeps the decorator on, so a
// staged dry run still mutates nothing.
func (r *Runner) stageLoad(ctx context.Context, _ *stages.Context) (*stages.Result, error) {
	res := &stages.Result{}
	if err := r.Reconcile(ctx); err != nil {
		return res.Fail("load: %v", err), nil
	}
	for _, entity := range records.Entities {
		counts, ok := r.outcome.Counts[entity]
		if !ok {
			continue
		}
		res.AddCheck("counts:"+string(entity), counts.Consistent(), counts.String())
	}
	return res.Pass(), nil
}

// stageVerify recounts the loaded outcome and persists the run
// artifacts, including the ID-mapping report.
func (r *Runner) stageVerify(ctx context.Context, _ *stages.Context) (*stages.Result, error) {
	res := &stages.Result{}
	if r.outcome == nil {
		return res.Fail("nothing loaded, run the load stage first"), nil
	}

	consistent := true
	for entity, counts := range r.outcome.Counts {
		ok := counts.Consistent()
		consistent = consistent && ok
		res.AddCheck("recount:"+string(entity), ok, counts.String())
	}
	if !consistent {
		return res.Fail("entity counts do not reconcile"), nil
	}

	rep := r.buildReport(nil)
	artifacts, err := rep.Save(r.ArtifactDir())
	if err != nil {
		return res.Fail("persist artifacts: %v", err), nil
	}
	res.AddArtifact("report", artifacts.Report)
	res.AddArtifact("summary", artifacts.Summary)
	res.AddArtifact("id-map", artifacts.IDMap)
	logging.FromContext(ctx).Info().Str("report", artifacts.Report).Msg("run artifacts written")
	return res.Pass(), nil
}

// stageSync is a stub: real-time source synchronization is out of
// scope, but the stage participates so cutover readiness is reachable.
func (r *Runner) stageSync(_ context.Context, _ *stages.Context) (*stages.Result, error) {
	res := &stages.Result{}
	res.AddCheck("sync", true, "source sync not performed, one-shot migration")
	return res.Pass(), nil
}

// stageCutover gates readiness: the run must have loaded, every count
// must be consistent, and nothing may have errored.
func (r *Runner) stageCutover(_ context.Context, sctx *stages.Context) (*stages.Result, error) {
	res := &stages.Result{}
	if r.outcome == nil {
		return res.Fail("nothing loaded, run the load stage first"), nil
	}

	ready := true
	for entity, counts := range r.outcome.Counts {
		if counts.Errored > 0 {
			ready = false
			res.AddCheck("clean:"+string(entity), false, fmt.Sprintf("%d errored records", counts.Errored))
		} else {
			res.AddCheck("clean:"+string(entity), true, counts.String())
		}
	}
	if verify, ok := sctx.Results[stages.StageVerify]; !ok || verify.Status != stages.StatusPass {
		ready = false
		res.AddCheck("verified", false, "verify stage did not pass")
	} else {
		res.AddCheck("verified", true, "")
	}

	if !ready {
		return res.Fail("target not ready for cutover"), nil
	}
	return res.Pass(), nil
}

func tierDetail(resolver *tiers.Resolver) string {
	if !resolver.Enabled() {
		return "tier mapping disabled"
	}
	if missing := resolver.Missing(); len(missing) > 0 {
		return fmt.Sprintf("unmatched tier codes: %v", missing)
	}
	return "tier mapping complete"
}

func cloneRecords(src map[records.Entity][]*records.ImportRecord) map[records.Entity][]*records.ImportRecord {
	out := make(map[records.Entity][]*records.ImportRecord, len(src))
	for entity, recs := range src {
		cp := make([]*records.ImportRecord, len(recs))
		for i, rec := range recs {
			clone := *rec
			clone.Errors = append([]string(nil), rec.Errors...)
			clone.Warnings = append([]string(nil), rec.Warnings...)
			if rec.Member != nil {
				m := *rec.Member
				clone.Member = &m
			}
			if rec.Event != nil {
				e := *rec.Event
				clone.Event = &e
			}
			if rec.Registration != nil {
				g := *rec.Registration
				clone.Registration = &g
			}
			cp[i] = &clone
		}
		out[entity] = cp
	}
	return out
}
