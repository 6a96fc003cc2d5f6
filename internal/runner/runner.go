// Package runner assembles a migration run: it decodes the input files,
// transforms rows into records, reconciles them against the target, and
// persists the run artifacts. It also provides the built-in stage
// executors for staged mode.
package runner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parkgrove/clubsync/internal/config"
	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/logging"
	"github.com/parkgrove/clubsync/pkg/mapping"
	"github.com/parkgrove/clubsync/pkg/reconcile"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/report"
	"github.com/parkgrove/clubsync/pkg/tabular"
	"github.com/parkgrove/clubsync/pkg/target"
	"github.com/parkgrove/clubsync/pkg/tiers"
)

// Runner executes one migration run against one target environment. A
// runner is single-use; its record state belongs to exactly one run.
type Runner struct {
	cfg      *config.RunConfig
	client   target.Client
	flags    *config.Flags
	policies *config.Policies
	dryRun   bool
	runID    string

	rows    map[records.Entity][]tabular.Row
	recs    map[records.Entity][]*records.ImportRecord
	outcome *reconcile.Outcome
	rep     *report.RunReport
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun routes every write through the dry-run decorator, so the
// target is never mutated.
func WithDryRun(dry bool) Option {
	return func(r *Runner) { r.dryRun = dry }
}

// WithRunID pins the run id instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithLookups injects the feature-flag and policy lookups.
func WithLookups(flags *config.Flags, policies *config.Policies) Option {
	return func(r *Runner) {
		r.flags = flags
		r.policies = policies
	}
}

// New creates a runner for a run configuration and a storage client.
func New(cfg *config.RunConfig, client target.Client, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		client: client,
		recs:   make(map[records.Entity][]*records.ImportRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if r.flags == nil {
		r.flags = config.NewFlags(nil)
	}
	if r.policies == nil {
		r.policies = config.NewPolicies(nil)
	}
	return r
}

// RunID returns the run's identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// DryRun reports whether the run writes through the dry-run decorator.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Report returns the run report, nil before reconciliation ran.
func (r *Runner) Report() *report.RunReport {
	return r.rep
}

// ArtifactDir returns the per-run artifact directory.
func (r *Runner) ArtifactDir() string {
	return filepath.Join(r.cfg.ArtifactDir, r.runID)
}

// Migrate performs the single-pass run: extract, transform, reconcile,
// then persist the report and ID-mapping artifacts. A systemic storage
// fault aborts reconciliation but still emits a best-effort report.
func (r *Runner) Migrate(ctx context.Context) (*report.RunReport, *report.Artifacts, error) {
	ctx = logging.WithRunID(ctx, r.runID)
	log := logging.FromContext(ctx)
	log.Info().Bool("dry_run", r.dryRun).Str("org_id", r.cfg.OrgID).Msg("starting migration run")

	if err := r.Extract(ctx); err != nil {
		return nil, nil, err
	}

	resolver, err := r.buildResolver(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := r.Transform(ctx, resolver); err != nil {
		return nil, nil, err
	}

	runErr := r.Reconcile(ctx)
	rep := r.buildReport(runErr)
	artifacts, saveErr := rep.Save(r.ArtifactDir())
	if saveErr != nil {
		return rep, nil, errors.Join(runErr, saveErr)
	}
	log.Info().Str("report", artifacts.Report).Msg("run artifacts written")
	return rep, artifacts, runErr
}

// Extract decodes every configured entity file into rows and keeps them
// as raw records for transformation.
func (r *Runner) Extract(ctx context.Context) error {
	ctx = logging.WithOperation(ctx, "extract")
	r.rows = make(map[records.Entity][]tabular.Row)
	dec := r.decoder()

	for _, entity := range records.Entities {
		in, ok := r.cfg.Entities[entity]
		if !ok {
			continue
		}
		f, err := os.Open(in.File)
		if err != nil {
			return errors.WrapIO("open", in.File, err)
		}
		rows, err := dec.Decode(f)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return errors.WrapIO("close", in.File, closeErr)
		}
		r.rows[entity] = rows
		logging.FromContext(ctx).Info().
			Str("entity", string(entity)).
			Str("file", in.File).
			Int("rows", len(rows)).
			Msg("extracted input file")
	}
	return nil
}

// Transform maps the extracted rows into import records.
func (r *Runner) Transform(ctx context.Context, resolver *tiers.Resolver) error {
	mappings, err := mapping.LoadMappings(r.cfg.Mappings)
	if err != nil {
		return err
	}
	tr, err := mapping.NewTransformer(mappings, mapping.WithTierResolver(resolver))
	if err != nil {
		return err
	}

	for _, entity := range records.Entities {
		rows, ok := r.rows[entity]
		if !ok {
			continue
		}
		recs, err := tr.Records(entity, rows)
		if err != nil {
			return err
		}
		r.recs[entity] = recs
	}
	return nil
}

// Reconcile runs the engine over every transformed record.
func (r *Runner) Reconcile(ctx context.Context) error {
	client := r.client
	if r.dryRun {
		client = target.DryRun(client)
	}

	engine, err := reconcile.New(client, reconcile.WithPolicies(r.cfg.Policies()))
	if err != nil {
		return err
	}

	var all []*records.ImportRecord
	for _, entity := range records.Entities {
		all = append(all, r.recs[entity]...)
	}

	r.outcome, err = engine.Run(ctx, all)
	return err
}

// buildResolver assembles the tier resolver for the run. With the flag
// off the resolver is disabled. An enabled but incomplete tier
// configuration aborts a live run; a dry run logs the problem and
// continues, so the operator sees realistic counts before fixing it.
func (r *Runner) buildResolver(ctx context.Context) (*tiers.Resolver, error) {
	if !r.flags.IsEnabled(config.FlagTierMapping) {
		return tiers.Disabled(), nil
	}

	policy, ok := config.TierPolicy(r.policies, r.cfg.OrgID)
	if !ok {
		err := errors.NewConfigError("tiers", "tier mapping enabled but no policy configured for org "+r.cfg.OrgID, nil)
		if !r.dryRun {
			return nil, err
		}
		logging.FromContext(ctx).Warn().Err(err).Msg("continuing dry run without tier mappings")
		return tiers.Disabled(), nil
	}

	targetTiers, err := r.client.ListTiers(ctx)
	if err != nil {
		return nil, errors.WrapResource("list", "tiers", "", err)
	}
	codes := make(map[string]string, len(targetTiers))
	for _, tier := range targetTiers {
		codes[tier.Code] = tier.ID
	}

	resolver := tiers.New(policy, codes)
	if err := resolver.Validate(); err != nil {
		err = errors.WrapValidation("tiers", err)
		if !r.dryRun {
			return nil, err
		}
		logging.FromContext(ctx).Warn().Err(err).Msg("continuing dry run with incomplete tier mappings")
	}
	return resolver, nil
}

// buildReport assembles the run report from the reconcile outcome. With
// a nil outcome (systemic fault before or during reconciliation) the
// report still carries whatever was transformed, plus the fault.
func (r *Runner) buildReport(runErr error) *report.RunReport {
	rep := report.New(r.runID, r.dryRun)
	ids := map[records.Entity]map[string][]string{}
	if r.outcome != nil {
		ids[records.EntityMember] = r.outcome.MemberIDs.Data()
		ids[records.EntityEvent] = r.outcome.EventIDs.Data()
		ids[records.EntityRegistration] = r.outcome.RegistrationIDs.Data()
	}

	for _, entity := range records.Entities {
		recs, ok := r.recs[entity]
		if !ok {
			continue
		}
		var counts reconcile.Counts
		if r.outcome != nil {
			counts = r.outcome.Counts[entity]
		}
		rep.AddEntity(entity, counts, recs, ids[entity])
	}
	if runErr != nil {
		rep.AddError(runErr.Error())
	}
	rep.Finalize()
	r.rep = rep
	return rep
}

func (r *Runner) decoder() *tabular.Decoder {
	if r.cfg.Delimiter != "" {
		return tabular.NewDecoder(tabular.WithDelimiter([]rune(r.cfg.Delimiter)[0]))
	}
	return tabular.NewDecoder()
}
