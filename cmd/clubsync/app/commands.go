package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkgrove/clubsync/internal/config"
	"github.com/parkgrove/clubsync/internal/runner"
	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/logging"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/report"
	"github.com/parkgrove/clubsync/pkg/stages"
)

// NewMigrateCommand creates the single-pass migration command.
func (a *App) NewMigrateCommand() *cobra.Command {
	var (
		dryRun bool
		runID  string
	)

	cmd := &cobra.Command{
		Use:   "migrate <run-config>",
		Short: "Run a single-pass migration",
		Long: `Migrate decodes the configured export files, reconciles every record
against the target platform, and writes the run report, summary, and
ID-mapping artifacts.

With --dry-run every decision is made against real target state, but
writes are replaced with local placeholders and nothing is mutated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRunner(args[0], dryRun, runID)
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), a.logger)
			rep, _, err := r.Migrate(ctx)
			if err != nil {
				return err
			}

			a.printCounts(cmd, rep)
			if rep.Errored() {
				return fmt.Errorf("migration completed with %d row errors", len(rep.RowErrors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview every decision without writing to the target")
	cmd.Flags().StringVar(&runID, "run-id", "", "pin the run id instead of generating one")
	return cmd
}

// NewStagesCommand creates the staged-pipeline command group.
func (a *App) NewStagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Run or inspect the staged migration pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(a.newStagesRunCommand())
	cmd.AddCommand(a.newStagesListCommand())
	return cmd
}

func (a *App) newStagesRunCommand() *cobra.Command {
	var (
		dryRun bool
		runID  string
		from   string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "run <run-config>",
		Short: "Execute a stage range of the migration pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRunner(args[0], dryRun, runID)
			if err != nil {
				return err
			}
			o, err := r.Orchestrator()
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), a.logger)
			sum, err := o.Run(ctx, r.StageContext(), stages.Stage(from), stages.Stage(to))
			if err != nil {
				return err
			}

			for _, stage := range stages.Order {
				res, ok := sum.Results[stage]
				if !ok {
					continue
				}
				cmd.Printf("%-10s %s\n", stage, res.Status)
			}
			cmd.Printf("overall: %s, cutover ready: %t\n", sum.Overall, sum.CutoverReady)

			if sum.Overall == stages.StatusFail {
				return stageFailure(sum)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview every decision without writing to the target")
	cmd.Flags().StringVar(&runID, "run-id", "", "pin the run id instead of generating one")
	cmd.Flags().StringVar(&from, "from", string(stages.StageExtract), "first stage to execute")
	cmd.Flags().StringVar(&to, "to", string(stages.StageCutover), "last stage to execute")
	return cmd
}

func (a *App) newStagesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipeline stages in execution order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, stage := range stages.Order {
				cmd.Println(stage)
			}
			return nil
		},
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("clubsync %s (commit %s, built %s)\n", a.version, a.commit, a.date)
			return nil
		},
	}
}

// stageFailure reports the first failed stage in pipeline order.
func stageFailure(sum *stages.Summary) error {
	for _, stage := range stages.Order {
		res, ok := sum.Results[stage]
		if ok && res.Status == stages.StatusFail {
			return errors.NewStageError(string(stage), res.Error, nil)
		}
	}
	return errors.NewStageError("pipeline", "no stage result recorded", nil)
}

// newRunner assembles a runner from a run-config path and mode flags.
func (a *App) newRunner(configPath string, dryRun bool, runID string) (*runner.Runner, error) {
	cfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return nil, err
	}

	client, err := a.TargetClient(cfg.Target.BaseURL, cfg.Target.AuthHeader)
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithDryRun(dryRun),
		runner.WithLookups(config.NewFlags(nil), config.NewPolicies(nil)),
	}
	if runID != "" {
		opts = append(opts, runner.WithRunID(runID))
	}
	return runner.New(cfg, client, opts...), nil
}

// printCounts prints the final per-entity counts, the only output the
// exit-code decision consumes.
func (a *App) printCounts(cmd *cobra.Command, rep *report.RunReport) {
	for _, entity := range records.Entities {
		er, ok := rep.Entities[entity]
		if !ok {
			continue
		}
		cmd.Printf("%-14s %s\n", entity+"s:", er.Counts)
	}
}
