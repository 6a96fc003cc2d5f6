package stages

import (
	"context"

	"github.com/parkgrove/clubsync/pkg/logging"
)

// Executor runs one pipeline stage. A nil error with a FAIL status and a
// non-nil error are treated the same: the stage failed and the pipeline
// halts. Executors report recoverable findings as checks, not errors.
type Executor interface {
	Execute(ctx context.Context, sctx *Context) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, sctx *Context) (*Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, sctx *Context) (*Result, error) {
	return f(ctx, sctx)
}

// Context carries the run state every stage sees. Results holds the
// outcomes of stages that already ran, so a later stage may read an
// earlier stage's artifacts. That map is the only inter-stage coupling.
type Context struct {
	RunID   string
	OrgID   string
	DryRun  bool
	Config  any
	Options map[string]string
	Results map[Stage]*Result
}

// Artifact returns a named artifact recorded by an earlier stage.
func (c *Context) Artifact(stage Stage, name string) (string, bool) {
	res, ok := c.Results[stage]
	if !ok || res.Artifacts == nil {
		return "", false
	}
	path, ok := res.Artifacts[name]
	return path, ok
}

// Orchestrator owns the stage registry and executes registered stages in
// the fixed pipeline order. Registration is explicit; nothing registers
// itself.
type Orchestrator struct {
	registry map[Stage]Executor
}

// NewOrchestrator creates an orchestrator with an empty registry.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{registry: make(map[Stage]Executor)}
}

// Register binds an executor to a stage name, replacing any prior
// binding. Unknown stage names are rejected.
func (o *Orchestrator) Register(stage Stage, exec Executor) error {
	if position(stage) < 0 {
		return errInvalidRange("unknown stage %q", stage)
	}
	o.registry[stage] = exec
	return nil
}

// Registered reports whether a stage has an executor bound.
func (o *Orchestrator) Registered(stage Stage) bool {
	_, ok := o.registry[stage]
	return ok
}

// Run executes the stages in [from, to] strictly in pipeline order. An
// unregistered stage yields a SKIPPED placeholder and execution
// continues. A stage that fails, or whose executor panics, halts the
// remaining pipeline immediately. Stages never auto-retry.
func (o *Orchestrator) Run(ctx context.Context, sctx *Context, from, to Stage) (*Summary, error) {
	start, end := position(from), position(to)
	switch {
	case start < 0:
		return nil, errInvalidRange("unknown stage %q", from)
	case end < 0:
		return nil, errInvalidRange("unknown stage %q", to)
	case start > end:
		return nil, errInvalidRange("stage %q comes after %q in the pipeline", from, to)
	}

	if sctx.Results == nil {
		sctx.Results = make(map[Stage]*Result)
	}

	logger := logging.FromContext(ctx).With().Str("run_id", sctx.RunID).Logger()
	ctx = logging.WithLogger(ctx, &logger)
	summary := &Summary{Results: make(map[Stage]*Result)}

	record := func(stage Stage, res *Result) {
		sctx.Results[stage] = res
		summary.Results[stage] = res
	}

	halted := false
	for _, stage := range Order[start : end+1] {
		stageCtx := logging.WithStage(ctx, string(stage))
		log := logging.FromContext(stageCtx)

		exec, ok := o.registry[stage]
		if !ok {
			log.Info().Msg("stage not registered, skipping")
			record(stage, skipped(stage))
			continue
		}

		res := o.execute(stageCtx, sctx, stage, exec)
		record(stage, res)
		summary.Executed = append(summary.Executed, stage)

		if res.Status == StatusFail {
			log.Error().Str("error", res.Error).Msg("stage failed, halting pipeline")
			halted = true
			break
		}
		log.Info().Int("checks", len(res.Checks)).Msg("stage passed")
	}

	summary.Overall = overall(summary.Results, halted)
	summary.CutoverReady = summary.Overall == StatusPass && executed(summary.Executed, StageCutover)
	return summary, nil
}

// execute runs a single stage, converting executor errors and panics into
// terminal FAIL results.
func (o *Orchestrator) execute(ctx context.Context, sctx *Context, stage Stage, exec Executor) (res *Result) {
	started := now()

	defer func() {
		if r := recover(); r != nil {
			res = &Result{Stage: stage}
			res.Fail("unexpected fault: %v", r)
		}
		if res == nil {
			res = &Result{Stage: stage}
			res.Fail("executor returned no result")
		}
		res.Stage = stage
		res.StartedAt = utcTime(started)
		res.CompletedAt = utcTime(now())
		if res.Status == "" {
			res.Status = StatusPass
		}
	}()

	res, err := exec.Execute(ctx, sctx)
	if err != nil {
		if res == nil {
			res = &Result{Stage: stage}
		}
		res.Fail("%v", err)
	}
	return res
}

func skipped(stage Stage) *Result {
	t := utcTime(now())
	return &Result{Stage: stage, Status: StatusSkipped, StartedAt: t, CompletedAt: t}
}

// overall folds stage results into the pipeline status: FAIL if any stage
// failed, PARTIAL if any was skipped but none failed, PASS otherwise.
func overall(results map[Stage]*Result, halted bool) Status {
	if halted {
		return StatusFail
	}
	status := StatusPass
	for _, res := range results {
		switch res.Status {
		case StatusFail:
			return StatusFail
		case StatusSkipped:
			status = StatusPartial
		}
	}
	return status
}

func executed(stages []Stage, want Stage) bool {
	for _, s := range stages {
		if s == want {
			return true
		}
	}
	return false
}
