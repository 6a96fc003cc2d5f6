// Package stages runs the staged migration pipeline. The pipeline has a
// fixed total order of stages; each stage is registered by name on an
// orchestrator, executed strictly in order within a requested sub-range,
// and produces an independently timestamped result. Unregistered stages
// are skipped placeholders, not failures, so partial pipelines work
// before every stage exists.
package stages

import (
	"fmt"
	"time"

	"github.com/agentstation/utc"

	"github.com/parkgrove/clubsync/pkg/errors"
)

// Stage names a pipeline stage.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StageSimulate  Stage = "simulate"
	StageLoad      Stage = "load"
	StageVerify    Stage = "verify"
	StageSync      Stage = "sync"
	StageCutover   Stage = "cutover"
)

// Order is the fixed total order stages execute in. Sub-ranges passed to
// Orchestrator.Run are resolved against this slice.
var Order = []Stage{
	StageExtract,
	StageNormalize,
	StageSimulate,
	StageLoad,
	StageVerify,
	StageSync,
	StageCutover,
}

// position returns the index of a stage in Order, or -1 if unknown.
func position(s Stage) int {
	for i, st := range Order {
		if st == s {
			return i
		}
	}
	return -1
}

// Status is the outcome of one stage or of the whole pipeline.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusSkipped Status = "SKIPPED"
	StatusPartial Status = "PARTIAL"
)

// Check is one named verification performed by a stage.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of one stage execution.
type Result struct {
	Stage       Stage             `json:"stage"`
	Status      Status            `json:"status"`
	StartedAt   utc.Time          `json:"started_at"`
	CompletedAt utc.Time          `json:"completed_at"`
	Checks      []Check           `json:"checks,omitempty"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// AddCheck records a named check on the result.
func (r *Result) AddCheck(name string, passed bool, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Detail: detail})
}

// AddArtifact records a named artifact path on the result.
func (r *Result) AddArtifact(name, path string) {
	if r.Artifacts == nil {
		r.Artifacts = make(map[string]string)
	}
	r.Artifacts[name] = path
}

// Pass marks the result passed.
func (r *Result) Pass() *Result {
	r.Status = StatusPass
	return r
}

// Fail marks the result failed with a terminal error message.
func (r *Result) Fail(format string, args ...any) *Result {
	r.Status = StatusFail
	r.Error = fmt.Sprintf(format, args...)
	return r
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	Overall      Status            `json:"overall"`
	Results      map[Stage]*Result `json:"results"`
	Executed     []Stage           `json:"executed"`
	CutoverReady bool              `json:"cutover_ready"`
}

// errInvalidRange builds the validation error for a bad stage range.
func errInvalidRange(format string, args ...any) error {
	return &errors.ValidationError{Field: "stages", Message: fmt.Sprintf(format, args...)}
}

// now is replaceable in tests.
var now = time.Now

func utcTime(t time.Time) utc.Time {
	return utc.Time{Time: t.UTC()}
}
