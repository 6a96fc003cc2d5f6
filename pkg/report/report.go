// Package report assembles and persists the RunReport: the single
// artifact describing what a migration run did, per entity, per row.
// The full report is written once, alongside a size-capped summary and
// the ID-mapping artifact.
package report

import (
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/parkgrove/clubsync/pkg/idmap"
	"github.com/parkgrove/clubsync/pkg/reconcile"
	"github.com/parkgrove/clubsync/pkg/records"
)

// MaxSummaryRowErrors caps the row-error list carried by the summary
// variant.
const MaxSummaryRowErrors = 50

// RowError is one row-level problem, flattened for the report's
// run-wide error list.
type RowError struct {
	Entity     records.Entity `json:"entity"`
	Row        int            `json:"row"`
	ExternalID string         `json:"external_id,omitempty"`
	Message    string         `json:"message"`
}

// EntityReport is the per-entity slice of a run: final counts plus the
// full audit-retained record list.
type EntityReport struct {
	Counts  reconcile.Counts        `json:"counts"`
	Records []*records.ImportRecord `json:"records,omitempty"`
}

// RunReport is the complete account of one run. It is finalized exactly
// once; mutation after Finalize is a programming error and is ignored.
type RunReport struct {
	RunID       string                                 `json:"run_id"`
	DryRun      bool                                   `json:"dry_run"`
	Summary     bool                                   `json:"summary,omitempty"`
	StartedAt   utc.Time                               `json:"started_at"`
	CompletedAt utc.Time                               `json:"completed_at"`
	Entities    map[records.Entity]*EntityReport       `json:"entities"`
	RowErrors   []RowError                             `json:"row_errors,omitempty"`
	ExternalIDs map[records.Entity]map[string][]string `json:"external_ids,omitempty"`
	Errors      []string                               `json:"errors,omitempty"`

	finalized bool
}

// New starts a report for a run. An empty run id gets a generated UUID.
func New(runID string, dryRun bool) *RunReport {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &RunReport{
		RunID:       runID,
		DryRun:      dryRun,
		StartedAt:   utc.Time{Time: time.Now().UTC()},
		Entities:    make(map[records.Entity]*EntityReport),
		ExternalIDs: make(map[records.Entity]map[string][]string),
	}
}

// AddEntity records one entity phase's outcome: the final counts, the
// audit-retained records, and the external-id association data. Row
// errors are flattened into the run-wide list as records are added.
func (r *RunReport) AddEntity(entity records.Entity, counts reconcile.Counts, recs []*records.ImportRecord, ids map[string][]string) {
	if r.finalized {
		return
	}
	r.Entities[entity] = &EntityReport{Counts: counts, Records: recs}
	if len(ids) > 0 {
		r.ExternalIDs[entity] = ids
	}
	for _, rec := range recs {
		for _, msg := range rec.Errors {
			r.RowErrors = append(r.RowErrors, RowError{
				Entity:     entity,
				Row:        rec.Row,
				ExternalID: rec.ExternalID,
				Message:    msg,
			})
		}
	}
}

// AddError records a run-level error, such as a systemic storage fault.
func (r *RunReport) AddError(msg string) {
	if r.finalized || msg == "" {
		return
	}
	r.Errors = append(r.Errors, msg)
}

// Finalize stamps the completion time and seals the report. Later calls
// are no-ops; the first completion time wins.
func (r *RunReport) Finalize() {
	if r.finalized {
		return
	}
	r.finalized = true
	r.CompletedAt = utc.Time{Time: time.Now().UTC()}
}

// Finalized reports whether the report has been sealed.
func (r *RunReport) Finalized() bool {
	return r.finalized
}

// Counts returns the final counts for one entity.
func (r *RunReport) Counts(entity records.Entity) reconcile.Counts {
	er, ok := r.Entities[entity]
	if !ok {
		return reconcile.Counts{}
	}
	return er.Counts
}

// Errored reports whether any row or run-level error was recorded.
func (r *RunReport) Errored() bool {
	return len(r.RowErrors) > 0 || len(r.Errors) > 0
}

// Trim returns the size-capped summary variant: per-record lists are
// dropped, the row-error list is capped, counts and association data
// stay intact. The receiver is not modified.
func (r *RunReport) Trim() *RunReport {
	s := &RunReport{
		RunID:       r.RunID,
		DryRun:      r.DryRun,
		Summary:     true,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Entities:    make(map[records.Entity]*EntityReport, len(r.Entities)),
		ExternalIDs: r.ExternalIDs,
		Errors:      r.Errors,
		finalized:   r.finalized,
	}
	for entity, er := range r.Entities {
		s.Entities[entity] = &EntityReport{Counts: er.Counts}
	}
	s.RowErrors = r.RowErrors
	if len(s.RowErrors) > MaxSummaryRowErrors {
		s.RowErrors = s.RowErrors[:MaxSummaryRowErrors]
	}
	return s
}

// IDMap derives the ID-mapping report from the association data and the
// retained records.
func (r *RunReport) IDMap() *idmap.Report {
	recs := make(map[records.Entity][]*records.ImportRecord, len(r.Entities))
	for entity, er := range r.Entities {
		recs[entity] = er.Records
	}
	return idmap.Build(r.DryRun, r.CompletedAt.Time, r.ExternalIDs, recs)
}
