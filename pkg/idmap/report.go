// Package idmap builds the ID-mapping report: the post-hoc view of how
// source external ids landed on target ids during a run, including the
// external ids that mapped to more than one target id and the ones that
// never received a mapping at all.
package idmap

import (
	"sort"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/parkgrove/clubsync/pkg/records"
)

// EntityMap is the mapping outcome for one entity kind.
type EntityMap struct {
	// Associations holds every external id seen during reconciliation with
	// all distinct target ids recorded for it. The first id is the winner.
	Associations map[string][]string `json:"associations"`

	// Duplicates lists external ids that accumulated more than one distinct
	// target id within the run, sorted and de-duplicated.
	Duplicates []string `json:"duplicates,omitempty"`

	// Missing lists external ids that appeared on input records but ended
	// the run without an association, typically because the record was
	// blocked by validation or reconciliation. Sorted and de-duplicated.
	Missing []string `json:"missing,omitempty"`
}

// Report is the full ID-mapping artifact for a run.
type Report struct {
	DryRun      bool                          `json:"dry_run"`
	GeneratedAt utc.Time                      `json:"generated_at"`
	Entities    map[records.Entity]*EntityMap `json:"entities"`
}

// BuildEntity derives the mapping outcome for one entity kind from the
// accumulated association data and the run's full record list. It is a
// pure pass: records are read, never modified, so it can be re-run
// against a stored report's association data without replaying the
// migration.
func BuildEntity(data map[string][]string, recs []*records.ImportRecord) *EntityMap {
	em := &EntityMap{Associations: data}
	if em.Associations == nil {
		em.Associations = map[string][]string{}
	}

	for ext, ids := range em.Associations {
		if len(ids) > 1 {
			em.Duplicates = append(em.Duplicates, ext)
		}
	}
	sort.Strings(em.Duplicates)

	seen := make(map[string]bool)
	for _, rec := range recs {
		ext := rec.ExternalID
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		if len(em.Associations[ext]) == 0 {
			em.Missing = append(em.Missing, ext)
		}
	}
	sort.Strings(em.Missing)

	return em
}

// Build assembles the report for all entity kinds. Record lists are keyed
// by entity; entities with neither associations nor records are omitted.
func Build(dryRun bool, now time.Time, data map[records.Entity]map[string][]string, recs map[records.Entity][]*records.ImportRecord) *Report {
	r := &Report{
		DryRun:      dryRun,
		GeneratedAt: utc.Time{Time: now.UTC()},
		Entities:    make(map[records.Entity]*EntityMap),
	}
	for _, entity := range records.Entities {
		d := data[entity]
		rs := recs[entity]
		if len(d) == 0 && len(rs) == 0 {
			continue
		}
		r.Entities[entity] = BuildEntity(d, rs)
	}
	return r
}

// Filename returns the artifact name for a run mode and timestamp, of the
// form id-map-{dry-run|live}-{timestamp}.json. Every non-alphanumeric
// character in the timestamp is replaced with a dash so the name is safe
// on any filesystem.
func Filename(dryRun bool, ts time.Time) string {
	mode := "live"
	if dryRun {
		mode = "dry-run"
	}
	stamp := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		default:
			return '-'
		}
	}, ts.UTC().Format(time.RFC3339))
	return "id-map-" + mode + "-" + stamp + ".json"
}
