package records

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// folder performs Unicode case folding so identity keys match the way the
// target platform compares emails and titles.
var folder = cases.Fold()

// MemberKey derives the member identity key: the case-folded, trimmed email.
func MemberKey(email string) string {
	return folder.String(strings.TrimSpace(email))
}

// EventKey derives the event identity key: the case-folded, trimmed title
// joined with the start time truncated to the hour in UTC. Two exports of
// the same event differing only in minutes still collide, which is the
// point: re-imports must not double-create events.
func EventKey(title string, start time.Time) string {
	hour := start.UTC().Truncate(time.Hour)
	return folder.String(strings.TrimSpace(title)) + "|" + hour.Format(time.RFC3339)
}

// RegistrationKey derives the registration identity key from resolved
// target ids: one registration per (event, member) pair.
func RegistrationKey(eventID, memberID string) string {
	return eventID + "|" + memberID
}
