package mapping

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// yearPrefix matches strings opening with a 4-digit year, the marker that an
// export wrote ISO dates rather than US-style ones.
var yearPrefix = regexp.MustCompile(`^\d{4}([-/T ]|$)`)

// isoLayouts are tried for ISO 8601 style values.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// usLayouts are tried for MM/DD/YYYY[ HH:MM] values.
var usLayouts = []string{
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006",
	"1/2/2006",
}

// ParseDate parses a date string in ISO 8601 or MM/DD/YYYY[ HH:MM] form.
// ISO is preferred when the string contains "T" or starts with a 4-digit
// year; otherwise the US form is tried first. The other family is still
// attempted as a fallback. Returns false when nothing matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	isoFirst := strings.Contains(s, "T") || yearPrefix.MatchString(s)

	families := [][]string{usLayouts, isoLayouts}
	if isoFirst {
		families = [][]string{isoLayouts, usLayouts}
	}

	for _, layouts := range families {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParsePositiveInt parses a strictly positive integer. Non-positive and
// unparsable values return false; callers drop them rather than storing zero.
func ParsePositiveInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
