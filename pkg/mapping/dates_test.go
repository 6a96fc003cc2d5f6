package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2025-04-01T18:00:00Z", time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC), true},
		{"iso no zone", "2025-04-01T18:00:00", time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC), true},
		{"iso date only", "2025-04-01", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"iso with space", "2025-04-01 18:30", time.Date(2025, 4, 1, 18, 30, 0, 0, time.UTC), true},
		{"us date", "04/01/2025", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"us date with time", "04/01/2025 18:30", time.Date(2025, 4, 1, 18, 30, 0, 0, time.UTC), true},
		{"us single digit", "4/1/2025", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"padded", "  2025-04-01  ", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "next tuesday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			}
		})
	}
}

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"many", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePositiveInt(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
