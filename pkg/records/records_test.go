package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada@X.com", "ada@x.com"},
		{"  ada@x.com  ", "ada@x.com"},
		{"ADA@X.COM", "ada@x.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MemberKey(tt.in))
	}
}

func TestEventKeyTruncatesToHour(t *testing.T) {
	a := EventKey("Spring Gala", time.Date(2025, 4, 1, 18, 5, 0, 0, time.UTC))
	b := EventKey("  spring gala ", time.Date(2025, 4, 1, 18, 59, 59, 0, time.UTC))
	c := EventKey("Spring Gala", time.Date(2025, 4, 1, 19, 0, 0, 0, time.UTC))

	assert.Equal(t, a, b, "same title and hour must collide")
	assert.NotEqual(t, a, c, "different hour must not collide")
}

func TestEventKeyNormalizesZone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	a := EventKey("Gala", time.Date(2025, 4, 1, 13, 30, 0, 0, est))
	b := EventKey("Gala", time.Date(2025, 4, 1, 18, 30, 0, 0, time.UTC))
	assert.Equal(t, a, b)
}

func TestIdentityIndexFirstInsertWins(t *testing.T) {
	ix := NewIdentityIndex(EntityMember)
	ix.Insert("ada@x.com", "M1")
	ix.Insert("ada@x.com", "M2")

	id, ok := ix.Lookup("ada@x.com")
	require.True(t, ok)
	assert.Equal(t, "M1", id)
	assert.Equal(t, 1, ix.Len())
}

func TestExternalIDMapFirstWriteWins(t *testing.T) {
	m := NewExternalIDMap(EntityMember)

	assert.True(t, m.Add("ext-1", "M1"))
	assert.False(t, m.Add("ext-1", "M2"), "later distinct id is a duplicate, not a winner")
	assert.False(t, m.Add("ext-1", "M1"), "re-adding the winner is a no-op")

	id, ok := m.Resolve("ext-1")
	require.True(t, ok)
	assert.Equal(t, "M1", id)

	data := m.Data()
	assert.Equal(t, []string{"M1", "M2"}, data["ext-1"])
	assert.Equal(t, map[string]string{"ext-1": "M1"}, m.Associations())
}

func TestExternalIDMapIgnoresEmpty(t *testing.T) {
	m := NewExternalIDMap(EntityEvent)
	assert.False(t, m.Add("", "E1"))
	assert.False(t, m.Add("ext-1", ""))
	assert.Equal(t, 0, m.Len())
}

func TestImportRecordErrors(t *testing.T) {
	rec := &ImportRecord{Entity: EntityMember, Row: 2}
	assert.True(t, rec.Valid())

	rec.AddError("Missing %s", "firstName")
	rec.AddWarning("no tier mapping for label %q", "Gold")

	assert.False(t, rec.Valid())
	assert.Equal(t, []string{"Missing firstName"}, rec.Errors)
	assert.Len(t, rec.Warnings, 1)
}
