package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkgrove/clubsync/pkg/records"
)

const mappingYAML = `
member:
  fields:
    - target: externalId
      column: Member ID
    - target: firstName
      column: First Name
    - target: joinDate
      required: true
      column: Joined
    - target: status
      lookup:
        column: Status
        default: Active
        table:
          Active: active
          Lapsed: lapsed
    - target: tierLabel
      literal: ""
event:
  fields:
    - target: title
      column: Title
    - target: start
      column: Starts
    - target: capacity
      column: Capacity
`

func TestParseMappings(t *testing.T) {
	mappings, err := ParseMappings([]byte(mappingYAML))
	require.NoError(t, err)
	require.Contains(t, mappings, records.EntityMember)
	require.Contains(t, mappings, records.EntityEvent)

	member := mappings[records.EntityMember]
	require.Len(t, member.Fields, 5)

	assert.Equal(t, Column{Name: "Member ID"}, member.Fields[0].Source)
	assert.Equal(t, KindString, member.Fields[0].Kind)

	join := member.Fields[2]
	assert.Equal(t, KindDate, join.Kind, "date kind inferred from target")
	assert.True(t, join.Required)

	status := member.Fields[3]
	lookup, ok := status.Source.(Lookup)
	require.True(t, ok)
	assert.Equal(t, "Active", lookup.DefaultKey)
	assert.Equal(t, "lapsed", lookup.Table["Lapsed"])

	assert.Equal(t, Literal{Value: ""}, member.Fields[4].Source)

	event := mappings[records.EntityEvent]
	assert.Equal(t, KindDate, event.Fields[1].Kind)
	assert.Equal(t, KindInt, event.Fields[2].Kind)
}

func TestParseMappingsRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "two sources",
			yaml: "member:\n  fields:\n    - target: email\n      column: Email\n      literal: x\n",
		},
		{
			name: "no source",
			yaml: "member:\n  fields:\n    - target: email\n",
		},
		{
			name: "unknown target",
			yaml: "member:\n  fields:\n    - target: nickname\n      column: Nick\n",
		},
		{
			name: "kind mismatch",
			yaml: "member:\n  fields:\n    - target: joinDate\n      kind: string\n      column: Joined\n",
		},
		{
			name: "unknown entity",
			yaml: "invoice:\n  fields:\n    - target: email\n      column: Email\n",
		},
		{
			name: "not yaml",
			yaml: "за{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMappings([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
