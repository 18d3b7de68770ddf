package group

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ideaforge/internal/apperr"
)

func TestParseClusters(t *testing.T) {
	batch := uniform(3)

	tests := []struct {
		name     string
		reply    string
		reason   apperr.SchemaReason
		expected map[string][]int64
	}{
		{
			name:     "envelope",
			reply:    `{"clusters":[{"cluster_id":"a","representative_title":"A","summary":"s","topic_area":"ui","member_issue_ids":[1,2]},{"cluster_id":"b","representative_title":"B","member_issue_ids":[3]}]}`,
			expected: map[string][]int64{"a": {1, 2}, "b": {3}},
		},
		{
			name:     "bare array inside prose",
			reply:    "Sure!\n[{\"cluster_id\":\"a\",\"representative_title\":\"A\",\"member_issue_ids\":[1,2,3]}]\nDone.",
			expected: map[string][]int64{"a": {1, 2, 3}},
		},
		{
			name:     "overlap is accepted here",
			reply:    `{"clusters":[{"cluster_id":"a","representative_title":"A","member_issue_ids":[1,2]},{"cluster_id":"b","representative_title":"B","member_issue_ids":[2,3]}]}`,
			expected: map[string][]int64{"a": {1, 2}, "b": {2, 3}},
		},
		{
			name:     "empty cluster list",
			reply:    `{"clusters":[]}`,
			expected: map[string][]int64{},
		},
		{
			name:   "garbage",
			reply:  "I could not group these.",
			reason: apperr.ReasonParse,
		},
		{
			name:   "missing clusters field",
			reply:  `{"groups":[]}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "clusters not an array",
			reply:  `{"clusters":"a"}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "empty cluster id",
			reply:  `{"clusters":[{"cluster_id":" ","representative_title":"A","member_issue_ids":[1]}]}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "empty title",
			reply:  `{"clusters":[{"cluster_id":"a","member_issue_ids":[1]}]}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "no members",
			reply:  `{"clusters":[{"cluster_id":"a","representative_title":"A","member_issue_ids":[]}]}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "duplicate member",
			reply:  `{"clusters":[{"cluster_id":"a","representative_title":"A","member_issue_ids":[1,1]}]}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "unknown member",
			reply:  `{"clusters":[{"cluster_id":"a","representative_title":"A","member_issue_ids":[1,42]}]}`,
			reason: apperr.ReasonSchema,
		},
		{
			name:   "string member ids",
			reply:  `{"clusters":[{"cluster_id":"a","representative_title":"A","member_issue_ids":["1"]}]}`,
			reason: apperr.ReasonSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters, failure := ParseClusters(tt.reply, batch).Unpack()
			if tt.reason != "" {
				require.NotNil(t, failure)
				assert.Equal(t, tt.reason, failure.Reason)
				return
			}
			require.Nil(t, failure)
			assert.Equal(t, tt.expected, members(clusters))
		})
	}
}

func TestParseClustersFillsFromMembers(t *testing.T) {
	long := strings.Repeat("T", 120)
	reply := `{"clusters":[{"cluster_id":"a","representative_title":"` + long + `","summary":"line one\nline two","member_issue_ids":[2]},` +
		`{"cluster_id":"b","representative_title":"B","member_issue_ids":[3]}]}`

	clusters, failure := ParseClusters(reply, uniform(3)).Unpack()
	require.Nil(t, failure)
	require.Len(t, clusters, 2)

	assert.Len(t, clusters[0].RepresentativeTitle, 100)
	assert.Equal(t, "line one line two", clusters[0].Summary)
	assert.Equal(t, "ui", clusters[0].TopicArea)
	assert.Equal(t, "Summary of idea 3.", clusters[1].Summary)
}
