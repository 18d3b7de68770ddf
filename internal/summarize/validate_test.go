package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ideaforge/internal/apperr"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		reason apperr.SchemaReason
	}{
		{
			name:  "valid object",
			reply: validReply,
		},
		{
			name:  "fenced object with prose",
			reply: "Here you go:\n```json\n" + validReply + "\n```\nHope it helps.",
		},
		{
			name:   "prose only",
			reply:  "This issue is about dark mode.",
			reason: apperr.ReasonParse,
		},
		{
			name:   "array instead of object",
			reply:  `[1, 2, 3]`,
			reason: apperr.ReasonParse,
		},
		{
			name:   "missing field",
			reply:  strings.Replace(validReply, `"topic_area": "ui",`, "", 1),
			reason: apperr.ReasonSchema,
		},
		{
			name:   "null field",
			reply:  strings.Replace(validReply, `"noise_flag": false`, `"noise_flag": null`, 1),
			reason: apperr.ReasonSchema,
		},
		{
			name:   "metric as string",
			reply:  strings.Replace(validReply, `"attention": 0.6`, `"attention": "high"`, 1),
			reason: apperr.ReasonSchema,
		},
		{
			name:   "empty summary",
			reply:  strings.Replace(validReply, `"Users want a dark theme.\nIt reduces eye strain."`, `"  \n "`, 1),
			reason: apperr.ReasonSchema,
		},
		{
			name:   "empty title",
			reply:  strings.Replace(validReply, `"Dark mode"`, `""`, 1),
			reason: apperr.ReasonSchema,
		},
		{
			name:   "negative metric",
			reply:  strings.Replace(validReply, `"feasibility": 0.8`, `"feasibility": -0.1`, 1),
			reason: apperr.ReasonOutRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParseReply(tt.reply, issue(5, 9))
			value, failure := out.Unpack()
			if tt.reason == "" {
				require.Nil(t, failure)
				assert.Equal(t, int64(5), value.IssueID)
				assert.Equal(t, 9, value.SourceNumber)
				assert.Equal(t, "ui", value.TopicArea)
				assert.InDelta(t, 0.9, value.Desirability, 1e-9)
				return
			}
			require.NotNil(t, failure)
			assert.Equal(t, tt.reason, failure.Reason)
			assert.True(t, apperr.IsSchema(failure.Err()))
		})
	}
}

func TestParseReplyTruncatesTitle(t *testing.T) {
	long := strings.Repeat("t", 150)
	out := ParseReply(strings.Replace(validReply, `"Dark mode"`, `"`+long+`"`, 1), issue(1, 1))

	value, failure := out.Unpack()
	require.Nil(t, failure)
	assert.Len(t, value.Title, 100)
}

func TestParseReplyIgnoresIdentityFields(t *testing.T) {
	reply := strings.Replace(validReply, `"title"`, `"issue_id": 999, "raw_issue_url": "http://evil", "title"`, 1)

	value, failure := ParseReply(reply, issue(5, 9)).Unpack()
	require.Nil(t, failure)
	assert.Equal(t, int64(5), value.IssueID)
	assert.Equal(t, "https://github.com/acme/app/issues/9", value.URL)
}
