package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text",
			input:    "Plain text here",
			expected: "Plain text here",
		},
		{
			name:     "headers",
			input:    "# Title\n## Sub\ntext",
			expected: "Title\nSub\ntext",
		},
		{
			name:     "links keep text and images keep alt",
			input:    "See [docs](http://example.com) and ![logo](a.png)",
			expected: "See docs and logo",
		},
		{
			name:     "code fence keeps content",
			input:    "before\n```go\nfmt.Println()\n```\nafter",
			expected: "before\nfmt.Println()\n\nafter",
		},
		{
			name:     "inline code",
			input:    "use `go test` now",
			expected: "use go test now",
		},
		{
			name:     "html comment",
			input:    "<!-- issue template\nfill this in -->\nReal text",
			expected: "Real text",
		},
		{
			name:     "list markers",
			input:    "- one\n* two\n+ three\n1. four",
			expected: "one\ntwo\nthree\nfour",
		},
		{
			name:     "blockquotes",
			input:    "> quoted\n>more",
			expected: "quoted\nmore",
		},
		{
			name:     "emphasis",
			input:    "**bold** and *it* and __b2__ and _i2_",
			expected: "bold and it and b2 and i2",
		},
		{
			name:     "snake case survives",
			input:    "set max_text_length please",
			expected: "set max_text_length please",
		},
		{
			name:     "horizontal rule",
			input:    "above\n---\nbelow",
			expected: "above\n\nbelow",
		},
		{
			name:     "whitespace runs",
			input:    "a   b\t\tc\n\n\n\nd  ",
			expected: "a b c\n\nd",
		},
		{
			name:     "crlf",
			input:    "line1\r\nline2\rline3",
			expected: "line1\nline2\nline3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanMarkup(tt.input))
		})
	}
}

func TestCleanMarkupIsIdempotent(t *testing.T) {
	input := "# Crash\n\n- step **one**\n- step [two](http://x)\n\n```\npanic: nil map\n```"
	once := CleanMarkup(input)
	assert.Equal(t, once, CleanMarkup(once))
}
