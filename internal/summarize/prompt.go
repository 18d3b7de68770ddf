package summarize

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/ideaforge/pkg/models"
)

const (
	// DefaultMaxTokens is the default token budget for one issue payload.
	DefaultMaxTokens = 4000

	// promptReserveTokens is held back for the title, labels and instructions.
	promptReserveTokens = 125

	// deletedUser stands in for comment authors whose account no longer exists.
	deletedUser = "deleted-user"
)

// PromptBuilder renders a NormalizedIssue into a bounded user payload.
// Budgets are counted in cl100k_base tokens.
type PromptBuilder struct {
	codec     tokenizer.Codec
	maxTokens int
}

// NewPromptBuilder creates a builder with a maxTokens budget for body plus comments.
func NewPromptBuilder(maxTokens int) (*PromptBuilder, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &PromptBuilder{codec: codec, maxTokens: maxTokens}, nil
}

// Tokens returns the token count of text. Encoding failures fall back to a
// four-characters-per-token estimate.
func (b *PromptBuilder) Tokens(text string) int {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}

// Build renders the payload: title, body, comments, reaction total and labels,
// followed by the JSON instruction.
func (b *PromptBuilder) Build(issue models.NormalizedIssue) string {
	available := b.maxTokens - promptReserveTokens
	if available < 0 {
		available = 0
	}
	bodyBudget := available * 40 / 100
	commentBudget := available * 60 / 100

	body, bodyCut := b.cutTokens(issue.Body, bodyBudget)

	var lines []string
	commentsCut := false
	remaining := commentBudget
	for _, c := range issue.Comments {
		line := fmt.Sprintf("- [%s]: %s", c.AuthorOr(deletedUser), c.Body)
		n := b.Tokens(line)
		if n > remaining {
			commentsCut = true
			break
		}
		lines = append(lines, line)
		remaining -= n + 1
	}

	parts := []string{
		"Title: " + issue.Title,
		"Body: " + body,
	}
	if bodyCut {
		parts = append(parts, "(Body truncated due to length)")
	}
	if len(lines) > 0 {
		parts = append(parts, "Comments:\n"+strings.Join(lines, "\n"))
		if commentsCut {
			parts = append(parts, "(Additional comments truncated)")
		}
	}
	parts = append(parts, fmt.Sprintf("Reactions: %d reactions", issue.Reactions.Total()))
	if len(issue.Labels) > 0 {
		parts = append(parts, "Labels: "+strings.Join(issue.Labels, ", "))
	}
	parts = append(parts, "\nAnalyze this issue and respond with ONLY valid JSON following the specified schema.")

	return strings.Join(parts, "\n\n")
}

// cutTokens keeps at most limit tokens of text, backing off to the last word
// boundary and appending "...".
func (b *PromptBuilder) cutTokens(text string, limit int) (string, bool) {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return cutRunes(text, limit*4)
	}
	if len(ids) <= limit {
		return text, false
	}

	prefix, err := b.codec.Decode(ids[:limit])
	if err != nil {
		return cutRunes(text, limit*4)
	}
	return wordBoundary(strings.ToValidUTF8(prefix, "")) + "...", true
}

func cutRunes(text string, limit int) (string, bool) {
	r := []rune(text)
	if len(r) <= limit {
		return text, false
	}
	return wordBoundary(string(r[:limit])) + "...", true
}

func wordBoundary(s string) string {
	if i := strings.LastIndex(s, " "); i > 0 {
		return s[:i]
	}
	return s
}
