package normalize

import (
	"fmt"
	"unicode/utf8"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

// TruncationMarker is appended to any text cut by Truncate.
const TruncationMarker = "... [truncated]"

// MinTruncationBudget is the smallest accepted budget: room for two markers plus some content.
var MinTruncationBudget = utf8.RuneCountInString(TruncationMarker)*2 + 10

// minPartialComment is the remaining space required before a comment is cut rather than dropped.
const minPartialComment = 100

// Truncation is the result of fitting an issue body and its comments into a budget.
type Truncation struct {
	Body           string
	Comments       []models.NormalizedComment
	OriginalLength int
	Truncated      bool
}

// ValidateBudget returns a ConfigurationError for budgets below MinTruncationBudget.
func ValidateBudget(budget int) error {
	if budget < MinTruncationBudget {
		return &apperr.ConfigurationError{
			Field:   "max_text_length",
			Message: fmt.Sprintf("%d is below the minimum of %d", budget, MinTruncationBudget),
		}
	}
	return nil
}

// Truncate fits body and comments into budget characters. The body keeps at least
// min(len(body), budget/2) characters; comments fill the rest in order. Comments are
// expected in chronological order. Lengths are counted in runes.
func Truncate(body string, comments []models.NormalizedComment, budget int) (Truncation, error) {
	if err := ValidateBudget(budget); err != nil {
		return Truncation{}, err
	}

	bodyLen := utf8.RuneCountInString(body)
	original := bodyLen
	for _, c := range comments {
		original += utf8.RuneCountInString(c.Body)
	}

	if original <= budget {
		return Truncation{
			Body:           body,
			Comments:       comments,
			OriginalLength: original,
		}, nil
	}

	bodyTarget := min(bodyLen, budget/2)
	keptBody := body
	if bodyLen > bodyTarget {
		keptBody = cut(body, bodyTarget)
	}

	space := budget - utf8.RuneCountInString(keptBody)
	used := 0
	kept := make([]models.NormalizedComment, 0, len(comments))
	for _, c := range comments {
		n := utf8.RuneCountInString(c.Body)
		if used+n <= space {
			kept = append(kept, c)
			used += n
			continue
		}
		if remaining := space - used; remaining > minPartialComment {
			partial := c
			partial.Body = cut(c.Body, remaining)
			kept = append(kept, partial)
		}
		break
	}

	return Truncation{
		Body:           keptBody,
		Comments:       kept,
		OriginalLength: original,
		Truncated:      true,
	}, nil
}

// cut shortens s to exactly limit runes, the last of which are the marker.
// limit must be at least the marker length.
func cut(s string, limit int) string {
	keep := limit - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + TruncationMarker
}
