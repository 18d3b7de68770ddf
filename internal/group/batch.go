package group

import (
	"fmt"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

// Default batch limits.
const (
	DefaultMaxBatchSize  = 20
	DefaultMaxBatchChars = 50000
)

// Limits bounds a batch by member count and by the total encoded size of its members.
type Limits struct {
	MaxSize  int `json:"max_size" yaml:"max_batch_size"`
	MaxChars int `json:"max_chars" yaml:"max_batch_chars"`
}

// DefaultLimits returns the default batch limits.
func DefaultLimits() Limits {
	return Limits{MaxSize: DefaultMaxBatchSize, MaxChars: DefaultMaxBatchChars}
}

// Validate rejects non-positive limits.
func (l Limits) Validate() error {
	if l.MaxSize < 1 {
		return &apperr.ConfigurationError{Field: "max_batch_size", Message: fmt.Sprintf("must be positive, got %d", l.MaxSize)}
	}
	if l.MaxChars < 1 {
		return &apperr.ConfigurationError{Field: "max_batch_chars", Message: fmt.Sprintf("must be positive, got %d", l.MaxChars)}
	}
	return nil
}

// Size returns the character count of the summary's JSON encoding.
func Size(s models.SummarizedIssue) (int, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("encode summary %d: %w", s.IssueID, err)
	}
	return utf8.RuneCount(data), nil
}

// Batch splits summaries into consecutive batches in input order. A batch is closed
// when it already holds MaxSize members or when the next summary would push it past
// MaxChars. A single summary larger than MaxChars still gets a batch of its own.
func Batch(summaries []models.SummarizedIssue, limits Limits) ([][]models.SummarizedIssue, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	var (
		batches [][]models.SummarizedIssue
		current []models.SummarizedIssue
		chars   int
	)
	for _, s := range summaries {
		size, err := Size(s)
		if err != nil {
			return nil, err
		}
		if len(current) > 0 && (len(current) >= limits.MaxSize || chars+size > limits.MaxChars) {
			batches = append(batches, current)
			current = nil
			chars = 0
		}
		current = append(current, s)
		chars += size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}
