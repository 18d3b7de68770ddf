package normalize

import (
	"sort"
	"strings"

	"github.com/thebtf/ideaforge/pkg/models"
)

// DefaultBudget is the default character budget for body plus comments.
const DefaultBudget = 8000

// Options configures a Normalizer.
type Options struct {
	Noise   NoiseRules
	Support SupportRules
	Budget  int
}

// DefaultOptions returns the default budget with both rule sets enabled.
func DefaultOptions() Options {
	return Options{
		Budget:  DefaultBudget,
		Noise:   DefaultNoiseRules(),
		Support: DefaultSupportRules(),
	}
}

// Normalizer turns raw issues into NormalizedIssue values. It makes no external calls.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer. The budget is validated up front so that no issue is
// processed with an unusable configuration.
func New(opts Options) (*Normalizer, error) {
	if err := ValidateBudget(opts.Budget); err != nil {
		return nil, err
	}
	return &Normalizer{opts: opts}, nil
}

// Normalize cleans, deduplicates, truncates and classifies one raw issue.
func (n *Normalizer) Normalize(raw models.RawIssue) (models.NormalizedIssue, error) {
	body := CleanMarkup(raw.Body)
	comments := cleanComments(raw.Comments)

	t, err := Truncate(body, comments, n.opts.Budget)
	if err != nil {
		return models.NormalizedIssue{}, err
	}

	labels := raw.LabelNames()
	in := noiseInput{
		Title:  raw.Title,
		Body:   body,
		Author: raw.Author(),
		Labels: labels,
	}
	reason := n.opts.Noise.classify(in)
	if reason == "" {
		reason = n.opts.Support.classify(in)
	}

	return models.NormalizedIssue{
		ID:             raw.ID,
		Number:         raw.Number,
		Title:          strings.TrimSpace(raw.Title),
		Body:           t.Body,
		State:          raw.State,
		URL:            raw.URL,
		Labels:         labels,
		Comments:       t.Comments,
		Reactions:      raw.Reactions.Counts(),
		CreatedAt:      raw.CreatedAt,
		UpdatedAt:      raw.UpdatedAt,
		IsNoise:        reason != "",
		NoiseReason:    reason,
		Truncated:      t.Truncated,
		OriginalLength: t.OriginalLength,
	}, nil
}

// NormalizeAll normalizes issues in input order. Noise-flagged issues are kept.
func (n *Normalizer) NormalizeAll(raws []models.RawIssue) ([]models.NormalizedIssue, error) {
	out := make([]models.NormalizedIssue, 0, len(raws))
	for _, raw := range raws {
		issue, err := n.Normalize(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// cleanComments sorts comments chronologically, cleans their markup, drops empty
// bodies and collapses case-insensitive duplicates to their first occurrence.
func cleanComments(raw []models.RawComment) []models.NormalizedComment {
	sorted := make([]models.RawComment, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]models.NormalizedComment, 0, len(sorted))
	for _, c := range sorted {
		body := CleanMarkup(c.Body)
		if body == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(body))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.NormalizedComment{
			ID:        c.ID,
			Author:    c.Author(),
			Body:      body,
			CreatedAt: c.CreatedAt,
			Reactions: c.Reactions.Counts(),
		})
	}
	return out
}
