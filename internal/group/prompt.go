package group

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/thebtf/ideaforge/pkg/models"
)

// batchItem is the view of a summary sent to the grouper persona.
type batchItem struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	TopicArea string `json:"topic_area"`
	IssueID   int64  `json:"issue_id"`
	models.Metrics
	NoiseFlag bool `json:"noise_flag"`
}

// BuildPrompt renders the user payload for one batch.
func BuildPrompt(batch []models.SummarizedIssue) (string, error) {
	items := make([]batchItem, 0, len(batch))
	for _, s := range batch {
		items = append(items, batchItem{
			IssueID:   s.IssueID,
			Title:     s.Title,
			Summary:   s.Summary,
			TopicArea: s.TopicArea,
			Metrics:   s.Metrics,
			NoiseFlag: s.NoiseFlag,
		})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	return fmt.Sprintf("Analyze the following batch of summarized GitHub issues and group them "+
		"into actionable idea clusters. Merge duplicates and keep unique issues as singletons.\n\n"+
		"Input batch (%d issues):\n%s\n\n"+
		"Respond with ONLY valid JSON following the specified cluster schema.", len(batch), data), nil
}
