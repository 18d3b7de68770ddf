package summarize

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/llm"
	"github.com/thebtf/ideaforge/pkg/models"
)

var requiredFields = []string{
	"title", "summary", "topic_area",
	"novelty", "feasibility", "desirability", "attention",
	"noise_flag",
}

// reply is the summarizer persona's answer. Identity fields come from the issue, never from here.
type reply struct {
	Title        string  `json:"title"`
	Summary      string  `json:"summary"`
	TopicArea    string  `json:"topic_area"`
	Novelty      float64 `json:"novelty"`
	Feasibility  float64 `json:"feasibility"`
	Desirability float64 `json:"desirability"`
	Attention    float64 `json:"attention"`
	NoiseFlag    bool    `json:"noise_flag"`
}

// ParseReply turns raw reply text into a SummarizedIssue for issue, or a tagged failure.
func ParseReply(text string, issue models.NormalizedIssue) llm.Outcome[models.SummarizedIssue] {
	raw, failure := llm.ExtractJSON(text).Unpack()
	if failure != nil {
		return llm.RejectedWith[models.SummarizedIssue](failure)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return llm.Rejected[models.SummarizedIssue](apperr.ReasonParse, "reply is not a JSON object: %v", err)
	}

	var missing []string
	for _, f := range requiredFields {
		if v, ok := fields[f]; !ok || string(v) == "null" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return llm.Rejected[models.SummarizedIssue](apperr.ReasonSchema, "missing fields: %s", strings.Join(missing, ", "))
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return llm.Rejected[models.SummarizedIssue](apperr.ReasonSchema, "field types: %v", err)
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		return llm.Rejected[models.SummarizedIssue](apperr.ReasonSchema, "title is empty")
	}
	summary := strings.Join(strings.Fields(r.Summary), " ")
	if summary == "" {
		return llm.Rejected[models.SummarizedIssue](apperr.ReasonSchema, "summary is empty")
	}

	metrics := models.Metrics{
		Novelty:      r.Novelty,
		Feasibility:  r.Feasibility,
		Desirability: r.Desirability,
		Attention:    r.Attention,
	}
	if !metrics.InRange() {
		return llm.Rejected[models.SummarizedIssue](apperr.ReasonOutRange,
			"metrics outside [0, 1]: novelty=%g feasibility=%g desirability=%g attention=%g",
			r.Novelty, r.Feasibility, r.Desirability, r.Attention)
	}

	return llm.Valid(models.SummarizedIssue{
		IssueID:      issue.ID,
		SourceNumber: issue.Number,
		URL:          issue.URL,
		Title:        models.TruncateTitle(title),
		Summary:      summary,
		TopicArea:    strings.TrimSpace(r.TopicArea),
		Metrics:      metrics,
		NoiseFlag:    r.NoiseFlag || issue.IsNoise,
	})
}
