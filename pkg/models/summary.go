package models

import (
	"math"
	"unicode/utf8"
)

// MaxTitleLength is the maximum length, in characters, of summary and cluster titles.
const MaxTitleLength = 100

// Metrics holds the four quantitative scores of a summary or cluster.
// Every value lies in [0.0, 1.0].
type Metrics struct {
	Novelty      float64 `json:"novelty"`
	Feasibility  float64 `json:"feasibility"`
	Desirability float64 `json:"desirability"`
	Attention    float64 `json:"attention"`
}

// InRange reports whether all four metrics lie in [0.0, 1.0].
func (m Metrics) InRange() bool {
	for _, v := range []float64{m.Novelty, m.Feasibility, m.Desirability, m.Attention} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// MeanMetrics returns the arithmetic mean of each metric, rounded to two decimals.
// An empty input yields zero metrics.
func MeanMetrics(ms []Metrics) Metrics {
	if len(ms) == 0 {
		return Metrics{}
	}
	var sum Metrics
	for _, m := range ms {
		sum.Novelty += m.Novelty
		sum.Feasibility += m.Feasibility
		sum.Desirability += m.Desirability
		sum.Attention += m.Attention
	}
	n := float64(len(ms))
	return Metrics{
		Novelty:      Round2(sum.Novelty / n),
		Feasibility:  Round2(sum.Feasibility / n),
		Desirability: Round2(sum.Desirability / n),
		Attention:    Round2(sum.Attention / n),
	}
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TruncateTitle shortens s to at most MaxTitleLength characters.
func TruncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	return string([]rune(s)[:MaxTitleLength])
}

// SummarizedIssue is the structured summary of one NormalizedIssue.
type SummarizedIssue struct {
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	TopicArea    string `json:"topic_area"`
	URL          string `json:"raw_issue_url"`
	IssueID      int64  `json:"issue_id"`
	SourceNumber int    `json:"source_number"`
	Metrics
	NoiseFlag bool `json:"noise_flag"`
}
