// Package report assembles the final report and renders it as JSON, Markdown
// and terminal tables.
package report

import (
	"math"
	"time"

	"github.com/thebtf/ideaforge/internal/rank"
	"github.com/thebtf/ideaforge/pkg/models"
)

// Input is everything Build needs from a pipeline run.
type Input struct {
	GeneratedAt time.Time
	RunKey      string
	Ranked      []models.RankedIdea
	Summaries   []models.SummarizedIssue
	Issues      []models.NormalizedIssue
	Weights     models.Weights
}

// Build joins ranked ideas with their source issues and computes aggregate counts.
func Build(in Input) models.Report {
	summaries := make(map[int64]models.SummarizedIssue, len(in.Summaries))
	for _, s := range in.Summaries {
		summaries[s.IssueID] = s
	}
	issues := make(map[int64]models.NormalizedIssue, len(in.Issues))
	for _, i := range in.Issues {
		issues[i.ID] = i
	}

	stats := models.ReportStats{
		TotalIssues:   len(in.Issues),
		TotalClusters: len(in.Ranked),
	}
	ideas := make([]models.ReportIdea, 0, len(in.Ranked))
	for _, r := range in.Ranked {
		idea := models.ReportIdea{
			RankedIdea:    r,
			Priority:      rank.Priority(r),
			SourceNumbers: make([]int, 0, len(r.MemberIssueIDs)),
			SourceURLs:    make([]string, 0, len(r.MemberIssueIDs)),
			SourceTitles:  make([]string, 0, len(r.MemberIssueIDs)),
		}
		for _, id := range r.MemberIssueIDs {
			s, hasSummary := summaries[id]
			issue, hasIssue := issues[id]
			switch {
			case hasIssue:
				idea.SourceNumbers = append(idea.SourceNumbers, issue.Number)
				idea.SourceURLs = append(idea.SourceURLs, issue.URL)
				idea.SourceTitles = append(idea.SourceTitles, issue.Title)
			case hasSummary:
				idea.SourceNumbers = append(idea.SourceNumbers, s.SourceNumber)
				idea.SourceURLs = append(idea.SourceURLs, s.URL)
				idea.SourceTitles = append(idea.SourceTitles, s.Title)
			}
			if (hasSummary && s.NoiseFlag) || (hasIssue && issue.IsNoise) {
				idea.HasNoiseMembers = true
			}
		}

		stats.GroupedIssues += len(r.MemberIssueIDs)
		if r.IsSingleton() {
			stats.SingletonClusters++
		}
		ideas = append(ideas, idea)
	}
	if stats.GroupedIssues > 0 {
		ratio := float64(stats.GroupedIssues-stats.TotalClusters) / float64(stats.GroupedIssues)
		stats.MergeRatio = math.Round(ratio*1e4) / 1e4
	}

	return models.Report{
		GeneratedAt: in.GeneratedAt.UTC(),
		RunKey:      in.RunKey,
		Ideas:       ideas,
		Stats:       stats,
		Weights:     in.Weights,
	}
}

// Top returns the first n ideas, or all of them when n is not positive.
func Top(r models.Report, n int) []models.ReportIdea {
	if n <= 0 || n >= len(r.Ideas) {
		return r.Ideas
	}
	return r.Ideas[:n]
}
