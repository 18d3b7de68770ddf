package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/rank"
	"github.com/thebtf/ideaforge/pkg/models"
)

type ReportSuite struct {
	suite.Suite
	input Input
}

func (s *ReportSuite) SetupTest() {
	issues := []models.NormalizedIssue{
		{ID: 1, Number: 11, Title: "Add dark mode", URL: "https://example.com/11"},
		{ID: 2, Number: 12, Title: "Dark theme please", URL: "https://example.com/12", IsNoise: true},
		{ID: 3, Number: 13, Title: "Export to CSV", URL: "https://example.com/13"},
	}
	summaries := []models.SummarizedIssue{
		{IssueID: 1, SourceNumber: 11, Title: "Dark mode", URL: "https://example.com/11"},
		{IssueID: 2, SourceNumber: 12, Title: "Dark theme", URL: "https://example.com/12"},
		{IssueID: 3, SourceNumber: 13, Title: "CSV export", URL: "https://example.com/13"},
	}
	r, err := rank.New(models.DefaultWeights)
	s.Require().NoError(err)
	ranked := r.Rank([]models.IdeaCluster{
		{
			ClusterID: "ui-001", RepresentativeTitle: "Dark mode", Summary: "Users want a dark theme.",
			TopicArea: "ui", MemberIssueIDs: []int64{1, 2},
			Metrics: models.Metrics{Novelty: 0.4, Feasibility: 0.8, Desirability: 0.9, Attention: 0.5},
		},
		{
			ClusterID: "data-001", RepresentativeTitle: "CSV export", Summary: "Export data as CSV.",
			TopicArea: "data", MemberIssueIDs: []int64{3},
			Metrics: models.Metrics{Novelty: 0.2, Feasibility: 0.5, Desirability: 0.4, Attention: 0.1},
		},
	})

	s.input = Input{
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		RunKey:      "acme_widgets",
		Ranked:      ranked,
		Summaries:   summaries,
		Issues:      issues,
		Weights:     models.DefaultWeights,
	}
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportSuite))
}

func (s *ReportSuite) TestBuild() {
	r := Build(s.input)

	s.Equal("acme_widgets", r.RunKey)
	s.Require().Len(r.Ideas, 2)

	top := r.Ideas[0]
	s.Equal("ui-001", top.ClusterID)
	s.Equal(1, top.Rank)
	s.Equal(rank.PriorityHigh, top.Priority)
	s.Equal([]int{11, 12}, top.SourceNumbers)
	s.Equal([]string{"https://example.com/11", "https://example.com/12"}, top.SourceURLs)
	s.Equal([]string{"Add dark mode", "Dark theme please"}, top.SourceTitles)
	s.True(top.HasNoiseMembers)

	s.False(r.Ideas[1].HasNoiseMembers)
	s.Equal(rank.PriorityLow, r.Ideas[1].Priority)

	s.Equal(models.ReportStats{
		TotalIssues:       3,
		GroupedIssues:     3,
		TotalClusters:     2,
		SingletonClusters: 1,
		MergeRatio:        0.3333,
	}, r.Stats)
}

func (s *ReportSuite) TestBuildFallsBackToSummaries() {
	s.input.Issues = nil
	s.input.Summaries[2].NoiseFlag = true

	r := Build(s.input)

	s.Equal([]int{13}, r.Ideas[1].SourceNumbers)
	s.Equal([]string{"CSV export"}, r.Ideas[1].SourceTitles)
	s.True(r.Ideas[1].HasNoiseMembers)
	s.Equal(0, r.Stats.TotalIssues)
}

func (s *ReportSuite) TestBuildEmpty() {
	r := Build(Input{RunKey: "acme_widgets", Weights: models.DefaultWeights})

	s.Empty(r.Ideas)
	s.NotNil(r.Ideas)
	s.Zero(r.Stats.MergeRatio)
}

func (s *ReportSuite) TestJSONRoundTrip() {
	r := Build(s.input)

	var buf bytes.Buffer
	s.Require().NoError(WriteJSON(&buf, r))
	s.Contains(buf.String(), `"source_issue_numbers": [`)
	s.Contains(buf.String(), `"composite_score"`)

	got, err := ReadJSON(&buf)
	s.Require().NoError(err)
	s.Equal(r, got)
}

func (s *ReportSuite) TestMarkdown() {
	var buf bytes.Buffer
	s.Require().NoError(WriteMarkdown(&buf, Build(s.input), 1))
	md := buf.String()

	s.True(strings.HasPrefix(md, "# Top Ideas Report\n"))
	s.Contains(md, "- **Desirability Weight**: 0.30")
	s.Contains(md, "## 1. Dark mode")
	s.Contains(md, "**Priority**: High")
	s.Contains(md, "- [#11](https://example.com/11) - Add dark mode")
	s.Contains(md, "flagged as noise")
	s.NotContains(md, "## 2. CSV export")
}

func (s *ReportSuite) TestRenderTable() {
	out := RenderTable(Build(s.input), 0)

	s.Contains(out, "Dark mode")
	s.Contains(out, "CSV export")
	s.Contains(out, "2 clusters")
	s.Contains(out, "┌")
}

func TestTop(t *testing.T) {
	r := models.Report{Ideas: make([]models.ReportIdea, 5)}

	assert.Len(t, Top(r, 0), 5)
	assert.Len(t, Top(r, 3), 3)
	assert.Len(t, Top(r, 10), 5)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := models.Report{RunKey: "acme_widgets", Ideas: []models.ReportIdea{}, Weights: models.DefaultWeights}

	paths, err := WriteFiles(dir, r, DefaultTopN)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, JSONFile), filepath.Join(dir, MarkdownFile)}, paths)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}
