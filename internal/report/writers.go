package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/thebtf/ideaforge/pkg/models"
)

// Report file names inside the output directory.
const (
	JSONFile     = "ideas.json"
	MarkdownFile = "top-ideas.md"
)

// DefaultTopN is the number of ideas in the Markdown report and the terminal table.
const DefaultTopN = 10

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, r models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// ReadJSON decodes a report written by WriteJSON.
func ReadJSON(rd io.Reader) (models.Report, error) {
	var r models.Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return models.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// WriteMarkdown writes a human-readable report of the top n ideas.
func WriteMarkdown(w io.Writer, r models.Report, n int) error {
	var b strings.Builder
	top := Top(r, n)

	b.WriteString("# Top Ideas Report\n\n")
	b.WriteString("This report summarizes the highest-priority ideas derived from GitHub issues.\n")
	fmt.Fprintf(&b, "Generated from %d issues, grouped into %d clusters (%d singletons, merge ratio %.2f).\n\n",
		r.Stats.TotalIssues, r.Stats.TotalClusters, r.Stats.SingletonClusters, r.Stats.MergeRatio)

	b.WriteString("## Scoring Configuration\n\n")
	fmt.Fprintf(&b, "- **Novelty Weight**: %.2f\n", r.Weights.Novelty)
	fmt.Fprintf(&b, "- **Feasibility Weight**: %.2f\n", r.Weights.Feasibility)
	fmt.Fprintf(&b, "- **Desirability Weight**: %.2f\n", r.Weights.Desirability)
	fmt.Fprintf(&b, "- **Attention Weight**: %.2f\n\n", r.Weights.Attention)

	if len(top) > 0 {
		b.WriteString("## At a Glance\n\n")
		b.WriteString(newTable(top).RenderMarkdown())
		b.WriteString("\n\n")
	}
	b.WriteString("---\n\n")

	for _, idea := range top {
		fmt.Fprintf(&b, "## %d. %s\n\n", idea.Rank, idea.RepresentativeTitle)
		fmt.Fprintf(&b, "**Priority**: %s\n\n", idea.Priority)
		fmt.Fprintf(&b, "**Topic Area**: %s\n\n", idea.TopicArea)
		if idea.HasNoiseMembers {
			b.WriteString("_Some source issues were flagged as noise._\n\n")
		}
		fmt.Fprintf(&b, "### Summary\n\n%s\n\n", idea.Summary)
		b.WriteString("### Metrics\n\n")
		fmt.Fprintf(&b, "- **Composite Score**: %.2f / 1.00\n", idea.CompositeScore)
		fmt.Fprintf(&b, "- **Novelty**: %.2f / 1.00\n", idea.Novelty)
		fmt.Fprintf(&b, "- **Feasibility**: %.2f / 1.00\n", idea.Feasibility)
		fmt.Fprintf(&b, "- **Desirability**: %.2f / 1.00\n", idea.Desirability)
		fmt.Fprintf(&b, "- **Attention**: %.2f / 1.00\n\n", idea.Attention)
		b.WriteString("### Source Issues\n\n")
		for i, number := range idea.SourceNumbers {
			fmt.Fprintf(&b, "- [#%d](%s) - %s\n", number, idea.SourceURLs[i], idea.SourceTitles[i])
		}
		b.WriteString("\n---\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderTable renders the top n ideas as a terminal table.
func RenderTable(r models.Report, n int) string {
	t := newTable(Top(r, n))
	t.SetStyle(table.StyleLight)
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d clusters", r.Stats.TotalClusters), "", fmt.Sprintf("%d issues", r.Stats.GroupedIssues)})
	return t.Render()
}

func newTable(ideas []models.ReportIdea) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Score", "Priority", "Idea", "Topic", "Issues"})
	for _, idea := range ideas {
		t.AppendRow(table.Row{
			idea.Rank,
			fmt.Sprintf("%.2f", idea.CompositeScore),
			idea.Priority,
			idea.RepresentativeTitle,
			idea.TopicArea,
			len(idea.MemberIssueIDs),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 4, WidthMax: 60},
		{Number: 6, Align: text.AlignRight},
	})
	return t
}

// WriteFiles writes ideas.json and top-ideas.md into dir and returns their paths.
// Each file is written to a temporary name first and renamed into place.
func WriteFiles(dir string, r models.Report, n int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	jsonPath := filepath.Join(dir, JSONFile)
	if err := writeAtomic(jsonPath, func(w io.Writer) error { return WriteJSON(w, r) }); err != nil {
		return nil, err
	}
	mdPath := filepath.Join(dir, MarkdownFile)
	if err := writeAtomic(mdPath, func(w io.Writer) error { return WriteMarkdown(w, r, n) }); err != nil {
		return nil, err
	}
	return []string{jsonPath, mdPath}, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
