package group

import (
	"sort"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/pkg/models"
)

// ResolveConflicts makes cluster memberships pairwise disjoint. Clusters are visited
// in ascending cluster id order (stable for equal ids); an issue stays in the first
// cluster that claims it and is removed from every later one. Clusters left without
// members are dropped. The result is ordered by cluster id; the input is not modified.
func ResolveConflicts(clusters []models.IdeaCluster) ([]models.IdeaCluster, []int64) {
	sorted := make([]models.IdeaCluster, len(clusters))
	copy(sorted, clusters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ClusterID < sorted[j].ClusterID
	})

	owner := make(map[int64]struct{})
	conflicted := make(map[int64]struct{})
	out := make([]models.IdeaCluster, 0, len(sorted))
	for _, c := range sorted {
		kept := make([]int64, 0, len(c.MemberIssueIDs))
		for _, id := range c.MemberIssueIDs {
			if _, taken := owner[id]; taken {
				conflicted[id] = struct{}{}
				continue
			}
			owner[id] = struct{}{}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			continue
		}
		c.MemberIssueIDs = kept
		out = append(out, c)
	}
	return out, sortedIDs(conflicted)
}

// Singleton mirrors one summary as a single-member cluster with the given id.
func Singleton(id string, s models.SummarizedIssue) models.IdeaCluster {
	return models.IdeaCluster{
		ClusterID:           id,
		RepresentativeTitle: models.TruncateTitle(s.Title),
		Summary:             s.Summary,
		TopicArea:           s.TopicArea,
		MemberIssueIDs:      []int64{s.IssueID},
		Metrics:             models.MeanMetrics([]models.Metrics{s.Metrics}),
	}
}

// RepairCoverage appends a singleton for every summary that no cluster claims, in
// input order, and drops member ids that match no summary. It returns the repaired
// clusters and the ids that were missing.
func RepairCoverage(clusters []models.IdeaCluster, summaries []models.SummarizedIssue, allocate func(topic string) string) ([]models.IdeaCluster, []int64) {
	known := make(map[int64]struct{}, len(summaries))
	for _, s := range summaries {
		known[s.IssueID] = struct{}{}
	}

	claimed := make(map[int64]struct{})
	out := make([]models.IdeaCluster, 0, len(clusters))
	for _, c := range clusters {
		kept := make([]int64, 0, len(c.MemberIssueIDs))
		for _, id := range c.MemberIssueIDs {
			if _, ok := known[id]; ok {
				kept = append(kept, id)
				claimed[id] = struct{}{}
			}
		}
		if len(kept) == 0 {
			continue
		}
		c.MemberIssueIDs = kept
		out = append(out, c)
	}

	var missing []int64
	for _, s := range summaries {
		if _, ok := claimed[s.IssueID]; ok {
			continue
		}
		missing = append(missing, s.IssueID)
		claimed[s.IssueID] = struct{}{}
		out = append(out, Singleton(allocate(s.TopicArea), s))
	}
	return out, missing
}

// AggregateMetrics sets each cluster's metrics to the rounded mean of its members.
func AggregateMetrics(clusters []models.IdeaCluster, summaries []models.SummarizedIssue) {
	byID := make(map[int64]models.Metrics, len(summaries))
	for _, s := range summaries {
		byID[s.IssueID] = s.Metrics
	}
	for i := range clusters {
		ms := make([]models.Metrics, 0, len(clusters[i].MemberIssueIDs))
		for _, id := range clusters[i].MemberIssueIDs {
			if m, ok := byID[id]; ok {
				ms = append(ms, m)
			}
		}
		clusters[i].Metrics = models.MeanMetrics(ms)
	}
}

// CheckPartition reports ids of summaries that are missing from clusters or claimed
// more than once. A nil result means the clusters partition the summaries exactly.
func CheckPartition(clusters []models.IdeaCluster, summaries []models.SummarizedIssue) *apperr.CoverageError {
	count := make(map[int64]int, len(summaries))
	for _, c := range clusters {
		for _, id := range c.MemberIssueIDs {
			count[id]++
		}
	}
	cov := &apperr.CoverageError{}
	for _, s := range summaries {
		switch n := count[s.IssueID]; {
		case n == 0:
			cov.Missing = append(cov.Missing, s.IssueID)
		case n > 1:
			cov.Duplicated = append(cov.Duplicated, s.IssueID)
		}
	}
	if cov.Empty() {
		return nil
	}
	return cov
}

func sortedIDs(set map[int64]struct{}) []int64 {
	if len(set) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
