package group

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/ideaforge/internal/apperr"
	"github.com/thebtf/ideaforge/internal/llm"
	"github.com/thebtf/ideaforge/pkg/models"
)

type clusterReply struct {
	ClusterID           string  `json:"cluster_id"`
	RepresentativeTitle string  `json:"representative_title"`
	Summary             string  `json:"summary"`
	TopicArea           string  `json:"topic_area"`
	MemberIssueIDs      []int64 `json:"member_issue_ids"`
}

// ParseClusters turns a grouper reply into clusters over batch. The reply may be an
// object with a "clusters" array or a bare array. Every cluster must have an id and
// a title, and at least one member; members must be unique within the cluster and
// belong to batch. Metrics in the reply are ignored. Clusters may still overlap;
// overlaps are resolved by ResolveConflicts.
func ParseClusters(text string, batch []models.SummarizedIssue) llm.Outcome[[]models.IdeaCluster] {
	raw, failure := llm.ExtractJSON(text).Unpack()
	if failure != nil {
		return llm.RejectedWith[[]models.IdeaCluster](failure)
	}

	var items []json.RawMessage
	switch trimmed := bytes.TrimSpace(raw); {
	case bytes.HasPrefix(trimmed, []byte("[")):
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonParse, "decode cluster array: %v", err)
		}
	case bytes.HasPrefix(trimmed, []byte("{")):
		var envelope struct {
			Clusters *[]json.RawMessage `json:"clusters"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "clusters is not an array: %v", err)
		}
		if envelope.Clusters == nil {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "reply has no clusters field")
		}
		items = *envelope.Clusters
	default:
		return llm.Rejected[[]models.IdeaCluster](apperr.ReasonParse, "reply is neither an object nor an array")
	}

	byID := make(map[int64]models.SummarizedIssue, len(batch))
	for _, s := range batch {
		byID[s.IssueID] = s
	}

	clusters := make([]models.IdeaCluster, 0, len(items))
	for i, item := range items {
		var c clusterReply
		if err := json.Unmarshal(item, &c); err != nil {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "cluster %d: %v", i, err)
		}

		id := strings.TrimSpace(c.ClusterID)
		if id == "" {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "cluster %d: empty cluster_id", i)
		}
		title := strings.TrimSpace(c.RepresentativeTitle)
		if title == "" {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "cluster %q: empty representative_title", id)
		}
		if len(c.MemberIssueIDs) == 0 {
			return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "cluster %q: no members", id)
		}

		seen := make(map[int64]struct{}, len(c.MemberIssueIDs))
		for _, member := range c.MemberIssueIDs {
			if _, dup := seen[member]; dup {
				return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "cluster %q: issue %d listed twice", id, member)
			}
			seen[member] = struct{}{}
			if _, ok := byID[member]; !ok {
				return llm.Rejected[[]models.IdeaCluster](apperr.ReasonSchema, "cluster %q: unknown issue %d", id, member)
			}
		}

		first := byID[c.MemberIssueIDs[0]]
		summary := strings.Join(strings.Fields(c.Summary), " ")
		if summary == "" {
			summary = first.Summary
		}
		topic := strings.TrimSpace(c.TopicArea)
		if topic == "" {
			topic = first.TopicArea
		}

		members := make([]int64, len(c.MemberIssueIDs))
		copy(members, c.MemberIssueIDs)
		clusters = append(clusters, models.IdeaCluster{
			ClusterID:           id,
			RepresentativeTitle: models.TruncateTitle(title),
			Summary:             summary,
			TopicArea:           topic,
			MemberIssueIDs:      members,
		})
	}
	return llm.Valid(clusters)
}
