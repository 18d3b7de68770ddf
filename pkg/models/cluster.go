package models

import "time"

// IdeaCluster groups one or more summarized issues that describe the same idea.
type IdeaCluster struct {
	ClusterID           string  `json:"cluster_id"`
	RepresentativeTitle string  `json:"representative_title"`
	Summary             string  `json:"summary"`
	TopicArea           string  `json:"topic_area"`
	MemberIssueIDs      []int64 `json:"member_issue_ids"`
	Metrics
}

// IsSingleton reports whether the cluster has exactly one member.
func (c IdeaCluster) IsSingleton() bool {
	return len(c.MemberIssueIDs) == 1
}

// RankedIdea is an IdeaCluster with its composite score and 1-based rank.
type RankedIdea struct {
	IdeaCluster
	CompositeScore float64 `json:"composite_score"`
	Rank           int     `json:"rank"`
}

// Weights configures the composite score. The four weights must sum to 1.0 within 0.01.
type Weights struct {
	Novelty      float64 `json:"novelty" yaml:"novelty"`
	Feasibility  float64 `json:"feasibility" yaml:"feasibility"`
	Desirability float64 `json:"desirability" yaml:"desirability"`
	Attention    float64 `json:"attention" yaml:"attention"`
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Novelty + w.Feasibility + w.Desirability + w.Attention
}

// DefaultWeights favours desirability slightly over the other metrics.
var DefaultWeights = Weights{
	Novelty:      0.25,
	Feasibility:  0.25,
	Desirability: 0.30,
	Attention:    0.20,
}

// ReportIdea is one entry of the final report.
type ReportIdea struct {
	RankedIdea
	Priority        string   `json:"priority"`
	SourceNumbers   []int    `json:"source_issue_numbers"`
	SourceURLs      []string `json:"source_issue_urls"`
	SourceTitles    []string `json:"source_issue_titles"`
	HasNoiseMembers bool     `json:"has_noise_members"`
}

// ReportStats holds aggregate counts over the ranked ideas.
type ReportStats struct {
	TotalIssues       int     `json:"total_issues"`
	GroupedIssues     int     `json:"grouped_issues"`
	TotalClusters     int     `json:"total_clusters"`
	SingletonClusters int     `json:"singleton_clusters"`
	MergeRatio        float64 `json:"merge_ratio"`
}

// Report is the data handed to report writers.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	RunKey      string       `json:"run_key"`
	Ideas       []ReportIdea `json:"ideas"`
	Stats       ReportStats  `json:"stats"`
	Weights     Weights      `json:"weights"`
}
