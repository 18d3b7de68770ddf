package gorm

import (
	"context"
	"strings"

	"github.com/thebtf/ideaforge/internal/orchestrator"
)

var _ orchestrator.RunRecorder = (*Store)(nil)

// RecordRun stores the outcome of one pipeline run.
func (s *Store) RecordRun(ctx context.Context, rec orchestrator.RunRecord) error {
	row := PipelineRun{
		ID:              rec.RunID,
		RunKey:          rec.RunKey,
		Status:          "succeeded",
		LoadedStages:    strings.Join(rec.LoadedStages, ","),
		Issues:          rec.Issues,
		Summaries:       rec.Summaries,
		Clusters:        rec.Clusters,
		StartedAtEpoch:  rec.StartedAt.UnixMilli(),
		FinishedAtEpoch: rec.FinishedAt.UnixMilli(),
	}
	if rec.Err != nil {
		row.Status = "failed"
		row.Error = rec.Err.Error()
		row.FailedStage = rec.FailedStage
	}
	return s.DB.WithContext(ctx).Create(&row).Error
}

// RecentRuns returns the latest runs for runKey, newest first.
func (s *Store) RecentRuns(ctx context.Context, runKey string, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []PipelineRun
	err := s.DB.WithContext(ctx).
		Where("run_key = ?", runKey).
		Order("started_at_epoch DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
