package gorm

import (
	"time"

	"gorm.io/gorm"
)

// CacheEntry is one key-value entry of the cache store.
type CacheEntry struct {
	Key            string `gorm:"primaryKey;type:text"`
	Value          []byte `gorm:"type:bytea;not null"`
	UpdatedAtEpoch int64  `gorm:"index:idx_cache_entries_updated,sort:desc;not null"`
}

func (CacheEntry) TableName() string { return "cache_entries" }

// PipelineRun is one recorded pipeline execution.
type PipelineRun struct {
	ID              string `gorm:"primaryKey;type:text"`
	RunKey          string `gorm:"index;not null"`
	Status          string `gorm:"type:text;check:status IN ('succeeded', 'failed');not null"`
	FailedStage     string
	Error           string
	LoadedStages    string
	Issues          int
	Summaries       int
	Clusters        int
	StartedAtEpoch  int64 `gorm:"index:idx_pipeline_runs_started,sort:desc;not null"`
	FinishedAtEpoch int64 `gorm:"not null"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

// BeforeCreate hook to ensure timestamps are set.
func (r *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UnixMilli()
	if r.StartedAtEpoch == 0 {
		r.StartedAtEpoch = now
	}
	if r.FinishedAtEpoch == 0 {
		r.FinishedAtEpoch = now
	}
	return nil
}
