package gorm

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/thebtf/ideaforge/internal/cache"
	"github.com/thebtf/ideaforge/internal/cache/cachetest"
	"github.com/thebtf/ideaforge/internal/orchestrator"
)

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("IDEAFORGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IDEAFORGE_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{DSN: testDSN(t), MaxConns: 4, LogLevel: logger.Silent})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() {
		store.DB.Exec("DELETE FROM cache_entries")
		store.DB.Exec("DELETE FROM pipeline_runs")
		_ = store.Close()
	})
	return store
}

type conformanceSuite struct {
	cachetest.StoreSuite
}

func (s *conformanceSuite) SetupTest() {
	s.NewStore = func() cache.Store { return openTestStore(s.T()) }
}

func TestConformanceSuite(t *testing.T) {
	suite.Run(t, new(conformanceSuite))
}

func TestMigrationsCreateTables(t *testing.T) {
	store := openTestStore(t)
	for _, table := range []string{"cache_entries", "pipeline_runs"} {
		assert.True(t, store.DB.Migrator().HasTable(table), table)
	}
}

func TestRecordRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	ok := orchestrator.RunRecord{
		RunID: uuid.NewString(), RunKey: "octo_repo", Issues: 3, Summaries: 3, Clusters: 2,
		LoadedStages: []string{"normalize"}, StartedAt: start, FinishedAt: start.Add(time.Second),
	}
	failed := orchestrator.RunRecord{
		RunID: uuid.NewString(), RunKey: "octo_repo", FailedStage: "summarize",
		Err: errors.New("boom"), StartedAt: start.Add(time.Second), FinishedAt: start.Add(2 * time.Second),
	}
	assert.NoError(t, store.RecordRun(ctx, ok))
	assert.NoError(t, store.RecordRun(ctx, failed))

	runs, err := store.RecentRuns(ctx, "octo_repo", 5)
	assert.NoError(t, err)
	if assert.Len(t, runs, 2) {
		assert.Equal(t, "failed", runs[0].Status)
		assert.Equal(t, "summarize", runs[0].FailedStage)
		assert.Equal(t, "succeeded", runs[1].Status)
		assert.Equal(t, "normalize", runs[1].LoadedStages)
	}
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "cache_entries", CacheEntry{}.TableName())
	assert.Equal(t, "pipeline_runs", PipelineRun{}.TableName())
}
