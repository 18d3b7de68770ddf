package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_cache_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CacheEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("cache_entries")
			},
		},
		{
			ID: "002_pipeline_runs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PipelineRun{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("pipeline_runs")
			},
		},
	})
	return m.Migrate()
}
