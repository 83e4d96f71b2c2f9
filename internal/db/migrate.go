package db

import (
	"fmt"

	"github.com/podlens/podlens/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Contributor{},
		&models.Task{},
		&models.Review{},
		&models.TimeEntry{},
		&models.WorkItem{},
		&models.DailyStat{},
		&models.Setting{},
		&models.SyncRun{},
	}
}

// AutoMigrate creates or updates all reporting-store tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
