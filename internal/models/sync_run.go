package models

import "time"

// SyncRun statuses.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// SyncRun is the append-only log of one table's reconciliation pass. Rows
// are inserted when the pass starts and updated exactly once to mark
// completion.
type SyncRun struct {
	ID         string `gorm:"primaryKey;size:36"`
	TableName  string `gorm:"size:32;index"`
	Trigger    string `gorm:"size:16"`
	Status     string `gorm:"size:16;index"`
	RowsSynced int    `gorm:"default:0"`
	Error      string `gorm:"type:text"`
	StartedAt  time.Time
	FinishedAt *time.Time
}
