package ingest

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/podlens/podlens/internal/models"
)

// startRun inserts a running SyncRun row and returns its ID.
func (e *Engine) startRun(table string, trigger Trigger) (string, error) {
	run := models.SyncRun{
		ID:        uuid.NewString(),
		TableName: table,
		Trigger:   string(trigger),
		Status:    models.SyncStatusRunning,
		StartedAt: time.Now(),
	}
	if err := e.db.Create(&run).Error; err != nil {
		return "", fmt.Errorf("ingest: record sync run for %s: %w", table, err)
	}
	return run.ID, nil
}

// finishRun marks a SyncRun row complete. The log is append-only; this is
// the single permitted update. Failures here are logged, not surfaced,
// since the table sync outcome already happened.
func (e *Engine) finishRun(runID string, rows int, syncErr error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      models.SyncStatusSuccess,
		"rows_synced": rows,
		"finished_at": now,
	}
	if syncErr != nil {
		updates["status"] = models.SyncStatusFailed
		updates["error"] = syncErr.Error()
	}
	if err := e.db.Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		log.Printf("ingest: finish sync run %s: %v", runID, err)
	}
}
