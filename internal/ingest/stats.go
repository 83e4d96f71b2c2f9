package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/podlens/podlens/internal/models"
	"gorm.io/gorm"
)

// statsTable names the derived rollup in SyncRun logs and results.
const statsTable = "daily_stats"

// reviewFact is one review joined with its task's attribution columns.
type reviewFact struct {
	TaskID        uint64
	ReviewerID    *uint
	Score         float64
	ReviewedAt    time.Time
	CurrentUserID *uint
	ProjectID     uint
}

// recomputeStats deletes and regenerates DailyStat rows for the recompute
// window. Full regeneration, not incremental patching, so the rollup can
// never drift from the raw tables.
func (e *Engine) recomputeStats(ctx context.Context, trigger Trigger) TableResult {
	runID, logErr := e.startRun(statsTable, trigger)
	if logErr != nil {
		return TableResult{Table: statsTable, Status: StatusFailed, Error: logErr.Error()}
	}

	to := dateOnly(time.Now())
	from := dateOnly(time.Now().Add(-e.window))
	rows, err := RecomputeWindow(e.db, from, to)
	if err != nil {
		e.finishRun(runID, 0, err)
		return TableResult{Table: statsTable, Status: StatusFailed, Error: err.Error()}
	}

	e.finishRun(runID, rows, nil)
	return TableResult{Table: statsTable, Status: StatusSuccess, RowsSynced: rows}
}

// RecomputeWindow regenerates the DailyStat rows for [from, to] from the
// Task and Review tables. Exported so operators can rebuild the rollup
// out-of-band.
func RecomputeWindow(db *gorm.DB, from, to time.Time) (int, error) {
	stats, err := buildStats(db, from, to)
	if err != nil {
		return 0, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date >= ? AND date <= ?", from, to).
			Delete(&models.DailyStat{}).Error; err != nil {
			return err
		}
		if len(stats) == 0 {
			return nil
		}
		return tx.CreateInBatches(stats, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: recompute daily stats: %w", err)
	}
	return len(stats), nil
}

// buildStats derives the rollup rows for the window. A task's first review
// ever marks a new-task submission on that day; every later review of the
// same task counts as rework on its own day.
func buildStats(db *gorm.DB, from, to time.Time) ([]models.DailyStat, error) {
	var facts []reviewFact
	err := db.Table("reviews").
		Select("reviews.task_id, reviews.reviewer_id, reviews.score, reviews.reviewed_at, tasks.current_user_id, tasks.project_id").
		Joins("JOIN tasks ON tasks.id = reviews.task_id").
		Where("reviews.reviewed_at >= ? AND reviews.reviewed_at < ?", from, to.Add(24*time.Hour)).
		Scan(&facts).Error
	if err != nil {
		return nil, fmt.Errorf("ingest: load review facts: %w", err)
	}

	// First review per task is derived in Go rather than with MIN(): the
	// scan must consider all reviews, not just the window, or a task first
	// reviewed before the window would count its in-window reviews as new.
	type reviewTime struct {
		TaskID     uint64
		ReviewedAt time.Time
	}
	var times []reviewTime
	err = db.Table("reviews").
		Select("task_id, reviewed_at").
		Scan(&times).Error
	if err != nil {
		return nil, fmt.Errorf("ingest: load first reviews: %w", err)
	}
	firstAt := make(map[uint64]time.Time, len(times))
	for _, r := range times {
		if cur, ok := firstAt[r.TaskID]; !ok || r.ReviewedAt.Before(cur) {
			firstAt[r.TaskID] = r.ReviewedAt
		}
	}

	type statKey struct {
		entity uint
		date   string
		role   string
	}
	stats := make(map[statKey]*models.DailyStat)
	seenTasks := make(map[statKey]map[uint64]bool)

	get := func(k statKey, day time.Time, projectID uint) *models.DailyStat {
		s, ok := stats[k]
		if !ok {
			s = &models.DailyStat{
				EntityID:  k.entity,
				Date:      day,
				Role:      k.role,
				ProjectID: projectID,
			}
			stats[k] = s
		}
		return s
	}

	for _, f := range facts {
		day := dateOnly(f.ReviewedAt)
		ds := day.Format("2006-01-02")

		if f.CurrentUserID != nil {
			k := statKey{entity: *f.CurrentUserID, date: ds, role: models.RoleTrainer}
			s := get(k, day, f.ProjectID)
			s.Submissions++
			if f.ReviewedAt.Equal(firstAt[f.TaskID]) {
				s.NewTasks++
			} else {
				s.Rework++
			}
			s.ScoreSum += f.Score
			s.ReviewCount++
			if seenTasks[k] == nil {
				seenTasks[k] = make(map[uint64]bool)
			}
			if !seenTasks[k][f.TaskID] {
				seenTasks[k][f.TaskID] = true
				s.UniqueTasks++
			}
		}

		if f.ReviewerID != nil {
			k := statKey{entity: *f.ReviewerID, date: ds, role: models.RoleReviewer}
			s := get(k, day, f.ProjectID)
			s.ReviewsDone++
			s.ScoreSum += f.Score
			s.ReviewCount++
		}
	}

	out := make([]models.DailyStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, *s)
	}
	// Deterministic insert order keeps reruns byte-identical.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Role < out[j].Role
	})
	return out, nil
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
