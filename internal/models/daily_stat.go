package models

import "time"

// DailyStat is a precomputed per-contributor-per-day rollup. It is a cache
// over Task and Review history: the sync engine deletes and regenerates the
// affected date window after every pass, so any row is reproducible from
// the normalized tables.
type DailyStat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	EntityID  uint      `gorm:"uniqueIndex:idx_daily_stats_entity_date_role"`
	Date      time.Time `gorm:"type:date;uniqueIndex:idx_daily_stats_entity_date_role"`
	Role      string    `gorm:"size:16;uniqueIndex:idx_daily_stats_entity_date_role"`
	ProjectID uint      `gorm:"index"`

	// Trainer-side counters.
	Submissions int `gorm:"default:0"`
	NewTasks    int `gorm:"default:0"`
	Rework      int `gorm:"default:0"`
	UniqueTasks int `gorm:"default:0"`

	// Reviewer-side counters. For trainers these hold reviews received.
	ReviewsDone int     `gorm:"default:0"`
	ScoreSum    float64 `gorm:"default:0"`
	ReviewCount int     `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
