package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/podlens/podlens/internal/models"
	"github.com/podlens/podlens/internal/settings"
	"gorm.io/gorm"
)

// ThroughputKey is the config key used for throughput-target lookups.
const ThroughputKey = "daily_throughput"

// Service runs read-side metric queries.
type Service struct {
	db       *gorm.DB
	settings *settings.Store
}

// New creates an aggregation Service.
func New(db *gorm.DB, st *settings.Store) *Service {
	return &Service{db: db, settings: st}
}

// Filters narrows a metric query. Zero values mean no filter. Queries with
// no matching data return empty results, not errors.
type Filters struct {
	ProjectID uint
	EntityID  uint
	From      time.Time
	To        time.Time
}

// Metrics is the shared derived-metric block. Ratios are recomputed from
// summed numerators and denominators at every rollup level; averages of
// averages are never taken. Nil pointers mean the denominator was zero.
type Metrics struct {
	Submissions    int      `json:"submissions"`
	UniqueTasks    int      `json:"unique_tasks"`
	NewTasks       int      `json:"new_tasks"`
	Rework         int      `json:"rework"`
	DaysActive     int      `json:"days_active"`
	AvgRework      float64  `json:"avg_rework"`
	ReworkPercent  *float64 `json:"rework_percent"`
	AvgRating      *float64 `json:"avg_rating"`
	MergedExpAHT   *float64 `json:"merged_exp_aht"`
	AccountedHours float64  `json:"accounted_hours"`
	TrackedHours   float64  `json:"tracked_hours"`
	Efficiency     *float64 `json:"efficiency"`
	Target         *float64 `json:"target"`
	Achievement    *float64 `json:"achievement_percent"`
}

// entitySums holds summed DailyStat numerators for one entity.
type entitySums struct {
	EntityID    uint
	ProjectID   uint
	Submissions int
	UniqueTasks int
	NewTasks    int
	Rework      int
	ReviewsDone int
	ScoreSum    float64
	ReviewCount int
	DaysActive  int
}

// sums groups DailyStat rows by entity for one role.
func (s *Service) sums(ctx context.Context, role string, f Filters) ([]entitySums, error) {
	q := s.db.WithContext(ctx).Model(&models.DailyStat{}).
		Select(`entity_id,
			MAX(project_id) AS project_id,
			SUM(submissions) AS submissions,
			SUM(unique_tasks) AS unique_tasks,
			SUM(new_tasks) AS new_tasks,
			SUM(rework) AS rework,
			SUM(reviews_done) AS reviews_done,
			SUM(score_sum) AS score_sum,
			SUM(review_count) AS review_count,
			COUNT(DISTINCT date) AS days_active`).
		Where("role = ?", role).
		Group("entity_id")
	q = applyFilters(q, f, "daily_stats")

	var rows []entitySums
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate: sum %s stats: %w", role, err)
	}
	return rows, nil
}

func applyFilters(q *gorm.DB, f Filters, table string) *gorm.DB {
	if f.ProjectID != 0 {
		q = q.Where(table+".project_id = ?", f.ProjectID)
	}
	if f.EntityID != 0 {
		q = q.Where(table+".entity_id = ?", f.EntityID)
	}
	if !f.From.IsZero() {
		q = q.Where(table+".date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where(table+".date <= ?", f.To)
	}
	return q
}

// trackedHours returns summed jibble hours per contributor, joined on the
// contributor's email as the external person key.
func (s *Service) trackedHours(ctx context.Context, f Filters) (map[uint]float64, error) {
	type hoursRow struct {
		EntityID uint
		Hours    float64
	}
	q := s.db.WithContext(ctx).Table("time_entries").
		Select("contributors.id AS entity_id, SUM(time_entries.hours) AS hours").
		Joins("JOIN contributors ON contributors.email = time_entries.person_key").
		Where("time_entries.source = ?", models.TimeSourceJibble).
		Group("contributors.id")
	if !f.From.IsZero() {
		q = q.Where("time_entries.date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("time_entries.date <= ?", f.To)
	}

	var rows []hoursRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate: sum tracked hours: %w", err)
	}
	out := make(map[uint]float64, len(rows))
	for _, r := range rows {
		out[r.EntityID] = r.Hours
	}
	return out, nil
}

// buildMetrics derives the full metric block from summed counters.
func buildMetrics(sum entitySums, aht settings.AHTValue, trackedHours float64, target *settings.TargetValue) Metrics {
	m := Metrics{
		Submissions:    sum.Submissions,
		UniqueTasks:    sum.UniqueTasks,
		NewTasks:       sum.NewTasks,
		Rework:         sum.Rework,
		DaysActive:     sum.DaysActive,
		AvgRework:      AvgRework(sum.Submissions, sum.UniqueTasks),
		ReworkPercent:  ReworkPercent(sum.NewTasks, sum.Rework),
		AvgRating:      AvgRating(sum.ScoreSum, sum.ReviewCount),
		MergedExpAHT:   MergedExpAHT(sum.NewTasks, sum.Rework, aht.NewTaskHours, aht.ReworkHours),
		AccountedHours: AccountedHours(sum.NewTasks, sum.Rework, aht.NewTaskHours, aht.ReworkHours),
		TrackedHours:   trackedHours,
	}
	m.Efficiency = Efficiency(m.AccountedHours, trackedHours)
	if target != nil {
		// Targets are per working day; scale by days the entity was active.
		total := target.PerDay * float64(sum.DaysActive)
		m.Target = &total
		m.Achievement = AchievementPercent(float64(sum.Submissions), total)
	}
	return m
}
