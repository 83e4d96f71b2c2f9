package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/podlens/podlens/internal/models"
	"github.com/podlens/podlens/internal/settings"
)

// TrainerMetrics is one trainer's rollup for the filter window.
type TrainerMetrics struct {
	ContributorID uint   `json:"contributor_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	ProjectID     uint   `json:"project_id"`
	PodLeadID     *uint  `json:"pod_lead_id,omitempty"`
	Metrics
}

// PodLeadMetrics is one POD lead's rollup over their trainers.
type PodLeadMetrics struct {
	ContributorID uint   `json:"contributor_id"`
	Name          string `json:"name"`
	ProjectID     uint   `json:"project_id"`
	TrainerCount  int    `json:"trainer_count"`
	Metrics
}

// ProjectMetrics is one project's rollup over its POD leads.
type ProjectMetrics struct {
	ProjectID    uint `json:"project_id"`
	TrainerCount int  `json:"trainer_count"`
	Metrics
}

// ReviewerMetrics is one reviewer's rollup for the filter window.
type ReviewerMetrics struct {
	ContributorID  uint     `json:"contributor_id"`
	Name           string   `json:"name"`
	ReviewsDone    int      `json:"reviews_done"`
	AvgRatingGiven *float64 `json:"avg_rating_given"`
}

// contributorInfo caches the columns rollups need for display and grouping.
type contributorInfo struct {
	ID        uint
	Name      string
	Email     string
	PodLeadID *uint
}

func (s *Service) contributorIndex(ctx context.Context) (map[uint]contributorInfo, error) {
	var rows []contributorInfo
	if err := s.db.WithContext(ctx).Model(&models.Contributor{}).
		Select("id, name, email, pod_lead_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate: load contributors: %w", err)
	}
	out := make(map[uint]contributorInfo, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// TrainerSummary returns per-trainer rollups for the window.
func (s *Service) TrainerSummary(ctx context.Context, f Filters) ([]TrainerMetrics, error) {
	sums, err := s.sums(ctx, models.RoleTrainer, f)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return []TrainerMetrics{}, nil
	}
	contributors, err := s.contributorIndex(ctx)
	if err != nil {
		return nil, err
	}
	hours, err := s.trackedHours(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]TrainerMetrics, 0, len(sums))
	for _, sum := range sums {
		aht, err := s.settings.ProjectAHT(ctx, sum.ProjectID)
		if err != nil {
			return nil, err
		}
		entityID := sum.EntityID
		target, err := s.settings.Target(ctx, sum.ProjectID, ThroughputKey, &entityID)
		if err != nil {
			return nil, err
		}
		info := contributors[sum.EntityID]
		out = append(out, TrainerMetrics{
			ContributorID: sum.EntityID,
			Name:          info.Name,
			Email:         info.Email,
			ProjectID:     sum.ProjectID,
			PodLeadID:     info.PodLeadID,
			Metrics:       buildMetrics(sum, aht, hours[sum.EntityID], target),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContributorID < out[j].ContributorID })
	return out, nil
}

// PodLeadSummary rolls trainer sums up to their POD leads. Trainers with no
// lead are grouped under contributor id 0 so nothing is lost.
func (s *Service) PodLeadSummary(ctx context.Context, f Filters) ([]PodLeadMetrics, error) {
	sums, err := s.sums(ctx, models.RoleTrainer, f)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return []PodLeadMetrics{}, nil
	}
	contributors, err := s.contributorIndex(ctx)
	if err != nil {
		return nil, err
	}
	hours, err := s.trackedHours(ctx, f)
	if err != nil {
		return nil, err
	}

	grouped := make(map[uint]*entitySums)
	counts := make(map[uint]int)
	groupedHours := make(map[uint]float64)
	for _, sum := range sums {
		var lead uint
		if info, ok := contributors[sum.EntityID]; ok && info.PodLeadID != nil {
			lead = *info.PodLeadID
		}
		addSums(grouped, lead, sum)
		counts[lead]++
		groupedHours[lead] += hours[sum.EntityID]
	}

	out := make([]PodLeadMetrics, 0, len(grouped))
	for lead, sum := range grouped {
		aht, err := s.settings.ProjectAHT(ctx, sum.ProjectID)
		if err != nil {
			return nil, err
		}
		target, err := s.settings.Target(ctx, sum.ProjectID, ThroughputKey, nil)
		if err != nil {
			return nil, err
		}
		name := "unassigned"
		if info, ok := contributors[lead]; ok {
			name = info.Name
		}
		out = append(out, PodLeadMetrics{
			ContributorID: lead,
			Name:          name,
			ProjectID:     sum.ProjectID,
			TrainerCount:  counts[lead],
			Metrics:       buildMetrics(*sum, aht, groupedHours[lead], target),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContributorID < out[j].ContributorID })
	return out, nil
}

// ProjectSummary rolls trainer sums up to their projects.
func (s *Service) ProjectSummary(ctx context.Context, f Filters) ([]ProjectMetrics, error) {
	sums, err := s.sums(ctx, models.RoleTrainer, f)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return []ProjectMetrics{}, nil
	}
	hours, err := s.trackedHours(ctx, f)
	if err != nil {
		return nil, err
	}

	grouped := make(map[uint]*entitySums)
	counts := make(map[uint]int)
	groupedHours := make(map[uint]float64)
	for _, sum := range sums {
		addSums(grouped, sum.ProjectID, sum)
		counts[sum.ProjectID]++
		groupedHours[sum.ProjectID] += hours[sum.EntityID]
	}

	out := make([]ProjectMetrics, 0, len(grouped))
	for projectID, sum := range grouped {
		aht, err := s.settings.ProjectAHT(ctx, projectID)
		if err != nil {
			return nil, err
		}
		target, err := s.settings.Target(ctx, projectID, ThroughputKey, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, ProjectMetrics{
			ProjectID:    projectID,
			TrainerCount: counts[projectID],
			Metrics:      buildMetrics(*sum, aht, groupedHours[projectID], target),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

// ReviewerSummary returns per-reviewer rollups for the window.
func (s *Service) ReviewerSummary(ctx context.Context, f Filters) ([]ReviewerMetrics, error) {
	sums, err := s.sums(ctx, models.RoleReviewer, f)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return []ReviewerMetrics{}, nil
	}
	contributors, err := s.contributorIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ReviewerMetrics, 0, len(sums))
	for _, sum := range sums {
		out = append(out, ReviewerMetrics{
			ContributorID:  sum.EntityID,
			Name:           contributors[sum.EntityID].Name,
			ReviewsDone:    sum.ReviewsDone,
			AvgRatingGiven: AvgRating(sum.ScoreSum, sum.ReviewCount),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContributorID < out[j].ContributorID })
	return out, nil
}

// addSums accumulates one entity's counters into the grouped map. The
// grouped ProjectID keeps the first seen value.
func addSums(grouped map[uint]*entitySums, key uint, sum entitySums) {
	g, ok := grouped[key]
	if !ok {
		g = &entitySums{EntityID: key, ProjectID: sum.ProjectID}
		grouped[key] = g
	}
	g.Submissions += sum.Submissions
	g.UniqueTasks += sum.UniqueTasks
	g.NewTasks += sum.NewTasks
	g.Rework += sum.Rework
	g.ReviewsDone += sum.ReviewsDone
	g.ScoreSum += sum.ScoreSum
	g.ReviewCount += sum.ReviewCount
	if sum.DaysActive > g.DaysActive {
		g.DaysActive = sum.DaysActive
	}
}

// Granularity selects the trend bucket size.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity validates a granularity string, defaulting to daily.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "", string(Daily):
		return Daily, nil
	case string(Weekly):
		return Weekly, nil
	case string(Monthly):
		return Monthly, nil
	}
	return "", fmt.Errorf("aggregate: unknown granularity %q", s)
}

// TrendPoint is one time bucket's rollup.
type TrendPoint struct {
	Bucket string `json:"bucket"`
	Metrics
}

// Trend buckets trainer DailyStat rows by calendar period and recomputes
// the ratio metrics over bucket-summed numerators and denominators.
func (s *Service) Trend(ctx context.Context, g Granularity, f Filters) ([]TrendPoint, error) {
	q := s.db.WithContext(ctx).Model(&models.DailyStat{}).
		Where("role = ?", models.RoleTrainer)
	q = applyFilters(q, f, "daily_stats")

	var rows []models.DailyStat
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate: load trend stats: %w", err)
	}
	if len(rows) == 0 {
		return []TrendPoint{}, nil
	}

	aht := settings.AHTValue{NewTaskHours: settings.DefaultNewTaskAHT, ReworkHours: settings.DefaultReworkAHT}
	if f.ProjectID != 0 {
		var err error
		aht, err = s.settings.ProjectAHT(ctx, f.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	grouped := make(map[string]*entitySums)
	days := make(map[string]map[string]bool)
	for _, r := range rows {
		b := bucketLabel(g, r.Date)
		sum, ok := grouped[b]
		if !ok {
			sum = &entitySums{}
			grouped[b] = sum
			days[b] = make(map[string]bool)
		}
		sum.Submissions += r.Submissions
		sum.UniqueTasks += r.UniqueTasks
		sum.NewTasks += r.NewTasks
		sum.Rework += r.Rework
		sum.ReviewsDone += r.ReviewsDone
		sum.ScoreSum += r.ScoreSum
		sum.ReviewCount += r.ReviewCount
		days[b][r.Date.Format("2006-01-02")] = true
	}

	out := make([]TrendPoint, 0, len(grouped))
	for b, sum := range grouped {
		sum.DaysActive = len(days[b])
		out = append(out, TrendPoint{
			Bucket:  b,
			Metrics: buildMetrics(*sum, aht, 0, nil),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out, nil
}

// bucketLabel formats a date into its bucket key. Labels sort
// chronologically as strings.
func bucketLabel(g Granularity, day time.Time) string {
	switch g {
	case Weekly:
		year, week := day.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return day.Format("2006-01")
	default:
		return day.Format("2006-01-02")
	}
}
