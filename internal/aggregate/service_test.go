package aggregate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/podlens/podlens/internal/models"
	"github.com/podlens/podlens/internal/settings"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Contributor{},
		&models.TimeEntry{},
		&models.DailyStat{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func uintPtr(v uint) *uint { return &v }

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

// testService seeds two pods on project 36 plus a reviewer, with tracked
// hours and AHT/target configuration.
func testService(t *testing.T) *Service {
	t.Helper()
	db := testDB(t)

	contributors := []models.Contributor{
		{ID: 1, Name: "Priya", Email: "priya@example.com", Role: models.RolePodLead, Active: true},
		{ID: 2, Name: "Marcus", Email: "marcus@example.com", Role: models.RoleTrainer, Active: true, PodLeadID: uintPtr(1)},
		{ID: 3, Name: "Elena", Email: "elena@example.com", Role: models.RoleReviewer, Active: true},
		{ID: 4, Name: "Dana", Email: "dana@example.com", Role: models.RoleTrainer, Active: true, PodLeadID: uintPtr(1)},
		{ID: 5, Name: "Noor", Email: "noor@example.com", Role: models.RolePodLead, Active: true},
		{ID: 6, Name: "Omar", Email: "omar@example.com", Role: models.RoleTrainer, Active: true, PodLeadID: uintPtr(5)},
	}
	if err := db.Create(&contributors).Error; err != nil {
		t.Fatalf("seed contributors: %v", err)
	}

	stats := []models.DailyStat{
		{EntityID: 2, Date: day(20), Role: models.RoleTrainer, ProjectID: 36, Submissions: 4, NewTasks: 3, Rework: 1, UniqueTasks: 3, ScoreSum: 16, ReviewCount: 4},
		{EntityID: 2, Date: day(21), Role: models.RoleTrainer, ProjectID: 36, Submissions: 2, NewTasks: 1, Rework: 1, UniqueTasks: 2, ScoreSum: 8, ReviewCount: 2},
		{EntityID: 4, Date: day(20), Role: models.RoleTrainer, ProjectID: 36, Submissions: 3, NewTasks: 3, UniqueTasks: 3, ScoreSum: 12, ReviewCount: 3},
		{EntityID: 6, Date: day(21), Role: models.RoleTrainer, ProjectID: 36, Submissions: 5, NewTasks: 4, Rework: 1, UniqueTasks: 4, ScoreSum: 20, ReviewCount: 5},
		{EntityID: 3, Date: day(20), Role: models.RoleReviewer, ProjectID: 36, ReviewsDone: 7, ScoreSum: 28, ReviewCount: 7},
	}
	if err := db.Create(&stats).Error; err != nil {
		t.Fatalf("seed daily stats: %v", err)
	}

	entries := []models.TimeEntry{
		{PersonKey: "marcus@example.com", Date: day(20), Source: models.TimeSourceJibble, Hours: 8},
		{PersonKey: "marcus@example.com", Date: day(21), Source: models.TimeSourceJibble, Hours: 8},
		{PersonKey: "dana@example.com", Date: day(20), Source: models.TimeSourceJibble, Hours: 8},
		{PersonKey: "omar@example.com", Date: day(21), Source: models.TimeSourceJibble, Hours: 7},
		// Warehouse-sourced hours never feed efficiency.
		{PersonKey: "marcus@example.com", Date: day(20), Source: models.TimeSourceWarehouse, Hours: 40},
	}
	if err := db.Create(&entries).Error; err != nil {
		t.Fatalf("seed time entries: %v", err)
	}

	st := settings.New(db)
	ctx := context.Background()
	if _, _, err := st.Set(ctx, settings.Scope{ProjectID: 36, ConfigKey: settings.AHTKey},
		settings.AHTValue{NewTaskHours: 6, ReworkHours: 2}, day(1)); err != nil {
		t.Fatalf("seed aht: %v", err)
	}
	if _, _, err := st.Set(ctx, settings.Scope{ProjectID: 36, ConfigKey: ThroughputKey},
		settings.TargetValue{PerDay: 4}, day(1)); err != nil {
		t.Fatalf("seed project target: %v", err)
	}
	if _, _, err := st.Set(ctx, settings.Scope{ProjectID: 36, ConfigKey: ThroughputKey, EntityID: uintPtr(2)},
		settings.TargetValue{PerDay: 5}, day(1)); err != nil {
		t.Fatalf("seed trainer target: %v", err)
	}

	return New(db, st)
}

func approx(got *float64, want float64) bool {
	return got != nil && math.Abs(*got-want) < 1e-9
}

func TestTrainerSummary(t *testing.T) {
	svc := testService(t)
	out, err := svc.TrainerSummary(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("TrainerSummary() error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("TrainerSummary() = %d trainers, want 3", len(out))
	}

	marcus := out[0]
	if marcus.ContributorID != 2 || marcus.Name != "Marcus" {
		t.Fatalf("first trainer = %d %q, want 2 Marcus", marcus.ContributorID, marcus.Name)
	}
	if marcus.Submissions != 6 || marcus.UniqueTasks != 5 || marcus.NewTasks != 4 || marcus.Rework != 2 {
		t.Errorf("marcus counters = %d/%d/%d/%d, want 6/5/4/2",
			marcus.Submissions, marcus.UniqueTasks, marcus.NewTasks, marcus.Rework)
	}
	if marcus.DaysActive != 2 {
		t.Errorf("marcus days active = %d, want 2", marcus.DaysActive)
	}
	if math.Abs(marcus.AvgRework-0.2) > 1e-9 {
		t.Errorf("marcus avg rework = %v, want 0.2", marcus.AvgRework)
	}
	if !approx(marcus.AvgRating, 4) {
		t.Errorf("marcus avg rating = %v, want 4", marcus.AvgRating)
	}
	// 4 new at 6h plus 2 rework at 2h.
	if marcus.AccountedHours != 28 {
		t.Errorf("marcus accounted hours = %v, want 28", marcus.AccountedHours)
	}
	if marcus.TrackedHours != 16 {
		t.Errorf("marcus tracked hours = %v, want 16 (jibble only)", marcus.TrackedHours)
	}
	if !approx(marcus.Efficiency, 175) {
		t.Errorf("marcus efficiency = %v, want 175", marcus.Efficiency)
	}
	// The per-trainer override (5/day) wins over the project target (4/day),
	// scaled by two active days.
	if !approx(marcus.Target, 10) {
		t.Errorf("marcus target = %v, want 10", marcus.Target)
	}
	if !approx(marcus.Achievement, 60) {
		t.Errorf("marcus achievement = %v, want 60", marcus.Achievement)
	}
	if marcus.PodLeadID == nil || *marcus.PodLeadID != 1 {
		t.Error("marcus pod lead missing")
	}

	dana := out[1]
	if dana.ContributorID != 4 {
		t.Fatalf("second trainer = %d, want 4", dana.ContributorID)
	}
	// No override for Dana, so the project target applies for one day.
	if !approx(dana.Target, 4) {
		t.Errorf("dana target = %v, want 4", dana.Target)
	}
	if !approx(dana.Achievement, 75) {
		t.Errorf("dana achievement = %v, want 75", dana.Achievement)
	}
	if dana.ReworkPercent == nil || *dana.ReworkPercent != 0 {
		t.Errorf("dana rework percent = %v, want 0", dana.ReworkPercent)
	}
}

func TestTrainerSummary_Filters(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	out, err := svc.TrainerSummary(ctx, Filters{EntityID: 2})
	if err != nil {
		t.Fatalf("TrainerSummary() error: %v", err)
	}
	if len(out) != 1 || out[0].ContributorID != 2 {
		t.Fatalf("entity filter returned %d rows", len(out))
	}

	out, err = svc.TrainerSummary(ctx, Filters{From: day(21), To: day(21)})
	if err != nil {
		t.Fatalf("TrainerSummary() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("date filter returned %d trainers, want 2 (marcus, omar)", len(out))
	}
	if out[0].Submissions != 2 {
		t.Errorf("marcus on 08-21 = %d submissions, want 2", out[0].Submissions)
	}

	out, err = svc.TrainerSummary(ctx, Filters{ProjectID: 99})
	if err != nil {
		t.Fatalf("TrainerSummary() error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("unknown project returned %d rows, want empty", len(out))
	}
}

func TestPodLeadSummary(t *testing.T) {
	svc := testService(t)
	out, err := svc.PodLeadSummary(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("PodLeadSummary() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("PodLeadSummary() = %d pods, want 2", len(out))
	}

	priya := out[0]
	if priya.ContributorID != 1 || priya.Name != "Priya" {
		t.Fatalf("first pod = %d %q, want 1 Priya", priya.ContributorID, priya.Name)
	}
	if priya.TrainerCount != 2 {
		t.Errorf("priya trainer count = %d, want 2", priya.TrainerCount)
	}
	if priya.Submissions != 9 || priya.NewTasks != 7 || priya.Rework != 2 {
		t.Errorf("priya counters = %d/%d/%d, want 9/7/2", priya.Submissions, priya.NewTasks, priya.Rework)
	}
	if priya.TrackedHours != 24 {
		t.Errorf("priya tracked hours = %v, want 24", priya.TrackedHours)
	}
	// Rework percent recomputed from summed counters: 2/(7+2).
	if !approx(priya.ReworkPercent, 100*2.0/9.0) {
		t.Errorf("priya rework percent = %v, want %v", priya.ReworkPercent, 100*2.0/9.0)
	}

	noor := out[1]
	if noor.ContributorID != 5 || noor.Submissions != 5 || noor.TrainerCount != 1 {
		t.Errorf("noor = %d submissions, %d trainers", noor.Submissions, noor.TrainerCount)
	}
}

func TestProjectSummary_ConsistentWithLowerRollups(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	trainers, err := svc.TrainerSummary(ctx, Filters{})
	if err != nil {
		t.Fatalf("TrainerSummary() error: %v", err)
	}
	pods, err := svc.PodLeadSummary(ctx, Filters{})
	if err != nil {
		t.Fatalf("PodLeadSummary() error: %v", err)
	}
	projects, err := svc.ProjectSummary(ctx, Filters{})
	if err != nil {
		t.Fatalf("ProjectSummary() error: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("ProjectSummary() = %d projects, want 1", len(projects))
	}

	var trainerSubs, podSubs int
	for _, tr := range trainers {
		trainerSubs += tr.Submissions
	}
	for _, p := range pods {
		podSubs += p.Submissions
	}
	proj := projects[0]
	if proj.ProjectID != 36 || proj.TrainerCount != 3 {
		t.Errorf("project = %d with %d trainers, want 36 with 3", proj.ProjectID, proj.TrainerCount)
	}
	// Every rollup level sums to the same totals.
	if trainerSubs != podSubs || podSubs != proj.Submissions {
		t.Errorf("submissions diverge across rollups: trainers %d, pods %d, project %d",
			trainerSubs, podSubs, proj.Submissions)
	}
	if proj.TrackedHours != 31 {
		t.Errorf("project tracked hours = %v, want 31", proj.TrackedHours)
	}
}

func TestPodLeadSummary_UnassignedTrainer(t *testing.T) {
	svc := testService(t)
	// A trainer with no pod lead.
	svc.db.Create(&models.Contributor{ID: 7, Name: "Ines", Email: "ines@example.com", Role: models.RoleTrainer, Active: true})
	svc.db.Create(&models.DailyStat{EntityID: 7, Date: day(20), Role: models.RoleTrainer, ProjectID: 36, Submissions: 1, NewTasks: 1, UniqueTasks: 1})

	out, err := svc.PodLeadSummary(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("PodLeadSummary() error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("PodLeadSummary() = %d pods, want 3", len(out))
	}
	if out[0].ContributorID != 0 || out[0].Name != "unassigned" || out[0].Submissions != 1 {
		t.Errorf("unassigned bucket = %+v", out[0])
	}
}

func TestReviewerSummary(t *testing.T) {
	svc := testService(t)
	out, err := svc.ReviewerSummary(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("ReviewerSummary() error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("ReviewerSummary() = %d reviewers, want 1", len(out))
	}
	elena := out[0]
	if elena.ContributorID != 3 || elena.Name != "Elena" {
		t.Errorf("reviewer = %d %q, want 3 Elena", elena.ContributorID, elena.Name)
	}
	if elena.ReviewsDone != 7 {
		t.Errorf("reviews done = %d, want 7", elena.ReviewsDone)
	}
	if !approx(elena.AvgRatingGiven, 4) {
		t.Errorf("avg rating given = %v, want 4", elena.AvgRatingGiven)
	}
}

func TestTrend(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	daily, err := svc.Trend(ctx, Daily, Filters{})
	if err != nil {
		t.Fatalf("Trend(daily) error: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("daily trend = %d buckets, want 2", len(daily))
	}
	if daily[0].Bucket != "2026-08-20" || daily[0].Submissions != 7 {
		t.Errorf("bucket 0 = %s with %d submissions, want 2026-08-20 with 7", daily[0].Bucket, daily[0].Submissions)
	}
	if daily[1].Bucket != "2026-08-21" || daily[1].Submissions != 7 {
		t.Errorf("bucket 1 = %s with %d submissions, want 2026-08-21 with 7", daily[1].Bucket, daily[1].Submissions)
	}

	weekly, err := svc.Trend(ctx, Weekly, Filters{})
	if err != nil {
		t.Fatalf("Trend(weekly) error: %v", err)
	}
	if len(weekly) != 1 {
		t.Fatalf("weekly trend = %d buckets, want 1", len(weekly))
	}
	if weekly[0].Bucket != "2026-W34" || weekly[0].Submissions != 14 {
		t.Errorf("weekly bucket = %s with %d submissions, want 2026-W34 with 14", weekly[0].Bucket, weekly[0].Submissions)
	}
	if weekly[0].DaysActive != 2 {
		t.Errorf("weekly days active = %d, want 2", weekly[0].DaysActive)
	}

	monthly, err := svc.Trend(ctx, Monthly, Filters{})
	if err != nil {
		t.Fatalf("Trend(monthly) error: %v", err)
	}
	if len(monthly) != 1 || monthly[0].Bucket != "2026-08" {
		t.Fatalf("monthly trend = %+v", monthly)
	}
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{"", Daily, false},
		{"daily", Daily, false},
		{"weekly", Weekly, false},
		{"monthly", Monthly, false},
		{"hourly", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGranularity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGranularity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseGranularity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
