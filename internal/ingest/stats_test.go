package ingest

import (
	"testing"
	"time"

	"github.com/podlens/podlens/internal/models"
	"gorm.io/gorm"
)

func seedStatsFixture(t *testing.T, db *gorm.DB) {
	t.Helper()
	contributors := []models.Contributor{
		{ID: 1, Name: "Priya", Email: "priya@example.com", Role: models.RolePodLead, Active: true},
		{ID: 2, Name: "Marcus", Email: "marcus@example.com", Role: models.RoleTrainer, Active: true, PodLeadID: uintPtr(1)},
		{ID: 3, Name: "Elena", Email: "elena@example.com", Role: models.RoleReviewer, Active: true},
		{ID: 4, Name: "Dana", Email: "dana@example.com", Role: models.RoleTrainer, Active: true, PodLeadID: uintPtr(1)},
	}
	tasks := []models.Task{
		{ID: 100, Status: models.TaskStatusInReview, ProjectID: 36, CurrentUserID: uintPtr(2)},
		{ID: 101, Status: models.TaskStatusCompleted, ProjectID: 36, CurrentUserID: uintPtr(2)},
		{ID: 102, Status: models.TaskStatusInReview, ProjectID: 36, CurrentUserID: uintPtr(4)},
	}
	reviews := []models.Review{
		{ID: 500, ReviewerID: uintPtr(3), TaskID: 100, Score: 3, ReviewedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)},
		{ID: 501, ReviewerID: uintPtr(3), TaskID: 101, Score: 4, ReviewedAt: time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC)},
		{ID: 502, ReviewerID: uintPtr(3), TaskID: 100, Score: 4.5, ReviewedAt: time.Date(2026, 8, 22, 11, 0, 0, 0, time.UTC)},
		{ID: 503, ReviewerID: uintPtr(3), TaskID: 102, Score: 5, ReviewedAt: time.Date(2026, 8, 22, 16, 0, 0, 0, time.UTC)},
	}
	if err := db.Create(&contributors).Error; err != nil {
		t.Fatalf("seed contributors: %v", err)
	}
	if err := db.Create(&tasks).Error; err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
	if err := db.Create(&reviews).Error; err != nil {
		t.Fatalf("seed reviews: %v", err)
	}
}

func findStat(t *testing.T, db *gorm.DB, entity uint, day, role string) models.DailyStat {
	t.Helper()
	var s models.DailyStat
	date, _ := time.Parse("2006-01-02", day)
	err := db.Where("entity_id = ? AND date = ? AND role = ?", entity, date, role).First(&s).Error
	if err != nil {
		t.Fatalf("stat entity=%d date=%s role=%s: %v", entity, day, role, err)
	}
	return s
}

func TestRecomputeWindow(t *testing.T) {
	db := testDB(t)
	seedStatsFixture(t, db)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	n, err := RecomputeWindow(db, from, to)
	if err != nil {
		t.Fatalf("RecomputeWindow() error: %v", err)
	}
	// Two trainer-days for Marcus, one for Dana, two reviewer-days for Elena.
	if n != 5 {
		t.Fatalf("RecomputeWindow() = %d rows, want 5", n)
	}

	// Both reviews on the 20th are the first review of their task.
	s := findStat(t, db, 2, "2026-08-20", models.RoleTrainer)
	if s.Submissions != 2 || s.NewTasks != 2 || s.Rework != 0 {
		t.Errorf("marcus 08-20 = %d submissions, %d new, %d rework; want 2/2/0", s.Submissions, s.NewTasks, s.Rework)
	}
	if s.UniqueTasks != 2 {
		t.Errorf("marcus 08-20 unique tasks = %d, want 2", s.UniqueTasks)
	}
	if s.ScoreSum != 7 || s.ReviewCount != 2 {
		t.Errorf("marcus 08-20 ratings = %.1f/%d, want 7.0/2", s.ScoreSum, s.ReviewCount)
	}
	if s.ProjectID != 36 {
		t.Errorf("marcus 08-20 project = %d, want 36", s.ProjectID)
	}

	// Task 100's second review counts as rework on its own day.
	s = findStat(t, db, 2, "2026-08-22", models.RoleTrainer)
	if s.Submissions != 1 || s.NewTasks != 0 || s.Rework != 1 {
		t.Errorf("marcus 08-22 = %d submissions, %d new, %d rework; want 1/0/1", s.Submissions, s.NewTasks, s.Rework)
	}

	s = findStat(t, db, 4, "2026-08-22", models.RoleTrainer)
	if s.Submissions != 1 || s.NewTasks != 1 {
		t.Errorf("dana 08-22 = %d submissions, %d new; want 1/1", s.Submissions, s.NewTasks)
	}

	// Reviewer-side rows count reviews performed.
	s = findStat(t, db, 3, "2026-08-20", models.RoleReviewer)
	if s.ReviewsDone != 2 || s.ScoreSum != 7 {
		t.Errorf("elena 08-20 = %d reviews, %.1f score sum; want 2/7.0", s.ReviewsDone, s.ScoreSum)
	}
	s = findStat(t, db, 3, "2026-08-22", models.RoleReviewer)
	if s.ReviewsDone != 2 || s.ScoreSum != 9.5 {
		t.Errorf("elena 08-22 = %d reviews, %.1f score sum; want 2/9.5", s.ReviewsDone, s.ScoreSum)
	}
}

func TestRecomputeWindow_ReplacesStaleRows(t *testing.T) {
	db := testDB(t)
	seedStatsFixture(t, db)

	// A leftover row inside the window that no review supports.
	stale := models.DailyStat{
		EntityID: 99, Date: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Role: models.RoleTrainer, Submissions: 40,
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("seed stale stat: %v", err)
	}

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if _, err := RecomputeWindow(db, from, to); err != nil {
		t.Fatalf("RecomputeWindow() error: %v", err)
	}

	var count int64
	db.Model(&models.DailyStat{}).Where("entity_id = ?", 99).Count(&count)
	if count != 0 {
		t.Error("stale rollup row survived the recompute")
	}
}

func TestRecomputeWindow_BoundsExclusive(t *testing.T) {
	db := testDB(t)
	seedStatsFixture(t, db)

	// Only the 20th falls inside this window.
	from := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	n, err := RecomputeWindow(db, from, to)
	if err != nil {
		t.Fatalf("RecomputeWindow() error: %v", err)
	}
	if n != 2 {
		t.Errorf("RecomputeWindow() = %d rows, want 2 (marcus + elena on the 20th)", n)
	}

	var count int64
	db.Model(&models.DailyStat{}).Where("date > ?", from).Count(&count)
	if count != 0 {
		t.Errorf("%d rows written outside the window", count)
	}
}

func TestRecomputeWindow_RepeatedRunsStable(t *testing.T) {
	db := testDB(t)
	seedStatsFixture(t, db)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if _, err := RecomputeWindow(db, from, to); err != nil {
		t.Fatalf("first RecomputeWindow() error: %v", err)
	}
	first := dumpStats(t, db)

	if _, err := RecomputeWindow(db, from, to); err != nil {
		t.Fatalf("second RecomputeWindow() error: %v", err)
	}
	second := dumpStats(t, db)

	if len(first) != len(second) {
		t.Fatalf("rollup rows changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("rollup row %d changed:\n  first:  %+v\n  second: %+v", i, first[i], second[i])
		}
	}
}

func TestRecomputeWindow_FirstReviewBeforeWindow(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Contributor{ID: 2, Name: "Marcus", Email: "marcus@example.com", Role: models.RoleTrainer, Active: true})
	db.Create(&models.Contributor{ID: 3, Name: "Elena", Email: "elena@example.com", Role: models.RoleReviewer, Active: true})
	db.Create(&models.Task{ID: 300, Status: models.TaskStatusInReview, ProjectID: 36, CurrentUserID: uintPtr(2)})
	reviews := []models.Review{
		{ID: 700, ReviewerID: uintPtr(3), TaskID: 300, Score: 2.5, ReviewedAt: time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)},
		{ID: 701, ReviewerID: uintPtr(3), TaskID: 300, Score: 4, ReviewedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)},
	}
	if err := db.Create(&reviews).Error; err != nil {
		t.Fatalf("seed reviews: %v", err)
	}

	// August only. The July review is outside but still anchors first-review
	// attribution, so the August review must count as rework.
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if _, err := RecomputeWindow(db, from, to); err != nil {
		t.Fatalf("RecomputeWindow() error: %v", err)
	}

	s := findStat(t, db, 2, "2026-08-20", models.RoleTrainer)
	if s.Submissions != 1 || s.NewTasks != 0 || s.Rework != 1 {
		t.Errorf("marcus 08-20 = %d submissions, %d new, %d rework; want 1/0/1", s.Submissions, s.NewTasks, s.Rework)
	}
}

func TestRecomputeWindow_UnassignedTask(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Contributor{ID: 3, Name: "Elena", Email: "elena@example.com", Role: models.RoleReviewer, Active: true})
	db.Create(&models.Task{ID: 200, Status: models.TaskStatusInReview, ProjectID: 36})
	db.Create(&models.Review{ID: 600, ReviewerID: uintPtr(3), TaskID: 200, Score: 4, ReviewedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)})

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	n, err := RecomputeWindow(db, from, to)
	if err != nil {
		t.Fatalf("RecomputeWindow() error: %v", err)
	}
	// The reviewer still gets credit; no trainer row exists for the
	// unassigned task.
	if n != 1 {
		t.Fatalf("RecomputeWindow() = %d rows, want 1", n)
	}
	var s models.DailyStat
	if err := db.First(&s).Error; err != nil {
		t.Fatalf("load stat: %v", err)
	}
	if s.Role != models.RoleReviewer || s.EntityID != 3 {
		t.Errorf("stat = entity %d role %s, want entity 3 reviewer", s.EntityID, s.Role)
	}
}
