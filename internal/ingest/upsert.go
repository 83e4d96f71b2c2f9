package ingest

import (
	"fmt"
	"sort"

	"github.com/podlens/podlens/internal/models"
	"github.com/podlens/podlens/internal/timetrack"
	"github.com/podlens/podlens/internal/warehouse"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 200

// upsertContributors reconciles the workforce snapshot. Rows are keyed by
// their warehouse user id; all tracked columns are overwritten.
func (e *Engine) upsertContributors(rows []warehouse.ContributorRow) (int, error) {
	recs := transformContributors(rows)
	if len(recs) == 0 {
		return 0, nil
	}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role", "active", "pod_lead_id"}),
		}).CreateInBatches(recs, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: upsert contributors: %w", err)
	}
	return len(recs), nil
}

// transformContributors maps snapshot rows to models and enforces the
// one-level hierarchy: a contributor who leads others never carries a pod
// lead reference, and dangling references are nulled.
func transformContributors(rows []warehouse.ContributorRow) []models.Contributor {
	known := make(map[uint]bool, len(rows))
	leads := make(map[uint]bool)
	for _, r := range rows {
		known[r.ID] = true
		if r.PodLeadID != nil {
			leads[*r.PodLeadID] = true
		}
	}

	recs := make([]models.Contributor, 0, len(rows))
	for _, r := range rows {
		role := r.Role
		if role == "" {
			role = models.RoleTrainer
		}
		podLead := r.PodLeadID
		if podLead != nil && (!known[*podLead] || leads[r.ID] || role == models.RolePodLead) {
			podLead = nil
		}
		recs = append(recs, models.Contributor{
			ID:        r.ID,
			Name:      r.Name,
			Email:     r.Email,
			Role:      role,
			Active:    r.Active,
			PodLeadID: podLead,
		})
	}

	// Leads first so self-references resolve within one batch insert.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].PodLeadID == nil && recs[j].PodLeadID != nil
	})
	return recs
}

// upsertTasks reconciles the task snapshot. Assignee references to
// contributors the store does not know are nulled; they repair themselves
// once the contributor table catches up on a later pass.
func (e *Engine) upsertTasks(rows []warehouse.TaskRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var contributorIDs []uint
	if err := e.db.Model(&models.Contributor{}).Pluck("id", &contributorIDs).Error; err != nil {
		return 0, fmt.Errorf("ingest: load contributor ids: %w", err)
	}
	known := make(map[uint]bool, len(contributorIDs))
	for _, id := range contributorIDs {
		known[id] = true
	}

	recs := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		assignee := r.CurrentUserID
		if assignee != nil && !known[*assignee] {
			assignee = nil
		}
		rework := r.ReworkCount
		if rework < 0 {
			rework = 0
		}
		delivered := false
		if r.Delivered != nil {
			delivered = *r.Delivered
		}
		recs = append(recs, models.Task{
			ID:              r.ID,
			Statement:       r.Statement,
			Status:          r.Status,
			ProjectID:       r.ProjectID,
			BatchID:         r.BatchID,
			CurrentUserID:   assignee,
			Delivered:       delivered,
			ReworkCount:     rework,
			Domain:          r.Domain,
			TurnCount:       r.TurnCount,
			SourceCreatedAt: r.CreatedAt,
			SourceUpdatedAt: r.UpdatedAt,
		})
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"statement", "status", "project_id", "batch_id", "current_user_id",
				"delivered", "rework_count", "domain", "turn_count",
				"source_created_at", "source_updated_at",
			}),
		}).CreateInBatches(recs, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: upsert tasks: %w", err)
	}
	return len(recs), nil
}

// upsertReviews reconciles the review snapshot. Reviews of tasks the store
// has not seen yet are skipped rather than inserted dangling.
func (e *Engine) upsertReviews(rows []warehouse.ReviewRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var taskIDs []uint64
	if err := e.db.Model(&models.Task{}).Pluck("id", &taskIDs).Error; err != nil {
		return 0, fmt.Errorf("ingest: load task ids: %w", err)
	}
	knownTasks := make(map[uint64]bool, len(taskIDs))
	for _, id := range taskIDs {
		knownTasks[id] = true
	}
	var contributorIDs []uint
	if err := e.db.Model(&models.Contributor{}).Pluck("id", &contributorIDs).Error; err != nil {
		return 0, fmt.Errorf("ingest: load contributor ids: %w", err)
	}
	knownContributors := make(map[uint]bool, len(contributorIDs))
	for _, id := range contributorIDs {
		knownContributors[id] = true
	}

	recs := make([]models.Review, 0, len(rows))
	for _, r := range rows {
		if !knownTasks[r.TaskID] {
			continue
		}
		reviewer := r.ReviewerID
		if reviewer != nil && !knownContributors[*reviewer] {
			reviewer = nil
		}
		delivered := false
		if r.Delivered != nil {
			delivered = *r.Delivered
		}
		recs = append(recs, models.Review{
			ID:         r.ID,
			ReviewerID: reviewer,
			TaskID:     r.TaskID,
			Score:      r.Score,
			Delivered:  delivered,
			ReviewedAt: r.ReviewedAt,
		})
	}
	if len(recs) == 0 {
		return 0, nil
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"reviewer_id", "task_id", "score", "delivered", "reviewed_at",
			}),
		}).CreateInBatches(recs, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: upsert reviews: %w", err)
	}
	return len(recs), nil
}

// upsertTimeEntries reconciles tracked hours from both sources, keyed by
// (person, date, source). Warehouse and tracker rows carry distinct source
// tags but commit in one transaction so the table never ends up
// half-updated.
func (e *Engine) upsertTimeEntries(rows []warehouse.TimeEntryRow, tracked []timetrack.Entry) (int, error) {
	recs := make([]models.TimeEntry, 0, len(rows)+len(tracked))
	for _, r := range rows {
		recs = append(recs, models.TimeEntry{
			PersonKey: r.PersonKey,
			Date:      dateOnly(r.Date),
			Source:    models.TimeSourceWarehouse,
			Hours:     r.Hours,
		})
	}
	for _, en := range tracked {
		recs = append(recs, models.TimeEntry{
			PersonKey: en.PersonKey,
			Date:      dateOnly(en.Date),
			Source:    models.TimeSourceJibble,
			Hours:     en.Hours,
		})
	}
	if len(recs) == 0 {
		return 0, nil
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "person_key"}, {Name: "date"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"hours"}),
		}).CreateInBatches(recs, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: upsert time entries: %w", err)
	}
	return len(recs), nil
}

// upsertWorkItems reconciles the delivery-batch snapshot.
func (e *Engine) upsertWorkItems(rows []warehouse.WorkItemRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	recs := make([]models.WorkItem, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, models.WorkItem{
			ID:          r.ID,
			ProjectID:   r.ProjectID,
			Name:        r.Name,
			TaskCount:   r.TaskCount,
			DeliveredAt: r.DeliveredAt,
		})
	}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"project_id", "name", "task_count", "delivered_at"}),
		}).CreateInBatches(recs, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: upsert work items: %w", err)
	}
	return len(recs), nil
}
