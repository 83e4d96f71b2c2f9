package warehouse

import (
	"context"
	"database/sql"
	"time"
)

// Snapshot queries against the warehouse's denormalized reporting views.
// Column schemas are stable contracts; the upstream exposes no change-data
// capture, so every read is a full point-in-time snapshot.
const (
	taskQuery = `
SELECT t.task_id, t.statement, t.status, t.project_id, t.batch_id,
       t.current_user_id, t.delivered, t.rework_count, t.domain,
       t.turn_count, t.created_at, t.updated_at
FROM reporting.tasks_snapshot t
WHERE (? = 0 OR t.project_id = ?)`

	contributorQuery = `
SELECT c.user_id, c.name, c.email, c.role, c.active, c.pod_lead_id
FROM reporting.workforce_snapshot c`

	reviewQuery = `
SELECT r.review_id, r.reviewer_id, r.task_id, r.score, r.delivered, r.reviewed_at
FROM reporting.reviews_snapshot r
WHERE (? = 0 OR r.project_id = ?)`

	timeEntryQuery = `
SELECT j.person_key, j.work_date, j.hours
FROM reporting.tracked_hours j
WHERE (? IS NULL OR j.work_date >= ?) AND (? IS NULL OR j.work_date <= ?)`

	workItemQuery = `
SELECT w.work_item_id, w.project_id, w.name, w.task_count, w.delivered_at
FROM reporting.delivery_items w
WHERE (? = 0 OR w.project_id = ?)`
)

// TaskRow is one task record from the warehouse snapshot.
type TaskRow struct {
	ID            uint64
	Statement     string
	Status        string
	ProjectID     uint
	BatchID       *uint
	CurrentUserID *uint
	Delivered     *bool
	ReworkCount   int
	Domain        string
	TurnCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContributorRow is one workforce record from the warehouse snapshot.
type ContributorRow struct {
	ID        uint
	Name      string
	Email     string
	Role      string
	Active    bool
	PodLeadID *uint
}

// ReviewRow is one review record from the warehouse snapshot.
type ReviewRow struct {
	ID         uint64
	ReviewerID *uint
	TaskID     uint64
	Score      float64
	Delivered  *bool
	ReviewedAt time.Time
}

// TimeEntryRow is one person-day of tracked hours from the warehouse.
type TimeEntryRow struct {
	PersonKey string
	Date      time.Time
	Hours     float64
}

// WorkItemRow is one delivery batch record from the warehouse snapshot.
type WorkItemRow struct {
	ID          uint64
	ProjectID   uint
	Name        string
	TaskCount   int
	DeliveredAt *time.Time
}

// Tasks returns the current task snapshot, optionally filtered by project.
func (r *Reader) Tasks(ctx context.Context, p Params) ([]TaskRow, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(qctx, taskQuery, p.ProjectID, p.ProjectID)
	if err != nil {
		return nil, &queryError{name: "tasks", cause: err}
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var (
			t         TaskRow
			batchID   sql.NullInt64
			userID    sql.NullInt64
			delivered sql.NullBool
			domain    sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Statement, &t.Status, &t.ProjectID, &batchID,
			&userID, &delivered, &t.ReworkCount, &domain, &t.TurnCount,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, &queryError{name: "tasks", cause: err}
		}
		t.BatchID = nullUint(batchID)
		t.CurrentUserID = nullUint(userID)
		if delivered.Valid {
			t.Delivered = &delivered.Bool
		}
		t.Domain = domain.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &queryError{name: "tasks", cause: err}
	}
	return out, nil
}

// Contributors returns the current workforce snapshot.
func (r *Reader) Contributors(ctx context.Context) ([]ContributorRow, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(qctx, contributorQuery)
	if err != nil {
		return nil, &queryError{name: "contributors", cause: err}
	}
	defer rows.Close()

	var out []ContributorRow
	for rows.Next() {
		var (
			c         ContributorRow
			role      sql.NullString
			podLeadID sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &role, &c.Active, &podLeadID); err != nil {
			return nil, &queryError{name: "contributors", cause: err}
		}
		c.Role = role.String
		c.PodLeadID = nullUint(podLeadID)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &queryError{name: "contributors", cause: err}
	}
	return out, nil
}

// Reviews returns the current review snapshot, optionally filtered by project.
func (r *Reader) Reviews(ctx context.Context, p Params) ([]ReviewRow, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(qctx, reviewQuery, p.ProjectID, p.ProjectID)
	if err != nil {
		return nil, &queryError{name: "reviews", cause: err}
	}
	defer rows.Close()

	var out []ReviewRow
	for rows.Next() {
		var (
			rv         ReviewRow
			reviewerID sql.NullInt64
			delivered  sql.NullBool
		)
		if err := rows.Scan(&rv.ID, &reviewerID, &rv.TaskID, &rv.Score, &delivered, &rv.ReviewedAt); err != nil {
			return nil, &queryError{name: "reviews", cause: err}
		}
		rv.ReviewerID = nullUint(reviewerID)
		if delivered.Valid {
			rv.Delivered = &delivered.Bool
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, &queryError{name: "reviews", cause: err}
	}
	return out, nil
}

// TimeEntries returns tracked hours within the date window.
func (r *Reader) TimeEntries(ctx context.Context, p Params) ([]TimeEntryRow, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	from := nullTime(p.From)
	to := nullTime(p.To)
	rows, err := r.db.QueryContext(qctx, timeEntryQuery, from, from, to, to)
	if err != nil {
		return nil, &queryError{name: "time_entries", cause: err}
	}
	defer rows.Close()

	var out []TimeEntryRow
	for rows.Next() {
		var e TimeEntryRow
		if err := rows.Scan(&e.PersonKey, &e.Date, &e.Hours); err != nil {
			return nil, &queryError{name: "time_entries", cause: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &queryError{name: "time_entries", cause: err}
	}
	return out, nil
}

// WorkItems returns the delivery-batch snapshot, optionally filtered by project.
func (r *Reader) WorkItems(ctx context.Context, p Params) ([]WorkItemRow, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(qctx, workItemQuery, p.ProjectID, p.ProjectID)
	if err != nil {
		return nil, &queryError{name: "work_items", cause: err}
	}
	defer rows.Close()

	var out []WorkItemRow
	for rows.Next() {
		var (
			w           WorkItemRow
			name        sql.NullString
			deliveredAt sql.NullTime
		)
		if err := rows.Scan(&w.ID, &w.ProjectID, &name, &w.TaskCount, &deliveredAt); err != nil {
			return nil, &queryError{name: "work_items", cause: err}
		}
		w.Name = name.String
		if deliveredAt.Valid {
			t := deliveredAt.Time
			w.DeliveredAt = &t
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &queryError{name: "work_items", cause: err}
	}
	return out, nil
}

func nullUint(n sql.NullInt64) *uint {
	if !n.Valid {
		return nil
	}
	u := uint(n.Int64)
	return &u
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
