package models

import "time"

// Task statuses as they arrive from the warehouse workflow.
const (
	TaskStatusNew        = "new"
	TaskStatusInProgress = "in_progress"
	TaskStatusSubmitted  = "submitted"
	TaskStatusInReview   = "in_review"
	TaskStatusRework     = "rework"
	TaskStatusCompleted  = "completed"
	TaskStatusDelivered  = "delivered"
)

// Task is one unit of labeling work. Rows are created and updated only by
// the sync engine; the API layer never writes tasks directly.
type Task struct {
	ID            uint64 `gorm:"primaryKey"`
	Statement     string `gorm:"type:text"`
	Status        string `gorm:"size:32;index"`
	ProjectID     uint   `gorm:"index"`
	BatchID       *uint  `gorm:"index"`
	CurrentUserID *uint  `gorm:"index"`
	Delivered     bool   `gorm:"default:false"`
	ReworkCount   int    `gorm:"default:0"`
	Domain        string `gorm:"size:64"`
	TurnCount     int    `gorm:"default:0"`

	// Timestamps as reported by the warehouse, distinct from the local
	// row bookkeeping below.
	SourceCreatedAt time.Time
	SourceUpdatedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	CurrentUser *Contributor `gorm:"foreignKey:CurrentUserID;constraint:OnDelete:SET NULL"`
	Reviews     []Review     `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}
