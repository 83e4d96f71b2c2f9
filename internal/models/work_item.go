package models

import "time"

// WorkItem is a delivery batch grouping tasks shipped to the customer.
// Membership in a work item and the per-task delivered flag are tracked
// independently; neither implies the other.
type WorkItem struct {
	ID          uint64 `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"index"`
	Name        string `gorm:"size:128"`
	TaskCount   int    `gorm:"default:0"`
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
