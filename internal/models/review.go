package models

import "time"

// Review is one reviewer's evaluation of one task submission. Deleting the
// parent task cascades; deleting the reviewer keeps the review for audit
// with a nulled reviewer reference.
type Review struct {
	ID         uint64 `gorm:"primaryKey"`
	ReviewerID *uint  `gorm:"index"`
	TaskID     uint64 `gorm:"index;not null"`
	Score      float64
	Delivered  bool      `gorm:"default:false"`
	ReviewedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Reviewer *Contributor `gorm:"foreignKey:ReviewerID;constraint:OnDelete:SET NULL"`
	Task     Task         `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}
