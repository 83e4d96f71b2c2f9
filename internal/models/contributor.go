package models

import "time"

// Contributor roles.
const (
	RoleTrainer  = "trainer"
	RoleReviewer = "reviewer"
	RolePodLead  = "pod_lead"
)

// Contributor is a person doing trainer, reviewer, or POD-lead work.
// PodLeadID forms a two-level hierarchy: a POD lead supervises trainers,
// and is never itself supervised. That invariant is enforced in the sync
// engine rather than the schema.
type Contributor struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:128;uniqueIndex;not null"`
	Role      string `gorm:"size:16;default:trainer;index"`
	Active    bool   `gorm:"default:true"`
	PodLeadID *uint  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	PodLead  *Contributor  `gorm:"foreignKey:PodLeadID;constraint:OnDelete:SET NULL"`
	Trainers []Contributor `gorm:"foreignKey:PodLeadID"`
}
