package models

import "time"

// Setting config types. Each type has its own value shape, decoded by the
// settings package.
const (
	ConfigTypeAHT       = "aht"
	ConfigTypeTarget    = "target"
	ConfigTypeWeight    = "weight"
	ConfigTypeThreshold = "threshold"
)

// Setting is one versioned configuration value scoped to a project and
// optionally to a single contributor. At most one row per
// (project, type, key, entity) has a nil EffectiveTo; setting a new value
// closes the old row instead of deleting it, so history stays queryable.
type Setting struct {
	ID            uint       `gorm:"primaryKey;autoIncrement"`
	ProjectID     uint       `gorm:"index:idx_settings_scope"`
	ConfigType    string     `gorm:"size:32;index:idx_settings_scope"`
	ConfigKey     string     `gorm:"size:64;index:idx_settings_scope"`
	EntityID      *uint      `gorm:"index:idx_settings_scope"`
	Value         string     `gorm:"type:text"`
	EffectiveFrom time.Time  `gorm:"type:date"`
	EffectiveTo   *time.Time `gorm:"type:date"`
	CreatedAt     time.Time
}
