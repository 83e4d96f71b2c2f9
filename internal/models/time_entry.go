package models

import "time"

// Time entry sources. Entries from different sources for the same person
// and day are kept as distinct rows, never merged.
const (
	TimeSourceJibble    = "jibble"
	TimeSourceWarehouse = "warehouse"
)

// TimeEntry is one person-day of logged hours from a time-tracking source.
type TimeEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	PersonKey string    `gorm:"size:64;uniqueIndex:idx_time_entries_person_date_source"`
	Date      time.Time `gorm:"type:date;uniqueIndex:idx_time_entries_person_date_source"`
	Source    string    `gorm:"size:16;default:jibble;uniqueIndex:idx_time_entries_person_date_source"`
	Hours     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
