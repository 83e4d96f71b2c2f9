// Package settings manages versioned configuration values with
// effective-date ranges. Setting a new value closes the active row instead
// of deleting it, so history stays queryable by date.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podlens/podlens/internal/models"
	"gorm.io/gorm"
)

// ErrConflict is returned when a new value's effective-date range overlaps
// the active row in a way the store cannot auto-resolve.
var ErrConflict = errors.New("settings: effective range conflicts with active value")

// Store provides CRUD over versioned settings.
type Store struct {
	db *gorm.DB
}

// New creates a settings Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Scope identifies one configuration slot. EntityID nil means the
// project-level value.
type Scope struct {
	ProjectID  uint
	ConfigType string
	ConfigKey  string
	EntityID   *uint
}

func scopeQuery(db *gorm.DB, s Scope) *gorm.DB {
	q := db.Model(&models.Setting{}).
		Where("project_id = ? AND config_type = ? AND config_key = ?", s.ProjectID, s.ConfigType, s.ConfigKey)
	if s.EntityID == nil {
		return q.Where("entity_id IS NULL")
	}
	return q.Where("entity_id = ?", *s.EntityID)
}

// Get returns the currently active setting for the scope, or nil when none
// exists.
func (s *Store) Get(ctx context.Context, scope Scope) (*models.Setting, error) {
	var row models.Setting
	err := scopeQuery(s.db.WithContext(ctx), scope).
		Where("effective_to IS NULL").
		Order("effective_from DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get: %w", err)
	}
	return &row, nil
}

// GetAt returns the setting that was effective on the given date, or nil.
func (s *Store) GetAt(ctx context.Context, scope Scope, at time.Time) (*models.Setting, error) {
	var row models.Setting
	err := scopeQuery(s.db.WithContext(ctx), scope).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", at, at).
		Order("effective_from DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get at %s: %w", at.Format("2006-01-02"), err)
	}
	return &row, nil
}

// Set activates a new value for the scope from effectiveFrom onward. The
// previously active row, if any, is closed the day before. Returns the
// previous and new rows.
func (s *Store) Set(ctx context.Context, scope Scope, value Value, effectiveFrom time.Time) (prev, cur *models.Setting, err error) {
	encoded, err := Encode(value)
	if err != nil {
		return nil, nil, err
	}
	if scope.ConfigType == "" {
		scope.ConfigType = value.ConfigType()
	}
	if scope.ConfigType != value.ConfigType() {
		return nil, nil, fmt.Errorf("settings: value type %s does not match scope type %s", value.ConfigType(), scope.ConfigType)
	}
	// Ranges work at day granularity. Truncating here also makes the
	// strictly-after check reject a second Set on the same calendar day,
	// which would otherwise close the active row before its own start.
	effectiveFrom = dateOnly(effectiveFrom)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active models.Setting
		findErr := scopeQuery(tx, scope).
			Where("effective_to IS NULL").
			Order("effective_from DESC").
			First(&active).Error
		switch {
		case findErr == nil:
			// New range must start after the active one; anything else
			// would rewrite history and needs manual resolution.
			if !effectiveFrom.After(dateOnly(active.EffectiveFrom)) {
				return fmt.Errorf("%w: active since %s", ErrConflict, active.EffectiveFrom.Format("2006-01-02"))
			}
			closeAt := effectiveFrom.AddDate(0, 0, -1)
			if err := tx.Model(&models.Setting{}).
				Where("id = ?", active.ID).
				Update("effective_to", closeAt).Error; err != nil {
				return fmt.Errorf("settings: close active row: %w", err)
			}
			active.EffectiveTo = &closeAt
			prev = &active
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			// First value for this scope.
		default:
			return fmt.Errorf("settings: find active row: %w", findErr)
		}

		row := models.Setting{
			ProjectID:     scope.ProjectID,
			ConfigType:    scope.ConfigType,
			ConfigKey:     scope.ConfigKey,
			EntityID:      scope.EntityID,
			Value:         encoded,
			EffectiveFrom: effectiveFrom,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("settings: insert value: %w", err)
		}
		cur = &row
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, cur, nil
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// History returns all rows for the scope, newest first.
func (s *Store) History(ctx context.Context, scope Scope) ([]models.Setting, error) {
	var rows []models.Setting
	if err := scopeQuery(s.db.WithContext(ctx), scope).
		Order("effective_from DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("settings: history: %w", err)
	}
	return rows, nil
}
