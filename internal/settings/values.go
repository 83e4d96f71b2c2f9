package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/podlens/podlens/internal/models"
)

// Default expected handling times in hours, used when a project has no AHT
// configuration.
const (
	DefaultNewTaskAHT = 10.0
	DefaultReworkAHT  = 4.0
)

// AHTKey is the config key under which AHT values are stored.
const AHTKey = "aht"

// Value is one typed configuration payload. Each config type has its own
// shape; the union replaces the schema-less text column the warehouse
// exposes.
type Value interface {
	ConfigType() string
}

// AHTValue holds a project's expected handling times in hours.
type AHTValue struct {
	NewTaskHours float64 `json:"new_task_hours"`
	ReworkHours  float64 `json:"rework_hours"`
}

func (AHTValue) ConfigType() string { return models.ConfigTypeAHT }

// TargetValue holds a throughput target in submissions per working day.
type TargetValue struct {
	PerDay float64 `json:"per_day"`
}

func (TargetValue) ConfigType() string { return models.ConfigTypeTarget }

// WeightValue holds named performance-score weights.
type WeightValue struct {
	Weights map[string]float64 `json:"weights"`
}

func (WeightValue) ConfigType() string { return models.ConfigTypeWeight }

// ThresholdValue holds classification cutoffs.
type ThresholdValue struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (ThresholdValue) ConfigType() string { return models.ConfigTypeThreshold }

// Encode serializes a typed value to its stored JSON form.
func Encode(v Value) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("settings: encode %s value: %w", v.ConfigType(), err)
	}
	return string(data), nil
}

// Decode parses a stored row into its typed value based on ConfigType.
func Decode(row *models.Setting) (Value, error) {
	var (
		v   Value
		err error
	)
	switch row.ConfigType {
	case models.ConfigTypeAHT:
		var out AHTValue
		err = json.Unmarshal([]byte(row.Value), &out)
		v = out
	case models.ConfigTypeTarget:
		var out TargetValue
		err = json.Unmarshal([]byte(row.Value), &out)
		v = out
	case models.ConfigTypeWeight:
		var out WeightValue
		err = json.Unmarshal([]byte(row.Value), &out)
		v = out
	case models.ConfigTypeThreshold:
		var out ThresholdValue
		err = json.Unmarshal([]byte(row.Value), &out)
		v = out
	default:
		return nil, fmt.Errorf("settings: unknown config type %q", row.ConfigType)
	}
	if err != nil {
		return nil, fmt.Errorf("settings: decode %s value: %w", row.ConfigType, err)
	}
	return v, nil
}

// ProjectAHT returns the project's active AHT configuration, falling back
// to the documented defaults.
func (s *Store) ProjectAHT(ctx context.Context, projectID uint) (AHTValue, error) {
	fallback := AHTValue{NewTaskHours: DefaultNewTaskAHT, ReworkHours: DefaultReworkAHT}
	row, err := s.Get(ctx, Scope{ProjectID: projectID, ConfigType: models.ConfigTypeAHT, ConfigKey: AHTKey})
	if err != nil {
		return fallback, err
	}
	if row == nil {
		return fallback, nil
	}
	v, err := Decode(row)
	if err != nil {
		return fallback, err
	}
	aht, ok := v.(AHTValue)
	if !ok {
		return fallback, fmt.Errorf("settings: aht row holds %T", v)
	}
	return aht, nil
}

// Target returns the active throughput target for the key, preferring an
// entity-level override over the project default. Nil when neither is set.
func (s *Store) Target(ctx context.Context, projectID uint, key string, entityID *uint) (*TargetValue, error) {
	if entityID != nil {
		row, err := s.Get(ctx, Scope{ProjectID: projectID, ConfigType: models.ConfigTypeTarget, ConfigKey: key, EntityID: entityID})
		if err != nil {
			return nil, err
		}
		if row != nil {
			return decodeTarget(row)
		}
	}
	row, err := s.Get(ctx, Scope{ProjectID: projectID, ConfigType: models.ConfigTypeTarget, ConfigKey: key})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return decodeTarget(row)
}

func decodeTarget(row *models.Setting) (*TargetValue, error) {
	v, err := Decode(row)
	if err != nil {
		return nil, err
	}
	t, ok := v.(TargetValue)
	if !ok {
		return nil, fmt.Errorf("settings: target row holds %T", v)
	}
	return &t, nil
}
