package climate

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
)

// Persisted attribute keys.
const (
	AttrTargetTemperature      = "target_temperature"
	AttrPresetMode             = "preset_mode"
	AttrSavedTargetTemperature = "saved_target_temperature"
)

// ThermostatState is the mutable record owned by a Controller.
type ThermostatState struct {
	HVACMode   HVACMode
	PresetMode string

	// TargetTemperature and CurrentTemperature are nil until known.
	TargetTemperature  *float64
	CurrentTemperature *float64

	// SavedTargetTemperature is the manual target in effect before the
	// current preset was entered.
	SavedTargetTemperature *float64

	// Active latches true once both temperatures are known.
	Active bool

	Actuator ActuatorState
}

// Snapshot is the published view of a thermostat.
type Snapshot struct {
	ThermostatID string `json:"thermostat_id"`
	Name         string `json:"name"`

	HVACMode   HVACMode   `json:"hvac_mode"`
	HVACAction HVACAction `json:"hvac_action"`
	HVACModes  []HVACMode `json:"hvac_modes"`

	CurrentTemperature     *float64 `json:"current_temperature"`
	TargetTemperature      *float64 `json:"target_temperature"`
	SavedTargetTemperature *float64 `json:"saved_target_temperature,omitempty"`
	TargetTemperatureStep  float64  `json:"target_temperature_step"`
	MinTemp                float64  `json:"min_temp"`
	MaxTemp                float64  `json:"max_temp"`

	PresetMode         string             `json:"preset_mode"`
	PresetModes        []string           `json:"preset_modes"`
	PresetTemperatures map[string]float64 `json:"preset_temperatures"`

	Active   bool           `json:"active"`
	Actuator ActuatorStatus `json:"actuator"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PersistedState is what a StateStore keeps between restarts: the last
// published mode plus a flat attribute map. Attribute values may be
// numbers or numeric strings.
type PersistedState struct {
	HVACMode   string         `json:"hvac_mode"`
	Attributes map[string]any `json:"attributes"`
}

// Persisted builds the PersistedState for this snapshot: target, preset
// mode, saved target, and one "{preset}_temp" per recorded preset.
func (s Snapshot) Persisted() PersistedState {
	attrs := make(map[string]any, len(s.PresetTemperatures)+3)
	if s.TargetTemperature != nil {
		attrs[AttrTargetTemperature] = *s.TargetTemperature
	}
	attrs[AttrPresetMode] = s.PresetMode
	if s.SavedTargetTemperature != nil {
		attrs[AttrSavedTargetTemperature] = *s.SavedTargetTemperature
	}
	for name, v := range s.PresetTemperatures {
		attrs[PresetAttribute(name)] = v
	}
	return PersistedState{HVACMode: string(s.HVACMode), Attributes: attrs}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s Snapshot) Clone() Snapshot {
	s.HVACModes = append([]HVACMode(nil), s.HVACModes...)
	s.PresetModes = append([]string(nil), s.PresetModes...)
	s.PresetTemperatures = maps.Clone(s.PresetTemperatures)
	s.CurrentTemperature = clonePtr(s.CurrentTemperature)
	s.TargetTemperature = clonePtr(s.TargetTemperature)
	s.SavedTargetTemperature = clonePtr(s.SavedTargetTemperature)
	return s
}

// Float returns the attribute as a float64, accepting numbers and
// numeric strings.
func (p *PersistedState) Float(key string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.Attributes[key]
	if !ok || v == nil {
		return 0, false
	}
	f, err := toFloat(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Text returns the attribute as a string.
func (p *PersistedState) Text(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p.Attributes[key].(string)
	return s, ok
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case interface{ Float64() (float64, error) }: // json.Number
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported attribute type %T", v)
	}
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr(v float64) *float64 {
	return &v
}
