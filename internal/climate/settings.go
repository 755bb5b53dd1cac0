package climate

import (
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/config"
)

// Default temperature limits, in degrees, when none are configured.
const (
	DefaultMinTemp = 7.0
	DefaultMaxTemp = 35.0
)

// Settings is the static configuration of one thermostat.
type Settings struct {
	ID   string
	Name string

	ACMode bool

	MinTemp float64
	MaxTemp float64

	// TargetTemp is the configured setpoint; nil defers to persisted state.
	TargetTemp *float64

	MinCycleDuration time.Duration
	ColdTolerance    float64
	HotTolerance     float64
	KeepAlive        time.Duration

	// InitialHVACMode, when non-empty, wins over the persisted mode.
	InitialHVACMode HVACMode

	Precision Precision

	PresetTemps map[string]float64
}

// SettingsFromConfig converts the thermostat config section, applying
// the default temperature limits.
func SettingsFromConfig(cfg config.ThermostatConfig) (Settings, error) {
	s := Settings{
		ID:               cfg.UniqueID,
		Name:             cfg.Name,
		ACMode:           cfg.ACMode,
		MinTemp:          DefaultMinTemp,
		MaxTemp:          DefaultMaxTemp,
		TargetTemp:       cfg.TargetTemp,
		MinCycleDuration: cfg.MinCycleDuration,
		ColdTolerance:    cfg.ColdTolerance,
		HotTolerance:     cfg.HotTolerance,
		KeepAlive:        cfg.KeepAlive,
		PresetTemps:      cfg.PresetTemps(),
	}
	if cfg.MinTemp != nil {
		s.MinTemp = *cfg.MinTemp
	}
	if cfg.MaxTemp != nil {
		s.MaxTemp = *cfg.MaxTemp
	}

	if cfg.InitialHVACMode != "" {
		mode, err := ParseHVACMode(cfg.InitialHVACMode)
		if err != nil {
			return Settings{}, err
		}
		s.InitialHVACMode = mode
	}

	p, err := ParsePrecision(cfg.Precision)
	if err != nil {
		return Settings{}, err
	}
	s.Precision = p

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the invariants the Controller relies on.
func (s Settings) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("climate: thermostat id is required")
	}
	if s.MinTemp > s.MaxTemp {
		return fmt.Errorf("climate: min_temp %.1f exceeds max_temp %.1f", s.MinTemp, s.MaxTemp)
	}
	if s.InitialHVACMode != "" && !s.SupportsMode(s.InitialHVACMode) {
		return fmt.Errorf("%w: %q is not supported in this configuration", ErrUnrecognizedMode, s.InitialHVACMode)
	}
	if s.TargetTemp != nil && !s.inRange(*s.TargetTemp) {
		return fmt.Errorf("%w: target_temp %.1f not in [%.1f, %.1f]",
			ErrTemperatureOutOfRange, *s.TargetTemp, s.MinTemp, s.MaxTemp)
	}
	for _, name := range KnownPresets {
		if v, ok := s.PresetTemps[name]; ok && !s.inRange(v) {
			return fmt.Errorf("%w: %s %.1f not in [%.1f, %.1f]",
				ErrTemperatureOutOfRange, PresetAttribute(name), v, s.MinTemp, s.MaxTemp)
		}
	}
	return nil
}

func (s Settings) inRange(v float64) bool {
	return v >= s.MinTemp && v <= s.MaxTemp
}

// clamp limits v to [MinTemp, MaxTemp].
func (s Settings) clamp(v float64) float64 {
	return math.Min(math.Max(v, s.MinTemp), s.MaxTemp)
}

// HVACModes lists the modes this thermostat accepts.
func (s Settings) HVACModes() []HVACMode {
	if s.ACMode {
		return []HVACMode{HVACModeCool, HVACModeOff}
	}
	return []HVACMode{HVACModeHeat, HVACModeOff}
}

// SupportsMode reports whether mode is in HVACModes.
func (s Settings) SupportsMode(mode HVACMode) bool {
	for _, m := range s.HVACModes() {
		if m == mode {
			return true
		}
	}
	return false
}

// activeMode is the non-off mode of this thermostat.
func (s Settings) activeMode() HVACMode {
	if s.ACMode {
		return HVACModeCool
	}
	return HVACModeHeat
}
