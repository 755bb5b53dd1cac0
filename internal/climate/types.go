package climate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// HVACMode is the operating mode of the thermostat.
type HVACMode string

const (
	HVACModeHeat HVACMode = "heat"
	HVACModeCool HVACMode = "cool"
	HVACModeOff  HVACMode = "off"
)

// ParseHVACMode parses a case-insensitive mode name.
func ParseHVACMode(s string) (HVACMode, error) {
	switch m := HVACMode(strings.ToLower(strings.TrimSpace(s))); m {
	case HVACModeHeat, HVACModeCool, HVACModeOff:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedMode, s)
	}
}

// HVACAction is what the thermostat is doing right now, derived from the
// mode and the observed actuator state.
type HVACAction string

const (
	HVACActionOff     HVACAction = "off"
	HVACActionIdle    HVACAction = "idle"
	HVACActionHeating HVACAction = "heating"
	HVACActionCooling HVACAction = "cooling"
)

// ActuatorStatus is the observed state of the heater or AC switch.
type ActuatorStatus string

const (
	ActuatorOn      ActuatorStatus = "on"
	ActuatorOff     ActuatorStatus = "off"
	ActuatorUnknown ActuatorStatus = "unknown"
)

// ParseActuatorStatus maps switch payloads ("on", "OFF", "true", "0", ...)
// to a status. Anything unrecognised, including "unavailable", is unknown.
func ParseActuatorStatus(s string) ActuatorStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return ActuatorOn
	case "off", "false", "0":
		return ActuatorOff
	default:
		return ActuatorUnknown
	}
}

// ActuatorState is the last observed actuator status and when it last changed.
type ActuatorState struct {
	Status ActuatorStatus `json:"status"`
	Since  time.Time      `json:"since"`
}

// IsOn reports whether the actuator was observed on.
func (a ActuatorState) IsOn() bool {
	return a.Status == ActuatorOn
}

// HeldFor reports how long the actuator has been in its current status.
// A zero Since means the start of the current status is unknown, which is
// treated as held indefinitely.
func (a ActuatorState) HeldFor(now time.Time) time.Duration {
	if a.Since.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(a.Since)
}

// TemperatureReading is a parsed, finite sensor sample.
type TemperatureReading struct {
	Value float64
}

// ParseReading parses a raw sensor value. Unavailable, unknown,
// unparsable, and non-finite values return ErrInvalidReading.
func ParseReading(raw string) (TemperatureReading, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "unavailable", "unknown", "none":
		return TemperatureReading{}, fmt.Errorf("%w: sensor reported %q", ErrInvalidReading, raw)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return TemperatureReading{}, fmt.Errorf("%w: %q: %w", ErrInvalidReading, raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return TemperatureReading{}, fmt.Errorf("%w: %q is not finite", ErrInvalidReading, raw)
	}
	return TemperatureReading{Value: v}, nil
}

// Precision is the display resolution of temperatures, in degrees.
type Precision float64

const (
	PrecisionWhole  Precision = 1
	PrecisionHalves Precision = 0.5
	PrecisionTenths Precision = 0.1
)

// ParsePrecision accepts "whole", "halves", "tenths" (and "half"/"tenth").
// An empty string selects tenths.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tenths", "tenth":
		return PrecisionTenths, nil
	case "halves", "half":
		return PrecisionHalves, nil
	case "whole":
		return PrecisionWhole, nil
	default:
		return 0, fmt.Errorf("climate: unrecognized precision %q", s)
	}
}

// Round rounds v to the nearest multiple of the precision.
func (p Precision) Round(v float64) float64 {
	switch p {
	case PrecisionWhole:
		return math.Round(v)
	case PrecisionHalves:
		return math.Round(v*2) / 2
	default:
		return math.Round(v*10) / 10
	}
}
