package climate

import "errors"

// Domain errors for the climate package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, climate.ErrInvalidReading) {
//	    // sensor sent garbage, previous temperature retained
//	}
var (
	// ErrInvalidReading is returned when a sensor value is unparsable,
	// non-finite, or reported as unavailable/unknown.
	ErrInvalidReading = errors.New("climate: invalid temperature reading")

	// ErrUnrecognizedMode is returned for HVAC modes the thermostat does not support.
	ErrUnrecognizedMode = errors.New("climate: unrecognized hvac mode")

	// ErrUnrecognizedPreset is returned for preset names outside the available set.
	ErrUnrecognizedPreset = errors.New("climate: unrecognized preset")

	// ErrTemperatureOutOfRange is returned when a target temperature is
	// non-finite or outside [min_temp, max_temp].
	ErrTemperatureOutOfRange = errors.New("climate: temperature out of range")

	// ErrNoPersistedState is returned by a StateStore that has nothing saved.
	ErrNoPersistedState = errors.New("climate: no persisted state")

	// ErrActuatorCommand wraps failures reported by the Actuator.
	ErrActuatorCommand = errors.New("climate: actuator command failed")

	// ErrLoopStopped is returned when submitting to a Loop that is not running.
	ErrLoopStopped = errors.New("climate: control loop stopped")
)
