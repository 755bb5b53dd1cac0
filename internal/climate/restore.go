package climate

import (
	"context"
)

// Restore rebuilds the thermostat from persisted state and configuration.
// It must run once, after the actuator's state has had a chance to arrive
// and before the controller is expected to act. prev may be nil.
//
// Rules:
//   - target: configured, else persisted, else max_temp (AC) or min_temp (heat)
//   - persisted temperatures outside [min_temp, max_temp] are clamped to it
//   - preset temperatures and saved target: persisted values are adopted
//   - preset mode: persisted, if still available, else "none"; while a
//     preset is active its recorded temperature is the target
//   - hvac mode: configured initial mode, else persisted, else off
//
// Finally, if the mode is off but the actuator is on, it is turned off.
// Otherwise a normal, debounced evaluation runs.
func (c *Controller) Restore(ctx context.Context, prev *PersistedState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.settings.ID
	st := &c.state

	for _, name := range KnownPresets {
		if v, ok := prev.Float(PresetAttribute(name)); ok {
			v = c.clampRestored(PresetAttribute(name), v)
			_ = c.presets.Set(name, v) //nolint:errcheck // KnownPresets only
		}
	}

	switch {
	case c.settings.TargetTemp != nil:
		st.TargetTemperature = clonePtr(c.settings.TargetTemp)
	case hasFloat(prev, AttrTargetTemperature):
		v, _ := prev.Float(AttrTargetTemperature)
		st.TargetTemperature = ptr(c.clampRestored(AttrTargetTemperature, v))
	default:
		fallback := c.settings.MinTemp
		if c.settings.ACMode {
			fallback = c.settings.MaxTemp
		}
		st.TargetTemperature = ptr(fallback)
		c.logger.Warn("no previously saved temperature, using fallback",
			"thermostat", id,
			"target", fallback,
		)
	}

	if v, ok := prev.Float(AttrSavedTargetTemperature); ok {
		st.SavedTargetTemperature = ptr(c.clampRestored(AttrSavedTargetTemperature, v))
	} else {
		st.SavedTargetTemperature = clonePtr(st.TargetTemperature)
	}

	st.PresetMode = PresetNone
	if name, ok := prev.Text(AttrPresetMode); ok && name != "" {
		if c.presets.IsAvailable(name) {
			st.PresetMode = name
			if v, ok := c.presets.Temperature(name); ok {
				st.TargetTemperature = ptr(v)
			}
		} else {
			c.logger.Warn("persisted preset no longer available", "thermostat", id, "preset", name)
		}
	}

	st.HVACMode = HVACModeOff
	switch {
	case c.settings.InitialHVACMode != "":
		st.HVACMode = c.settings.InitialHVACMode
	case prev != nil && prev.HVACMode != "":
		mode, err := ParseHVACMode(prev.HVACMode)
		if err == nil && c.settings.SupportsMode(mode) {
			st.HVACMode = mode
		} else {
			c.logger.Warn("persisted hvac mode not supported, defaulting to off",
				"thermostat", id,
				"mode", prev.HVACMode,
			)
		}
	}

	if st.CurrentTemperature == nil && c.source != nil {
		raw, err := c.source.Temperature(ctx)
		if err == nil {
			if reading, perr := ParseReading(raw); perr == nil {
				st.CurrentTemperature = ptr(reading.Value)
			} else {
				err = perr
			}
		}
		if err != nil {
			c.logger.Debug("no startup temperature available", "thermostat", id, "error", err)
		}
	}

	c.restored = true
	c.logger.Info("thermostat restored",
		"thermostat", id,
		"hvac_mode", st.HVACMode,
		"preset", st.PresetMode,
		"target", *st.TargetTemperature,
		"actuator", st.Actuator.Status,
	)

	var cmdErr error
	if st.HVACMode == HVACModeOff && st.Actuator.IsOn() {
		c.logger.Warn("hvac mode is off but actuator is on, turning it off", "thermostat", id)
		cmdErr = c.turnOff(ctx, false)
	} else {
		cmdErr = c.evaluate(ctx, false, false)
	}

	c.commit(ctx)
	return cmdErr
}

// Restored reports whether Restore has completed.
func (c *Controller) Restored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// clampRestored limits a persisted temperature to the configured range,
// warning when it had to move. Must be called with c.mu held.
func (c *Controller) clampRestored(attr string, v float64) float64 {
	clamped := c.settings.clamp(v)
	if clamped != v {
		c.logger.Warn("persisted temperature outside limits, clamping",
			"thermostat", c.settings.ID,
			"attribute", attr,
			"value", v,
			"clamped", clamped,
		)
	}
	return clamped
}

func hasFloat(p *PersistedState, key string) bool {
	_, ok := p.Float(key)
	return ok
}
