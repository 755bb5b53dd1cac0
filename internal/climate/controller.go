package climate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Deps holds the collaborators of a Controller. Only Actuator is required.
type Deps struct {
	Actuator  Actuator
	Source    TemperatureSource
	Publisher StatePublisher
	Store     StateStore
	Metrics   *Metrics
	Logger    Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Controller is the hysteresis decision engine for one thermostat.
//
// Every operation takes the controller's mutex for its whole duration,
// including the actuator call, so decisions never interleave. Operations
// that change state publish a Snapshot and persist it before returning.
//
// Until Restore has run, operations update state but never command the
// actuator.
type Controller struct {
	mu sync.Mutex

	settings Settings
	presets  *PresetRegistry
	state    ThermostatState
	restored bool

	actuator  Actuator
	source    TemperatureSource
	publisher StatePublisher
	store     StateStore
	metrics   *Metrics
	logger    Logger
	now       func() time.Time
}

// NewController creates a Controller in its pre-restore state: mode off,
// preset "none", configured target (if any), actuator unknown.
func NewController(settings Settings, deps Deps) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Actuator == nil {
		return nil, fmt.Errorf("climate: actuator is required")
	}

	c := &Controller{
		settings:  settings,
		presets:   NewPresetRegistry(settings.PresetTemps),
		actuator:  deps.Actuator,
		source:    deps.Source,
		publisher: deps.Publisher,
		store:     deps.Store,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.state = ThermostatState{
		HVACMode:          HVACModeOff,
		PresetMode:        PresetNone,
		TargetTemperature: clonePtr(settings.TargetTemp),
		Actuator:          ActuatorState{Status: ActuatorUnknown},
	}
	c.state.SavedTargetTemperature = clonePtr(settings.TargetTemp)

	return c, nil
}

// Settings returns the static configuration.
func (c *Controller) Settings() Settings {
	return c.settings
}

// HandleSensorReading parses raw and, if valid, records it as the current
// temperature and evaluates. An invalid reading leaves state untouched and
// returns an error wrapping ErrInvalidReading.
func (c *Controller) HandleSensorReading(ctx context.Context, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reading, err := ParseReading(raw)
	if err != nil {
		c.metrics.invalidReading(c.settings.ID)
		c.logger.Warn("ignoring sensor reading", "thermostat", c.settings.ID, "raw", raw, "error", err)
		return err
	}

	c.state.CurrentTemperature = ptr(reading.Value)
	cmdErr := c.evaluate(ctx, false, false)
	c.commit(ctx)
	return cmdErr
}

// HandleActuatorObserved records the actuator's reported state. The
// transition time is only moved when the status actually changes, unless
// nothing is known about it yet. It never commands the actuator.
func (c *Controller) HandleActuatorObserved(ctx context.Context, status ActuatorStatus, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at.IsZero() {
		at = c.now()
	}

	prev := c.state.Actuator
	if prev.Status != status || prev.Since.IsZero() {
		c.state.Actuator = ActuatorState{Status: status, Since: at}
		c.logger.Debug("actuator state observed",
			"thermostat", c.settings.ID,
			"status", status,
			"previous", prev.Status,
		)
	}
	c.commit(ctx)
}

// SetHVACMode switches the operating mode. Entering heat or cool forces an
// evaluation; entering off turns the actuator off straight away if it is
// on, bypassing the minimum cycle duration.
func (c *Controller) SetHVACMode(ctx context.Context, mode HVACMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.settings.SupportsMode(mode) {
		c.logger.Warn("unsupported hvac mode requested", "thermostat", c.settings.ID, "mode", mode)
		return fmt.Errorf("%w: %q", ErrUnrecognizedMode, mode)
	}

	c.state.HVACMode = mode
	c.logger.Info("hvac mode set", "thermostat", c.settings.ID, "mode", mode)

	var cmdErr error
	if mode == HVACModeOff {
		if c.restored && c.state.Actuator.IsOn() {
			cmdErr = c.turnOff(ctx, false)
		}
	} else {
		cmdErr = c.evaluate(ctx, true, false)
	}
	c.commit(ctx)
	return cmdErr
}

// SetTargetTemperature sets the setpoint. With a preset active the value
// is also recorded as that preset's temperature. Forces an evaluation.
func (c *Controller) SetTargetTemperature(ctx context.Context, temp float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRange(temp); err != nil {
		return err
	}

	c.state.TargetTemperature = ptr(temp)
	if c.state.PresetMode != PresetNone {
		if err := c.presets.Set(c.state.PresetMode, temp); err != nil {
			return err
		}
	}

	cmdErr := c.evaluate(ctx, true, false)
	c.commit(ctx)
	return cmdErr
}

// SetPresetMode selects a preset. Leaving "none" saves the manual target;
// returning to "none" restores it. Entering a preset applies its recorded
// temperature, or keeps the current target if it has none. Forces an
// evaluation. Names outside Available return ErrUnrecognizedPreset with no
// state change.
func (c *Controller) SetPresetMode(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.presets.IsAvailable(name) {
		return fmt.Errorf("%w: %q", ErrUnrecognizedPreset, name)
	}

	if c.state.PresetMode == PresetNone {
		c.state.SavedTargetTemperature = clonePtr(c.state.TargetTemperature)
	}
	c.state.PresetMode = name

	if name == PresetNone {
		if c.state.SavedTargetTemperature != nil {
			c.state.TargetTemperature = clonePtr(c.state.SavedTargetTemperature)
		}
	} else if v, ok := c.presets.Temperature(name); ok {
		c.state.TargetTemperature = ptr(v)
	}

	c.logger.Info("preset mode set", "thermostat", c.settings.ID, "preset", name)

	cmdErr := c.evaluate(ctx, true, false)
	c.commit(ctx)
	return cmdErr
}

// SetPresetTemperatures records temperatures for the named presets. Names
// outside KnownPresets are ignored. When the active preset is updated its
// new temperature becomes the target at once and an evaluation is forced.
// A non-finite value, or a known preset outside [min_temp, max_temp],
// rejects the whole update.
func (c *Controller) SetPresetTemperatures(ctx context.Context, temps map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, v := range temps {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrTemperatureOutOfRange, PresetAttribute(name), v)
		}
		if !IsKnownPreset(name) {
			continue
		}
		if err := c.checkRange(v); err != nil {
			return fmt.Errorf("%s: %w", PresetAttribute(name), err)
		}
	}

	activeUpdated := false
	for name, v := range temps {
		if !IsKnownPreset(name) {
			c.logger.Debug("ignoring unknown preset temperature", "thermostat", c.settings.ID, "preset", name)
			continue
		}
		_ = c.presets.Set(name, v) //nolint:errcheck // name checked above
		if name == c.state.PresetMode {
			c.state.TargetTemperature = ptr(v)
			activeUpdated = true
		}
	}

	var cmdErr error
	if activeUpdated {
		cmdErr = c.evaluate(ctx, true, false)
	}
	c.commit(ctx)
	return cmdErr
}

// KeepAlive runs a keep-alive evaluation: the debounce gate is bypassed
// and, when no transition is needed, the current command is resent.
// State is neither published nor persisted.
func (c *Controller) KeepAlive(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evaluate(ctx, false, true)
}

// Snapshot returns the current published view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// State returns a copy of the internal state.
func (c *Controller) State() ThermostatState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.TargetTemperature = clonePtr(s.TargetTemperature)
	s.CurrentTemperature = clonePtr(s.CurrentTemperature)
	s.SavedTargetTemperature = clonePtr(s.SavedTargetTemperature)
	return s
}

// evaluate is the hysteresis and debounce decision. It must be called
// with c.mu held.
func (c *Controller) evaluate(ctx context.Context, forced, keepAlive bool) error {
	if !c.restored {
		return nil
	}

	st := &c.state
	if !st.Active && st.CurrentTemperature != nil && st.TargetTemperature != nil {
		st.Active = true
		c.logger.Info("obtained current and target temperature, thermostat active",
			"thermostat", c.settings.ID,
			"current", *st.CurrentTemperature,
			"target", *st.TargetTemperature,
		)
	}
	if !st.Active || st.HVACMode == HVACModeOff {
		return nil
	}

	if st.Actuator.Status == ActuatorUnknown {
		c.logger.Debug("actuator state unknown, no command issued", "thermostat", c.settings.ID)
		return nil
	}

	if !forced && !keepAlive && c.settings.MinCycleDuration > 0 {
		if held := st.Actuator.HeldFor(c.now()); held < c.settings.MinCycleDuration {
			c.metrics.debounceSkip(c.settings.ID)
			c.logger.Debug("minimum cycle duration not reached",
				"thermostat", c.settings.ID,
				"held", held,
				"min_cycle", c.settings.MinCycleDuration,
			)
			return nil
		}
	}

	cur, target := *st.CurrentTemperature, *st.TargetTemperature
	tooCold := target >= cur+c.settings.ColdTolerance
	tooHot := cur >= target+c.settings.HotTolerance
	ac := c.settings.ACMode

	if st.Actuator.IsOn() {
		if (ac && tooCold) || (!ac && tooHot) {
			c.logger.Info("turning actuator off", "thermostat", c.settings.ID, "current", cur, "target", target)
			return c.turnOff(ctx, false)
		}
		if keepAlive {
			return c.turnOn(ctx, true)
		}
		return nil
	}

	if (ac && tooHot) || (!ac && tooCold) {
		c.logger.Info("turning actuator on", "thermostat", c.settings.ID, "current", cur, "target", target)
		return c.turnOn(ctx, false)
	}
	if keepAlive {
		return c.turnOff(ctx, true)
	}
	return nil
}

func (c *Controller) turnOn(ctx context.Context, keepAlive bool) error {
	c.metrics.command(c.settings.ID, "turn_on", keepAlive)
	if err := c.actuator.TurnOn(ctx); err != nil {
		return c.actuatorFailed("turn_on", err)
	}
	return nil
}

func (c *Controller) turnOff(ctx context.Context, keepAlive bool) error {
	c.metrics.command(c.settings.ID, "turn_off", keepAlive)
	if err := c.actuator.TurnOff(ctx); err != nil {
		return c.actuatorFailed("turn_off", err)
	}
	return nil
}

func (c *Controller) actuatorFailed(cmd string, err error) error {
	c.metrics.actuatorError(c.settings.ID)
	c.logger.Error("actuator command failed", "thermostat", c.settings.ID, "command", cmd, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrActuatorCommand, cmd, err)
}

func (c *Controller) checkRange(temp float64) error {
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		return fmt.Errorf("%w: %v", ErrTemperatureOutOfRange, temp)
	}
	if temp < c.settings.MinTemp || temp > c.settings.MaxTemp {
		return fmt.Errorf("%w: %.1f not in [%.1f, %.1f]",
			ErrTemperatureOutOfRange, temp, c.settings.MinTemp, c.settings.MaxTemp)
	}
	return nil
}

// hvacAction derives the published action. Must be called with c.mu held.
func (c *Controller) hvacAction() HVACAction {
	switch {
	case c.state.HVACMode == HVACModeOff:
		return HVACActionOff
	case !c.state.Actuator.IsOn():
		return HVACActionIdle
	case c.settings.ACMode:
		return HVACActionCooling
	default:
		return HVACActionHeating
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ThermostatID:           c.settings.ID,
		Name:                   c.settings.Name,
		HVACMode:               c.state.HVACMode,
		HVACAction:             c.hvacAction(),
		HVACModes:              c.settings.HVACModes(),
		TargetTemperature:      clonePtr(c.state.TargetTemperature),
		SavedTargetTemperature: clonePtr(c.state.SavedTargetTemperature),
		TargetTemperatureStep:  float64(c.settings.Precision),
		MinTemp:                c.settings.MinTemp,
		MaxTemp:                c.settings.MaxTemp,
		PresetMode:             c.state.PresetMode,
		PresetModes:            c.presets.Available(),
		PresetTemperatures:     c.presets.Temperatures(),
		Active:                 c.state.Active,
		Actuator:               c.state.Actuator.Status,
		UpdatedAt:              c.now().UTC(),
	}
	if c.state.CurrentTemperature != nil {
		s.CurrentTemperature = ptr(c.settings.Precision.Round(*c.state.CurrentTemperature))
	}
	return s
}

// commit publishes and persists the current state. Failures are logged;
// they never undo a decision. Must be called with c.mu held.
func (c *Controller) commit(ctx context.Context) {
	snap := c.snapshotLocked()
	c.metrics.observe(snap)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, snap); err != nil {
			c.logger.Warn("publishing thermostat state failed", "thermostat", c.settings.ID, "error", err)
		}
	}
	if c.store != nil && c.restored {
		if err := c.store.Save(ctx, c.settings.ID, snap.Persisted()); err != nil {
			c.logger.Warn("persisting thermostat state failed", "thermostat", c.settings.ID, "error", err)
		}
	}
}

// LoadPersisted fetches the saved state from the store, mapping
// ErrNoPersistedState to nil.
func (c *Controller) LoadPersisted(ctx context.Context) (*PersistedState, error) {
	if c.store == nil {
		return nil, nil
	}
	ps, err := c.store.Load(ctx, c.settings.ID)
	if errors.Is(err, ErrNoPersistedState) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading persisted state: %w", err)
	}
	return ps, nil
}
