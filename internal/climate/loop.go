package climate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event is an input to the control loop.
type Event interface {
	apply(ctx context.Context, c *Controller) error
	name() string
}

// SensorReading is a raw value from the temperature sensor.
type SensorReading struct {
	Raw string
}

// ActuatorObserved reports the actuator's state. A zero At means "now".
type ActuatorObserved struct {
	Status ActuatorStatus
	At     time.Time
}

// SetHVACModeRequest asks for a new HVAC mode.
type SetHVACModeRequest struct {
	Mode HVACMode
}

// SetTargetTemperatureRequest asks for a new setpoint.
type SetTargetTemperatureRequest struct {
	Temperature float64
}

// SetPresetModeRequest asks for a preset ("none" to leave presets).
type SetPresetModeRequest struct {
	Preset string
}

// SetPresetTemperaturesRequest records temperatures for named presets.
type SetPresetTemperaturesRequest struct {
	Temperatures map[string]float64
}

// KeepAliveTick triggers a keep-alive evaluation.
type KeepAliveTick struct{}

// RestoreRequest restores the thermostat from persisted state (may be nil).
type RestoreRequest struct {
	State *PersistedState
}

func (e SensorReading) apply(ctx context.Context, c *Controller) error {
	return c.HandleSensorReading(ctx, e.Raw)
}

func (e ActuatorObserved) apply(ctx context.Context, c *Controller) error {
	c.HandleActuatorObserved(ctx, e.Status, e.At)
	return nil
}

func (e SetHVACModeRequest) apply(ctx context.Context, c *Controller) error {
	return c.SetHVACMode(ctx, e.Mode)
}

func (e SetTargetTemperatureRequest) apply(ctx context.Context, c *Controller) error {
	return c.SetTargetTemperature(ctx, e.Temperature)
}

func (e SetPresetModeRequest) apply(ctx context.Context, c *Controller) error {
	return c.SetPresetMode(ctx, e.Preset)
}

func (e SetPresetTemperaturesRequest) apply(ctx context.Context, c *Controller) error {
	return c.SetPresetTemperatures(ctx, e.Temperatures)
}

func (KeepAliveTick) apply(ctx context.Context, c *Controller) error {
	return c.KeepAlive(ctx)
}

func (e RestoreRequest) apply(ctx context.Context, c *Controller) error {
	return c.Restore(ctx, e.State)
}

func (SensorReading) name() string                { return "sensor_reading" }
func (ActuatorObserved) name() string             { return "actuator_observed" }
func (SetHVACModeRequest) name() string           { return "set_hvac_mode" }
func (SetTargetTemperatureRequest) name() string  { return "set_target_temperature" }
func (SetPresetModeRequest) name() string         { return "set_preset_mode" }
func (SetPresetTemperaturesRequest) name() string { return "set_preset_temperatures" }
func (KeepAliveTick) name() string                { return "keep_alive" }
func (RestoreRequest) name() string               { return "restore" }

type envelope struct {
	event  Event
	result chan error // nil for Post
}

// Loop is the single serialized entry point for one thermostat. Events are
// applied to the Controller one at a time, in arrival order, by the
// goroutine running Run. The keep-alive ticker, when configured, runs on
// the same goroutine.
//
// The queue is unbounded so Post never blocks; MQTT handlers rely on that.
type Loop struct {
	ctrl      *Controller
	keepAlive time.Duration
	logger    Logger

	mu      sync.Mutex
	queue   []envelope
	stopped bool
	wake    chan struct{}
}

// NewLoop creates a loop for ctrl. keepAlive of zero disables the ticker.
func NewLoop(ctrl *Controller, keepAlive time.Duration) *Loop {
	return &Loop{
		ctrl:      ctrl,
		keepAlive: keepAlive,
		logger:    ctrl.logger,
		wake:      make(chan struct{}, 1),
	}
}

// Controller returns the controller driven by this loop.
func (l *Loop) Controller() *Controller {
	return l.ctrl
}

// Snapshot returns the controller's current published view.
func (l *Loop) Snapshot() Snapshot {
	return l.ctrl.Snapshot()
}

// Post enqueues ev without waiting for it to be applied. Errors from the
// event are logged by the loop.
func (l *Loop) Post(ev Event) error {
	return l.enqueue(envelope{event: ev})
}

// Submit enqueues ev and waits for its result. ctx bounds only the wait;
// once dequeued, an event always runs to completion.
func (l *Loop) Submit(ctx context.Context, ev Event) error {
	result := make(chan error, 1)
	if err := l.enqueue(envelope{event: ev, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) enqueue(env envelope) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.queue = append(l.queue, env)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run processes events until ctx is cancelled. Events still queued at
// that point fail with ErrLoopStopped.
func (l *Loop) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.keepAlive > 0 {
		ticker := time.NewTicker(l.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		l.drain(ctx)

		select {
		case <-ctx.Done():
			l.stop()
			return nil
		case <-l.wake:
		case <-tick:
			l.dispatch(ctx, envelope{event: KeepAliveTick{}})
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for ctx.Err() == nil {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		env := l.queue[0]
		l.queue[0] = envelope{}
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.dispatch(ctx, env)
	}
}

func (l *Loop) dispatch(ctx context.Context, env envelope) {
	err := env.event.apply(ctx, l.ctrl)
	if env.result != nil {
		env.result <- err
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidReading), errors.Is(err, ErrUnrecognizedPreset):
			l.logger.Debug("event rejected", "event", env.event.name(), "error", err)
		default:
			l.logger.Warn("event failed", "event", env.event.name(), "error", err)
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, env := range pending {
		if env.result != nil {
			env.result <- ErrLoopStopped
		}
	}
}
