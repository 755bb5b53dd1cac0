// Package gpio drives a heater or AC relay wired to a GPIO output line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
)

// Relay switches a single output line.
type Relay interface {
	// Set drives the relay on (true) or off (false).
	Set(on bool) error

	// State returns the logical state last driven.
	State() (bool, error)

	// Close releases the line, leaving the relay off.
	Close() error
}

// ObserveFunc receives the relay state after every successful change.
// It is usually wired to post climate.ActuatorObserved to the control loop.
type ObserveFunc func(status climate.ActuatorStatus, at time.Time)

// Actuator adapts a Relay to climate.Actuator. A GPIO relay has no state
// feed of its own, so the Actuator reports each change through observe.
type Actuator struct {
	mu      sync.Mutex
	relay   Relay
	observe ObserveFunc
	now     func() time.Time
}

// NewActuator creates an Actuator. observe may be nil.
func NewActuator(relay Relay, observe ObserveFunc) *Actuator {
	return &Actuator{relay: relay, observe: observe, now: time.Now}
}

// TurnOn energises the relay.
func (a *Actuator) TurnOn(ctx context.Context) error {
	return a.set(ctx, true)
}

// TurnOff releases the relay.
func (a *Actuator) TurnOff(ctx context.Context) error {
	return a.set(ctx, false)
}

// Sync reports the relay's current state through observe, so the
// controller learns it before restoration.
func (a *Actuator) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	on, err := a.relay.State()
	if err != nil {
		return fmt.Errorf("read relay state: %w", err)
	}
	a.report(on)
	return nil
}

func (a *Actuator) set(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.relay.Set(on); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	a.report(on)
	return nil
}

func (a *Actuator) report(on bool) {
	if a.observe == nil {
		return
	}
	status := climate.ActuatorOff
	if on {
		status = climate.ActuatorOn
	}
	a.observe(status, a.now())
}
