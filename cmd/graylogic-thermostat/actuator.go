package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-thermostat/internal/bridges/gpio"
	"github.com/nerrad567/gray-logic-thermostat/internal/bridges/mqttbridge"
	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/config"
)

// actuatorWaiter is satisfied by *mqttbridge.Listener.
type actuatorWaiter interface {
	WaitForActuator(ctx context.Context, timeout time.Duration) bool
}

// actuator is the configured climate.Actuator plus its startup and
// shutdown hooks.
type actuator struct {
	climate.Actuator

	// prime makes the actuator's current state known to the control loop.
	prime func(ctx context.Context, wait time.Duration, w actuatorWaiter) error
	close func() error
}

// Prime makes the current switch state known before restoration.
func (a *actuator) Prime(ctx context.Context, wait time.Duration, w actuatorWaiter) error {
	return a.prime(ctx, wait, w)
}

// Close releases the actuator's resources.
func (a *actuator) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// buildActuator creates the actuator selected by thermostat.actuator.type.
//
// An MQTT actuator publishes commands to the heater entity and learns its
// state from the listener. A GPIO actuator drives a local relay and posts
// each change to sink as climate.ActuatorObserved.
func buildActuator(cfg config.ThermostatConfig, thermostatID string, client mqttbridge.MQTTClient, sink mqttbridge.EventSink) (*actuator, error) {
	switch strings.ToLower(cfg.Actuator.Type) {
	case "", "mqtt":
		return &actuator{
			Actuator: mqttbridge.NewActuator(client, cfg.HeaterEntityID, thermostatID),
			prime: func(ctx context.Context, wait time.Duration, w actuatorWaiter) error {
				if !w.WaitForActuator(ctx, wait) {
					return fmt.Errorf("no state received for %s within %v", cfg.HeaterEntityID, wait)
				}
				return nil
			},
		}, nil

	case "gpio":
		relay, err := gpio.NewRealRelay(cfg.Actuator.GPIOChip, cfg.Actuator.GPIOLine, cfg.Actuator.ActiveLow)
		if err != nil {
			return nil, err
		}
		return newGPIOActuator(relay, sink), nil

	default:
		return nil, fmt.Errorf("unknown actuator type %q", cfg.Actuator.Type)
	}
}

// newGPIOActuator wires relay to the control loop through sink.
func newGPIOActuator(relay gpio.Relay, sink mqttbridge.EventSink) *actuator {
	act := gpio.NewActuator(relay, func(status climate.ActuatorStatus, at time.Time) {
		_ = sink.Post(climate.ActuatorObserved{Status: status, At: at}) //nolint:errcheck // loop stopped during shutdown
	})
	return &actuator{
		Actuator: act,
		prime: func(context.Context, time.Duration, actuatorWaiter) error {
			return act.Sync()
		},
		close: relay.Close,
	}
}
