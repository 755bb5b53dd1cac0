package climate

import (
	"context"
	"errors"
)

// TemperatureSource returns the sensor's latest raw value. It is read once
// during restoration when no reading has arrived yet.
type TemperatureSource interface {
	Temperature(ctx context.Context) (string, error)
}

// Actuator switches the heater or AC. The resulting state change is
// reported back separately as an ActuatorObserved event.
type Actuator interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// StatePublisher receives a Snapshot after every state change.
type StatePublisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// StateStore persists the thermostat between restarts. Load returns
// ErrNoPersistedState when nothing has been saved.
type StateStore interface {
	Load(ctx context.Context, thermostatID string) (*PersistedState, error)
	Save(ctx context.Context, thermostatID string, state PersistedState) error
}

// Publishers fans a Snapshot out to several publishers. Every publisher is
// called; their errors are joined.
type Publishers []StatePublisher

// Publish implements StatePublisher.
func (ps Publishers) Publish(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, snap.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to StatePublisher.
type PublisherFunc func(ctx context.Context, snap Snapshot) error

// Publish implements StatePublisher.
func (f PublisherFunc) Publish(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Logger defines the logging interface used by the climate package.
// It is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
