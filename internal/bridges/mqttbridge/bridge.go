package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/mqtt"
)

const (
	// commandQoS is used for switch commands. Commands are never retained,
	// so a reconnecting switch cannot replay a stale one.
	commandQoS = 1

	// stateQoS is used for the thermostat snapshot.
	stateQoS = 1

	// subscribeQoS is used for sensor and switch state topics.
	subscribeQoS = 1
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// EventSink receives events for the control loop. *climate.Loop satisfies it.
type EventSink interface {
	Post(ev climate.Event) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Actuator commands a switch entity over MQTT. It implements climate.Actuator.
type Actuator struct {
	client   MQTTClient
	entityID string
	source   string
	now      func() time.Time
}

// NewActuator creates an Actuator for the switch entityID. thermostatID is
// recorded as the command source.
func NewActuator(client MQTTClient, entityID, thermostatID string) *Actuator {
	return &Actuator{
		client:   client,
		entityID: entityID,
		source:   "climate:" + thermostatID,
		now:      time.Now,
	}
}

// TurnOn sends turn_on to the switch.
func (a *Actuator) TurnOn(ctx context.Context) error {
	return a.send(ctx, CommandTurnOn)
}

// TurnOff sends turn_off to the switch.
func (a *Actuator) TurnOff(ctx context.Context) error {
	return a.send(ctx, CommandTurnOff)
}

func (a *Actuator) send(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: a.now().UTC(),
		EntityID:  a.entityID,
		Command:   command,
		Source:    a.source,
	})
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", command, err)
	}

	if err := a.client.Publish(mqtt.Topics{}.EntityCommand(a.entityID), payload, commandQoS, false); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", command, a.entityID, err)
	}
	return nil
}

// StatePublisher publishes thermostat snapshots as retained messages. It
// implements climate.StatePublisher.
type StatePublisher struct {
	client MQTTClient
}

// NewStatePublisher creates a StatePublisher.
func NewStatePublisher(client MQTTClient) *StatePublisher {
	return &StatePublisher{client: client}
}

// Publish implements climate.StatePublisher.
func (p *StatePublisher) Publish(_ context.Context, snap climate.Snapshot) error {
	payload, err := json.Marshal(StateMessage{Timestamp: snap.UpdatedAt, State: snap})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	topic := mqtt.Topics{}.ClimateState(snap.ThermostatID)
	if err := p.client.Publish(topic, payload, stateQoS, true); err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	return nil
}

// ListenerOptions configures a Listener.
type ListenerOptions struct {
	// Client is the MQTT client used for subscriptions.
	Client MQTTClient

	// Sink receives the events, normally the thermostat's *climate.Loop.
	Sink EventSink

	// SensorEntityID is the temperature sensor entity.
	SensorEntityID string

	// ActuatorEntityID is the heater or AC switch entity.
	ActuatorEntityID string

	// Logger is optional.
	Logger Logger
}

// Listener turns sensor and switch state messages into control loop events.
// It also remembers the last raw sensor value so it can serve as the
// thermostat's climate.TemperatureSource during restoration.
//
// Thread Safety: All methods are safe for concurrent use.
type Listener struct {
	client   MQTTClient
	sink     EventSink
	sensor   string
	actuator string
	logger   Logger

	mu          sync.RWMutex
	lastReading string
	hasReading  bool

	actuatorSeen chan struct{}
	seenOnce     sync.Once
}

// NewListener creates a Listener. Call Start to subscribe.
func NewListener(opts ListenerOptions) (*Listener, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	if opts.SensorEntityID == "" || opts.ActuatorEntityID == "" {
		return nil, fmt.Errorf("sensor and actuator entity IDs are required")
	}

	l := &Listener{
		client:       opts.Client,
		sink:         opts.Sink,
		sensor:       opts.SensorEntityID,
		actuator:     opts.ActuatorEntityID,
		logger:       opts.Logger,
		actuatorSeen: make(chan struct{}),
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	return l, nil
}

// Start subscribes to the sensor and switch state topics. Retained states
// are delivered by the broker straight away.
func (l *Listener) Start() error {
	topics := mqtt.Topics{}

	sensorTopic := topics.EntityState(l.sensor)
	if err := l.client.Subscribe(sensorTopic, subscribeQoS, l.handleSensor); err != nil {
		return fmt.Errorf("subscribe to sensor state: %w", err)
	}
	l.logger.Info("subscribed to sensor state", "topic", sensorTopic)

	actuatorTopic := topics.EntityState(l.actuator)
	if err := l.client.Subscribe(actuatorTopic, subscribeQoS, l.handleActuator); err != nil {
		return fmt.Errorf("subscribe to actuator state: %w", err)
	}
	l.logger.Info("subscribed to actuator state", "topic", actuatorTopic)

	return nil
}

// Stop removes both subscriptions.
func (l *Listener) Stop() {
	topics := mqtt.Topics{}
	for _, topic := range []string{topics.EntityState(l.sensor), topics.EntityState(l.actuator)} {
		if err := l.client.Unsubscribe(topic); err != nil {
			l.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// Temperature returns the last raw sensor value. It implements
// climate.TemperatureSource.
func (l *Listener) Temperature(context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasReading {
		return "", fmt.Errorf("%w: no reading received from %s", climate.ErrInvalidReading, l.sensor)
	}
	return l.lastReading, nil
}

// WaitForActuator blocks until the first switch state has been received,
// the timeout passes, or ctx is done. It reports whether a state arrived.
func (l *Listener) WaitForActuator(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.actuatorSeen:
		return true
	case <-timer.C:
		l.logger.Warn("no actuator state received before restore", "entity_id", l.actuator, "waited", timeout)
		return false
	case <-ctx.Done():
		return false
	}
}

func (l *Listener) handleSensor(_ string, payload []byte) error {
	value, _, err := parseEntityState(payload)
	if err != nil {
		return fmt.Errorf("sensor %s: %w", l.sensor, err)
	}

	l.mu.Lock()
	l.lastReading = value
	l.hasReading = true
	l.mu.Unlock()

	return l.sink.Post(climate.SensorReading{Raw: value})
}

func (l *Listener) handleActuator(_ string, payload []byte) error {
	value, changed, err := parseEntityState(payload)
	if err != nil {
		return fmt.Errorf("actuator %s: %w", l.actuator, err)
	}

	status := climate.ParseActuatorStatus(value)
	l.logger.Debug("actuator state received", "entity_id", l.actuator, "status", status)
	l.seenOnce.Do(func() { close(l.actuatorSeen) })

	return l.sink.Post(climate.ActuatorObserved{Status: status, At: changed})
}
