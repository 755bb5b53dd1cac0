package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/mqtt"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockMQTTClient struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	publishErr   error
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, payload, qos, retained})
	return nil
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockMQTTClient) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	m.mu.Lock()
	h, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed to %s", topic)
	}
	return h(topic, []byte(payload))
}

type mockSink struct {
	mu     sync.Mutex
	events []climate.Event
}

func (s *mockSink) Post(ev climate.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *mockSink) last(t *testing.T) climate.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		t.Fatal("no events posted")
	}
	return s.events[len(s.events)-1]
}

func TestActuator_Commands(t *testing.T) {
	client := newMockMQTTClient()
	act := NewActuator(client, "switch.lounge_heater", "lounge")
	ctx := context.Background()

	if err := act.TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if err := act.TurnOff(ctx); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}

	if len(client.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(client.published))
	}
	for i, want := range []string{CommandTurnOn, CommandTurnOff} {
		p := client.published[i]
		if p.topic != "graylogic/command/entity/switch.lounge_heater" {
			t.Errorf("topic = %q", p.topic)
		}
		if p.retained {
			t.Error("commands must not be retained")
		}

		var msg CommandMessage
		if err := json.Unmarshal(p.payload, &msg); err != nil {
			t.Fatalf("decoding command: %v", err)
		}
		if msg.Command != want {
			t.Errorf("Command = %q, want %q", msg.Command, want)
		}
		if msg.EntityID != "switch.lounge_heater" || msg.Source != "climate:lounge" {
			t.Errorf("EntityID/Source = %q/%q", msg.EntityID, msg.Source)
		}
		if _, err := uuid.Parse(msg.ID); err != nil {
			t.Errorf("ID %q is not a UUID: %v", msg.ID, err)
		}
	}
}

func TestActuator_PublishError(t *testing.T) {
	client := newMockMQTTClient()
	client.publishErr = mqtt.ErrNotConnected
	act := NewActuator(client, "switch.heater", "t")

	if err := act.TurnOn(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("TurnOn() error = %v, want ErrNotConnected", err)
	}
}

func TestActuator_CancelledContext(t *testing.T) {
	client := newMockMQTTClient()
	act := NewActuator(client, "switch.heater", "t")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := act.TurnOn(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("TurnOn() error = %v, want context.Canceled", err)
	}
	if len(client.published) != 0 {
		t.Error("nothing should be published with a cancelled context")
	}
}

func TestStatePublisher(t *testing.T) {
	client := newMockMQTTClient()
	pub := NewStatePublisher(client)
	target := 21.0

	snap := climate.Snapshot{
		ThermostatID:      "lounge",
		HVACMode:          climate.HVACModeHeat,
		HVACAction:        climate.HVACActionHeating,
		TargetTemperature: &target,
		UpdatedAt:         time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	p := client.published[0]
	if p.topic != "graylogic/core/climate/lounge/state" || !p.retained {
		t.Errorf("published to %q retained=%v", p.topic, p.retained)
	}

	var msg struct {
		State climate.Snapshot `json:"state"`
	}
	if err := json.Unmarshal(p.payload, &msg); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if msg.State.HVACAction != climate.HVACActionHeating || *msg.State.TargetTemperature != 21 {
		t.Errorf("decoded state = %+v", msg.State)
	}
}

func newTestListener(t *testing.T) (*Listener, *mockMQTTClient, *mockSink) {
	t.Helper()
	client := newMockMQTTClient()
	sink := &mockSink{}
	l, err := NewListener(ListenerOptions{
		Client:           client,
		Sink:             sink,
		SensorEntityID:   "sensor.lounge_temp",
		ActuatorEntityID: "switch.lounge_heater",
	})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return l, client, sink
}

func TestNewListener_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts ListenerOptions
	}{
		{"no client", ListenerOptions{Sink: &mockSink{}, SensorEntityID: "s", ActuatorEntityID: "a"}},
		{"no sink", ListenerOptions{Client: newMockMQTTClient(), SensorEntityID: "s", ActuatorEntityID: "a"}},
		{"no entities", ListenerOptions{Client: newMockMQTTClient(), Sink: &mockSink{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewListener(tt.opts); err == nil {
				t.Error("NewListener() expected error")
			}
		})
	}
}

func TestListener_SensorPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"bare number", "21.5", "21.5"},
		{"bare unavailable", "unavailable", "unavailable"},
		{"json number state", `{"state": 20.25}`, "20.25"},
		{"json string state", `{"state": "19.5", "last_changed": "2026-01-15T07:00:00Z"}`, "19.5"},
		{"json value", `{"value": 18}`, "18"},
		{"json null", `{"state": null}`, "unavailable"},
		{"nested temperature", `{"device_id": "x", "state": {"temperature": 22.5}}`, "22.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, client, sink := newTestListener(t)
			if err := client.deliver(t, "graylogic/state/entity/sensor.lounge_temp", tt.payload); err != nil {
				t.Fatalf("handler error = %v", err)
			}

			ev, ok := sink.last(t).(climate.SensorReading)
			if !ok || ev.Raw != tt.want {
				t.Errorf("posted %#v, want SensorReading{%q}", sink.last(t), tt.want)
			}
			if got, err := l.Temperature(context.Background()); err != nil || got != tt.want {
				t.Errorf("Temperature() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestListener_MalformedSensorPayload(t *testing.T) {
	_, client, sink := newTestListener(t)
	if err := client.deliver(t, "graylogic/state/entity/sensor.lounge_temp", `{"state": `); err == nil {
		t.Error("expected decode error")
	}
	if len(sink.events) != 0 {
		t.Error("malformed payload should not post an event")
	}
}

func TestListener_ActuatorPayloads(t *testing.T) {
	changed := time.Date(2026, 1, 15, 6, 58, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payload  string
		status   climate.ActuatorStatus
		wantTime time.Time
	}{
		{"bare on", "on", climate.ActuatorOn, time.Time{}},
		{"bare OFF", "OFF", climate.ActuatorOff, time.Time{}},
		{"json with last_changed", `{"state": "on", "last_changed": "2026-01-15T06:58:00Z"}`, climate.ActuatorOn, changed},
		{"json bool", `{"state": false}`, climate.ActuatorOff, time.Time{}},
		{"nested on", `{"state": {"on": true}}`, climate.ActuatorOn, time.Time{}},
		{"unavailable", `{"state": "unavailable"}`, climate.ActuatorUnknown, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client, sink := newTestListener(t)
			if err := client.deliver(t, "graylogic/state/entity/switch.lounge_heater", tt.payload); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			ev, ok := sink.last(t).(climate.ActuatorObserved)
			if !ok {
				t.Fatalf("posted %#v, want ActuatorObserved", sink.last(t))
			}
			if ev.Status != tt.status || !ev.At.Equal(tt.wantTime) {
				t.Errorf("posted %+v, want status %q at %v", ev, tt.status, tt.wantTime)
			}
		})
	}
}

func TestListener_TemperatureBeforeReading(t *testing.T) {
	l, _, _ := newTestListener(t)
	if _, err := l.Temperature(context.Background()); !errors.Is(err, climate.ErrInvalidReading) {
		t.Errorf("Temperature() error = %v, want ErrInvalidReading", err)
	}
}

func TestListener_WaitForActuator(t *testing.T) {
	l, client, _ := newTestListener(t)

	if l.WaitForActuator(context.Background(), 10*time.Millisecond) {
		t.Fatal("WaitForActuator() = true before any state")
	}

	topic := "graylogic/state/entity/switch.lounge_heater"
	client.mu.Lock()
	handler := client.handlers[topic]
	client.mu.Unlock()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = handler(topic, []byte("off"))
	}()
	if !l.WaitForActuator(context.Background(), 2*time.Second) {
		t.Fatal("WaitForActuator() = false after state delivered")
	}
	// A second state must not panic on the already-closed channel.
	if err := client.deliver(t, "graylogic/state/entity/switch.lounge_heater", "on"); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func TestListener_Stop(t *testing.T) {
	l, client, _ := newTestListener(t)
	l.Stop()

	if len(client.unsubscribed) != 2 || len(client.handlers) != 0 {
		t.Errorf("unsubscribed = %v, remaining handlers = %d", client.unsubscribed, len(client.handlers))
	}
}

func TestListener_DrivesController(t *testing.T) {
	client := newMockMQTTClient()
	target := 21.0
	settings := climate.Settings{
		ID: "lounge", MinTemp: 7, MaxTemp: 35, TargetTemp: &target,
		ColdTolerance: 0.3, HotTolerance: 0.3, Precision: climate.PrecisionTenths,
	}
	ctrl, err := climate.NewController(settings, climate.Deps{
		Actuator:  NewActuator(client, "switch.lounge_heater", "lounge"),
		Publisher: NewStatePublisher(client),
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	loop := climate.NewLoop(ctrl, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = loop.Run(ctx) }()
	defer func() { cancel(); <-done }()

	l, err := NewListener(ListenerOptions{
		Client: client, Sink: loop,
		SensorEntityID: "sensor.lounge_temp", ActuatorEntityID: "switch.lounge_heater",
	})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_ = client.deliver(t, "graylogic/state/entity/switch.lounge_heater", "off")
	if err := loop.Submit(ctx, climate.RestoreRequest{State: &climate.PersistedState{HVACMode: "heat"}}); err != nil {
		t.Fatalf("restore error = %v", err)
	}
	_ = client.deliver(t, "graylogic/state/entity/sensor.lounge_temp", "20.6")
	// Submit a no-op to flush the posted reading.
	_ = loop.Submit(ctx, climate.SetPresetTemperaturesRequest{})

	client.mu.Lock()
	defer client.mu.Unlock()
	var commands []string
	for _, p := range client.published {
		if p.topic == "graylogic/command/entity/switch.lounge_heater" {
			var msg CommandMessage
			_ = json.Unmarshal(p.payload, &msg)
			commands = append(commands, msg.Command)
		}
	}
	if len(commands) != 1 || commands[0] != CommandTurnOn {
		t.Errorf("commands = %v, want [turn_on]", commands)
	}
}
