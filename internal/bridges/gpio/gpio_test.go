package gpio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
)

type observation struct {
	status climate.ActuatorStatus
	at     time.Time
}

func TestActuatorTurnOnOff(t *testing.T) {
	relay := &FakeRelay{}
	var seen []observation
	act := NewActuator(relay, func(s climate.ActuatorStatus, at time.Time) {
		seen = append(seen, observation{s, at})
	})
	ctx := context.Background()

	if err := act.TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	if !relay.On {
		t.Error("relay should be on")
	}
	if err := act.TurnOff(ctx); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	if relay.On {
		t.Error("relay should be off")
	}

	if len(relay.History) != 2 || relay.History[0] != true || relay.History[1] != false {
		t.Errorf("history: expected [true false], got %v", relay.History)
	}
	if len(seen) != 2 || seen[0].status != climate.ActuatorOn || seen[1].status != climate.ActuatorOff {
		t.Errorf("observations: got %+v", seen)
	}
	if seen[0].at.IsZero() {
		t.Error("observation time should be set")
	}
}

func TestActuatorSetError(t *testing.T) {
	relay := &FakeRelay{SetError: errors.New("line busy")}
	observed := false
	act := NewActuator(relay, func(climate.ActuatorStatus, time.Time) { observed = true })

	if err := act.TurnOn(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if observed {
		t.Error("failed set should not be observed")
	}
}

func TestActuatorCancelledContext(t *testing.T) {
	relay := &FakeRelay{}
	act := NewActuator(relay, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := act.TurnOn(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(relay.History) != 0 {
		t.Error("relay should not be driven")
	}
}

func TestActuatorSync(t *testing.T) {
	relay := &FakeRelay{On: true}
	var got climate.ActuatorStatus
	act := NewActuator(relay, func(s climate.ActuatorStatus, _ time.Time) { got = s })

	if err := act.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got != climate.ActuatorOn {
		t.Errorf("expected on, got %q", got)
	}
}

func TestActuatorDrivesController(t *testing.T) {
	relay := &FakeRelay{}
	target := 21.0
	settings := climate.Settings{
		ID: "garage", MinTemp: 7, MaxTemp: 35, TargetTemp: &target,
		ColdTolerance: 0.3, HotTolerance: 0.3, Precision: climate.PrecisionTenths,
	}

	var ctrl *climate.Controller
	act := NewActuator(relay, func(s climate.ActuatorStatus, at time.Time) {
		// Delivered asynchronously, as the control loop would.
		go ctrl.HandleActuatorObserved(context.Background(), s, at)
	})
	ctrl, err := climate.NewController(settings, climate.Deps{Actuator: act})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	if err := act.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	waitStatus(t, ctrl, climate.ActuatorOff)

	ctx := context.Background()
	if err := ctrl.Restore(ctx, &climate.PersistedState{HVACMode: "heat"}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := ctrl.HandleSensorReading(ctx, "19.0"); err != nil {
		t.Fatalf("HandleSensorReading: %v", err)
	}
	if !relay.On {
		t.Error("relay should be on after a cold reading")
	}
	waitStatus(t, ctrl, climate.ActuatorOn)
}

func waitStatus(t *testing.T, ctrl *climate.Controller, want climate.ActuatorStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State().Actuator.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("actuator status never became %q", want)
}

func TestFakeRelayClose(t *testing.T) {
	relay := &FakeRelay{On: true}
	if err := relay.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if relay.On || !relay.Closed {
		t.Errorf("after Close: On=%v Closed=%v", relay.On, relay.Closed)
	}
}
