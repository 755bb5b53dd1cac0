package climate

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

// metricValue returns the counter or gauge value of the series whose labels
// include all of want.
func metricValue(t *testing.T, f *dto.MetricFamily, want map[string]string) float64 {
	t.Helper()
	if f == nil {
		t.Fatal("metric family not found")
	}
	for _, m := range f.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
				matched++
			}
		}
		if matched != len(want) {
			continue
		}
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("no %s series with labels %v", f.GetName(), want)
	return 0
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	act := &fakeActuator{}
	clock := newFakeClock()
	ctrl, err := NewController(heatSettings(), Deps{Actuator: act, Metrics: metrics, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	ctx := context.Background()
	ctrl.HandleActuatorObserved(ctx, ActuatorOff, clock.Now())
	if err := ctrl.Restore(ctx, &PersistedState{HVACMode: "heat"}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	_ = ctrl.HandleSensorReading(ctx, "unavailable")
	if err := ctrl.HandleSensorReading(ctx, "19.0"); err != nil {
		t.Fatalf("HandleSensorReading() error = %v", err)
	}
	ctrl.HandleActuatorObserved(ctx, ActuatorOn, clock.Now())
	if err := ctrl.KeepAlive(ctx); err != nil {
		t.Fatalf("KeepAlive() error = %v", err)
	}

	fams := gather(t, reg)
	id := map[string]string{"thermostat": "test"}

	if got := metricValue(t, fams["graylogic_thermostat_actuator_commands_total"],
		map[string]string{"thermostat": "test", "command": "turn_on", "keep_alive": "false"}); got != 1 {
		t.Errorf("turn_on commands = %v, want 1", got)
	}
	if got := metricValue(t, fams["graylogic_thermostat_actuator_commands_total"],
		map[string]string{"thermostat": "test", "command": "turn_on", "keep_alive": "true"}); got != 1 {
		t.Errorf("keep-alive turn_on commands = %v, want 1", got)
	}
	if got := metricValue(t, fams["graylogic_thermostat_invalid_readings_total"], id); got != 1 {
		t.Errorf("invalid readings = %v, want 1", got)
	}
	if got := metricValue(t, fams["graylogic_thermostat_current_temperature_celsius"], id); got != 19 {
		t.Errorf("current temperature = %v, want 19", got)
	}
	if got := metricValue(t, fams["graylogic_thermostat_target_temperature_celsius"], id); got != 21 {
		t.Errorf("target temperature = %v, want 21", got)
	}
	if got := metricValue(t, fams["graylogic_thermostat_actuator_on"], id); got != 1 {
		t.Errorf("actuator_on = %v, want 1", got)
	}
	if got := metricValue(t, fams["graylogic_thermostat_hvac_mode"],
		map[string]string{"thermostat": "test", "mode": "heat"}); got != 1 {
		t.Errorf("hvac_mode{heat} = %v, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.command("x", "turn_on", false)
	m.invalidReading("x")
	m.debounceSkip("x")
	m.actuatorError("x")
	m.observe(Snapshot{ThermostatID: "x"})
}
