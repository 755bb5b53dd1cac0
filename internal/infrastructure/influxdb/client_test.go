package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Org:     "graylogic",
		Bucket:  "thermostat",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteThermostatSample(t *testing.T) {
	c, w := newTestClient()
	cur := 20.5
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.WriteThermostatSample(ThermostatSample{
		ThermostatID:       "lounge",
		HVACMode:           "heat",
		HVACAction:         "heating",
		PresetMode:         "none",
		CurrentTemperature: &cur,
		TargetTemperature:  21,
		ActuatorOn:         true,
		Time:               at,
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	line := write.PointToLineProtocol(w.points[0], time.Second)

	for _, want := range []string{
		"thermostat,",
		"thermostat_id=lounge",
		"hvac_action=heating",
		"hvac_mode=heat",
		"preset_mode=none",
		"current_temperature=20.5",
		"target_temperature=21",
		"actuator_on=true",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestWriteThermostatSample_NoCurrentTemperature(t *testing.T) {
	c, w := newTestClient()

	c.WriteThermostatSample(ThermostatSample{ThermostatID: "lounge", HVACMode: "off", TargetTemperature: 7})

	line := write.PointToLineProtocol(w.points[0], time.Second)
	if strings.Contains(line, "current_temperature") {
		t.Errorf("line protocol %q should omit unknown current temperature", line)
	}
}

func TestWrites_DroppedWhenDisconnected(t *testing.T) {
	c, w := newTestClient()
	c.connected = false

	c.WriteThermostatSample(ThermostatSample{ThermostatID: "lounge"})
	c.Flush()

	if len(w.points) != 0 || w.flushes != 0 {
		t.Errorf("points = %d, flushes = %d; want none while disconnected", len(w.points), w.flushes)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := newTestClient()
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	c.handleWriteErrors(ch)

	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Error("write error callback not invoked")
	}
}
