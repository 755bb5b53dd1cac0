package climate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeActuator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeActuator) TurnOn(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "on")
	return f.err
}

func (f *fakeActuator) TurnOff(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "off")
	return f.err
}

func (f *fakeActuator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeActuator) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakePublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (f *fakePublisher) Publish(_ context.Context, s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, s)
	return nil
}

func (f *fakePublisher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

func (f *fakePublisher) Last() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[len(f.snaps)-1]
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]PersistedState
	saves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]PersistedState)}
}

func (f *fakeStore) Load(_ context.Context, id string) (*PersistedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps, ok := f.saved[id]
	if !ok {
		return nil, ErrNoPersistedState
	}
	return &ps, nil
}

func (f *fakeStore) Save(_ context.Context, id string, ps PersistedState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[id] = ps
	f.saves++
	return nil
}

type fakeSource struct {
	raw string
	err error
}

func (f fakeSource) Temperature(context.Context) (string, error) {
	return f.raw, f.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func heatSettings() Settings {
	return Settings{
		ID:            "test",
		Name:          "Test Thermostat",
		MinTemp:       DefaultMinTemp,
		MaxTemp:       DefaultMaxTemp,
		TargetTemp:    ptr(21),
		ColdTolerance: 0.3,
		HotTolerance:  0.3,
		Precision:     PrecisionTenths,
	}
}

type harness struct {
	ctrl      *Controller
	actuator  *fakeActuator
	publisher *fakePublisher
	store     *fakeStore
	clock     *fakeClock
}

func newHarness(t *testing.T, s Settings) *harness {
	t.Helper()
	h := &harness{
		actuator:  &fakeActuator{},
		publisher: &fakePublisher{},
		store:     newFakeStore(),
		clock:     newFakeClock(),
	}
	ctrl, err := NewController(s, Deps{
		Actuator:  h.actuator,
		Publisher: h.publisher,
		Store:     h.store,
		Now:       h.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	h.ctrl = ctrl
	return h
}

// restored returns a harness in the given mode whose actuator has held
// status for an hour, with the actuator call log cleared.
func restored(t *testing.T, s Settings, mode HVACMode, status ActuatorStatus) *harness {
	t.Helper()
	h := newHarness(t, s)
	ctx := context.Background()

	h.ctrl.HandleActuatorObserved(ctx, status, h.clock.Now().Add(-time.Hour))
	if err := h.ctrl.Restore(ctx, &PersistedState{HVACMode: string(mode)}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	h.actuator.Reset()
	return h
}

// observe reports the actuator state as changing now.
func (h *harness) observe(status ActuatorStatus) {
	h.ctrl.HandleActuatorObserved(context.Background(), status, h.clock.Now())
}

func (h *harness) read(t *testing.T, raw string) {
	t.Helper()
	if err := h.ctrl.HandleSensorReading(context.Background(), raw); err != nil {
		t.Fatalf("HandleSensorReading(%q) error = %v", raw, err)
	}
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("actuator calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("actuator calls = %v, want %v", got, want)
		}
	}
}

func assertTarget(t *testing.T, c *Controller, want float64) {
	t.Helper()
	got := c.State().TargetTemperature
	if got == nil || *got != want {
		t.Fatalf("target = %v, want %v", deref(got), want)
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

var errBoom = errors.New("boom")
