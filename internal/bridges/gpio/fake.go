package gpio

import "sync"

// FakeRelay is a test double that records every Set.
type FakeRelay struct {
	mu sync.Mutex

	// On is the current logical state.
	On bool

	// History records every value passed to Set.
	History []bool

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// Set records on and updates the state.
func (f *FakeRelay) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// State returns the current state.
func (f *FakeRelay) State() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.On, nil
}

// Close turns the relay off and marks it closed.
func (f *FakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.On = false
	f.Closed = true
	return nil
}
