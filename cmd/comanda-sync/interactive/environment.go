package interactive

import "sync"

// Environment is a console-controlled realtime.Environment: the active and
// inactive commands flip consumer visibility, and the online command fires
// the connectivity-restored signal.
type Environment struct {
	mu sync.Mutex

	active bool

	onActive   []func()
	onInactive []func()
	onOnline   []func()
}

// NewEnvironment creates an environment with the consumer active.
func NewEnvironment() *Environment {
	return &Environment{active: true}
}

// IsConsumerActive reports consumer visibility.
func (e *Environment) IsConsumerActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// OnBecameActive registers a callback for the consumer becoming active.
func (e *Environment) OnBecameActive(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onActive = append(e.onActive, fn)
}

// OnBecameInactive registers a callback for the consumer going inactive.
func (e *Environment) OnBecameInactive(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onInactive = append(e.onInactive, fn)
}

// OnConnectivityRestored registers a callback for connectivity returning.
func (e *Environment) OnConnectivityRestored(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOnline = append(e.onOnline, fn)
}

// SetActive flips consumer visibility and fires the matching signal on a
// transition. Returns false when the state did not change.
func (e *Environment) SetActive(active bool) bool {
	e.mu.Lock()
	if e.active == active {
		e.mu.Unlock()
		return false
	}
	e.active = active
	var callbacks []func()
	if active {
		callbacks = append(callbacks, e.onActive...)
	} else {
		callbacks = append(callbacks, e.onInactive...)
	}
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}

// ConnectivityRestored fires the connectivity-restored signal.
func (e *Environment) ConnectivityRestored() {
	e.mu.Lock()
	callbacks := append([]func(){}, e.onOnline...)
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
