package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// fastConfig returns a Config with millisecond-scale timers for tests.
func fastConfig() Config {
	return Config{
		DebounceWindow:     10 * time.Millisecond,
		BackoffInitial:     15 * time.Millisecond,
		BackoffMax:         60 * time.Millisecond,
		BackoffMultiplier:  2.0,
		BackoffJitter:      0,
		WatchdogTimeout:    40 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
		HealthCheckTimeout: 100 * time.Millisecond,
	}
}

// fakeSub is one channel instance handed out by fakeChannel.
type fakeSub struct {
	names    []string
	onNotify NotifyFunc
	onStatus StatusFunc
	closed   bool
}

// fakeChannel is a controllable Channel. Tests drive status transitions by
// calling emit on the live subscription.
type fakeChannel struct {
	mu      sync.Mutex
	openErr error
	subs    []*fakeSub
}

func (f *fakeChannel) Open(names []string, onNotify NotifyFunc, onStatus StatusFunc) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	sub := &fakeSub{names: names, onNotify: onNotify, onStatus: onStatus}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeChannel) Close(handle Handle) {
	sub, ok := handle.(*fakeSub)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub.closed = true
}

func (f *fakeChannel) setOpenErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

func (f *fakeChannel) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeChannel) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if !sub.closed {
			n++
		}
	}
	return n
}

// last returns the most recently opened subscription, live or not.
func (f *fakeChannel) last() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

// emit drives a status transition on the most recent subscription.
func (f *fakeChannel) emit(status Status) {
	sub := f.last()
	if sub == nil {
		return
	}
	sub.onStatus(status)
}

// notify pushes a change notification on the most recent subscription.
func (f *fakeChannel) notify(name string) {
	sub := f.last()
	if sub == nil {
		return
	}
	sub.onNotify(name)
}

// fakeEnv is a controllable Environment.
type fakeEnv struct {
	mu         sync.Mutex
	active     bool
	onActive   []func()
	onInactive []func()
	onOnline   []func()
}

func newFakeEnv(active bool) *fakeEnv {
	return &fakeEnv{active: active}
}

func (e *fakeEnv) IsConsumerActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *fakeEnv) OnBecameActive(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onActive = append(e.onActive, fn)
}

func (e *fakeEnv) OnBecameInactive(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onInactive = append(e.onInactive, fn)
}

func (e *fakeEnv) OnConnectivityRestored(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOnline = append(e.onOnline, fn)
}

func (e *fakeEnv) setActive(active bool) {
	e.mu.Lock()
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
}

func (e *fakeEnv) restoreConnectivity() {
	e.mu.Lock()
	callbacks := append([]func(){}, e.onOnline...)
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// fakeStore serves snapshots and counts fetches.
type fakeStore struct {
	mu       sync.Mutex
	fetches  map[string]int
	failures map[string]error
	block    chan struct{} // when set, fetches wait on it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fetches:  make(map[string]int),
		failures: make(map[string]error),
	}
}

func (s *fakeStore) Fetch(ctx context.Context, name string) (resource.Snapshot, error) {
	s.mu.Lock()
	s.fetches[name]++
	n := s.fetches[name]
	err := s.failures[name]
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *fakeStore) fail(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, name)
		return
	}
	s.failures[name] = err
}

func (s *fakeStore) fetchCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[name]
}

// fakeSink records applied snapshots.
type fakeSink struct {
	mu      sync.Mutex
	applied map[string][]resource.Snapshot
}

func newFakeSink() *fakeSink {
	return &fakeSink{applied: make(map[string][]resource.Snapshot)}
}

func (s *fakeSink) Put(name string, snapshot resource.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[name] = append(s.applied[name], snapshot)
}

func (s *fakeSink) appliedCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied[name])
}

func (s *fakeSink) lastApplied(name string) (resource.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.applied[name]
	if len(snaps) == 0 {
		return nil, false
	}
	return snaps[len(snaps)-1], true
}

func (s *fakeSink) totalApplied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, snaps := range s.applied {
		n += len(snaps)
	}
	return n
}

// testRegistry builds a registry over the fake store and sink. Names with a
// "!" prefix are registered critical (prefix stripped).
func testRegistry(t *testing.T, store *fakeStore, sink *fakeSink, names ...string) *resource.Registry {
	t.Helper()
	reg := resource.NewRegistry()
	for _, name := range names {
		critical := false
		if name[0] == '!' {
			critical = true
			name = name[1:]
		}
		n := name
		err := reg.Register(resource.Resource{
			Name:     n,
			Critical: critical,
			Refetch: func(ctx context.Context) (resource.Snapshot, error) {
				return store.Fetch(ctx, n)
			},
			Apply: func(snapshot resource.Snapshot) {
				sink.Put(n, snapshot)
			},
		})
		if err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}
	return reg
}

// healthOK always passes.
func healthOK(context.Context) error { return nil }

// healthFail always fails.
func healthFail(context.Context) error { return errors.New("no route to backend") }

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
