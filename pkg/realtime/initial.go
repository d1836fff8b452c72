package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comanda-pos/comanda-go/pkg/log"
	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// LoadState is the initial bulk load's lifecycle state.
type LoadState uint8

const (
	// LoadIdle indicates no load has been requested yet.
	LoadIdle LoadState = iota

	// LoadLoading indicates a load is in flight.
	LoadLoading

	// LoadLoaded indicates a load completed; the sink holds a snapshot of
	// every resource.
	LoadLoaded

	// LoadFailed indicates the load failed (health check). Retry resets it.
	LoadFailed
)

// String returns a human-readable load state name.
func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "IDLE"
	case LoadLoading:
		return "LOADING"
	case LoadLoaded:
		return "LOADED"
	case LoadFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// InitialLoader runs the one-shot startup sequence: health-check the
// backend, bulk-fetch every resource in parallel, and populate the sink.
//
// Load is idempotent: a call while one is in flight, or after one has
// succeeded, returns immediately without a second health check or fetch
// pass. Retry resets the guard after a failure.
type InitialLoader struct {
	mu    sync.Mutex
	state LoadState
	err   error

	health   HealthCheckFunc
	registry *resource.Registry
	timeout  time.Duration

	clientID string
	logger   log.Logger
}

// NewInitialLoader creates a loader. health must not be nil; timeout bounds
// the health check (zero selects DefaultHealthCheckTimeout).
func NewInitialLoader(clientID string, health HealthCheckFunc,
	registry *resource.Registry, timeout time.Duration, logger log.Logger) *InitialLoader {

	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &InitialLoader{
		state:    LoadIdle,
		health:   health,
		registry: registry,
		timeout:  timeout,
		clientID: clientID,
		logger:   logger,
	}
}

// State returns the current load state.
func (l *InitialLoader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the failure reason when State is LoadFailed, else nil.
func (l *InitialLoader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Load runs the startup sequence. It returns ErrBackendUnreachable (wrapped)
// when the health check fails; individual resource fetch failures degrade
// that resource to its empty snapshot and do not fail the load. Snapshots
// are applied only after every fetch has finished, so the sink is never
// partially populated mid-load from the caller's perspective.
func (l *InitialLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.state == LoadLoading || l.state == LoadLoaded {
		l.mu.Unlock()
		return nil
	}
	l.setStateLocked(LoadLoading, "")
	l.err = nil
	l.mu.Unlock()

	hctx, cancel := context.WithTimeout(ctx, l.timeout)
	err := l.health(hctx)
	cancel()
	if err != nil {
		failure := fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
		l.mu.Lock()
		l.setStateLocked(LoadFailed, failure.Error())
		l.err = failure
		l.mu.Unlock()
		return failure
	}

	l.bulkFetch(ctx)

	l.mu.Lock()
	l.setStateLocked(LoadLoaded, "")
	l.mu.Unlock()
	return nil
}

// Retry resets the idempotency guard and runs Load again. A Retry while a
// load is in flight is a no-op.
func (l *InitialLoader) Retry(ctx context.Context) error {
	l.mu.Lock()
	if l.state == LoadLoading {
		l.mu.Unlock()
		return nil
	}
	l.state = LoadIdle
	l.err = nil
	l.mu.Unlock()

	return l.Load(ctx)
}

// bulkFetch pulls every registered resource concurrently, then applies all
// snapshots. A failed fetch degrades to the resource's empty snapshot.
func (l *InitialLoader) bulkFetch(ctx context.Context) {
	names := l.registry.Names()
	snapshots := make([]resource.Snapshot, len(names))
	degraded := make([]bool, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		res, err := l.registry.Get(name)
		if err != nil {
			continue
		}

		wg.Add(1)
		go func(i int, res *resource.Resource) {
			defer wg.Done()

			start := time.Now()
			snapshot, fetchErr := res.Refetch(ctx)
			if fetchErr != nil {
				// Degrade this resource rather than aborting the load.
				snapshots[i] = res.Empty
				degraded[i] = true
				l.logFetchError(res.Name, &ResourceFetchError{Resource: res.Name, Err: fetchErr})
				return
			}
			snapshots[i] = snapshot
			l.logFetch(res.Name, time.Since(start), false)
		}(i, res)
	}
	wg.Wait()

	// Apply only after every fetch settled: the caller never observes a
	// half-populated sink.
	for i, name := range names {
		res, err := l.registry.Get(name)
		if err != nil {
			continue
		}
		res.Apply(snapshots[i])
		if degraded[i] {
			l.logFetch(name, 0, true)
		}
	}
}

// setStateLocked transitions and logs. Caller holds the lock; the log
// write itself does not need it.
func (l *InitialLoader) setStateLocked(newState LoadState, reason string) {
	old := l.state
	if old == newState {
		return
	}
	l.state = newState

	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  l.clientID,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityLoad,
			OldState: old.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (l *InitialLoader) logFetch(name string, duration time.Duration, degraded bool) {
	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  l.clientID,
		Category:  log.CategoryFetch,
		Resource:  name,
		Fetch: &log.FetchEvent{
			Trigger:  log.TriggerInitialLoad,
			Duration: duration,
			Degraded: degraded,
		},
	})
}

func (l *InitialLoader) logFetchError(name string, err error) {
	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  l.clientID,
		Category:  log.CategoryError,
		Resource:  name,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Context: "initial load",
		},
	})
}
