package coalesce

import (
	"context"
	"sync"
	"time"

	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// DefaultWindow is the default quiet window before a refetch is issued.
const DefaultWindow = 500 * time.Millisecond

// FetchObserver is notified after every coalesced refetch attempt, with the
// fetch duration and the error (nil on success). Observers must be
// thread-safe.
type FetchObserver func(name string, duration time.Duration, err error)

// pendingDebounce tracks the single pending window for one resource.
type pendingDebounce struct {
	timer       *time.Timer
	scheduledAt time.Time
}

// Coalescer collapses bursts of change notifications into debounced
// refetches, one window and at most one in-flight fetch per resource.
type Coalescer struct {
	mu sync.Mutex

	// Default quiet window; resources may override via DebounceWindow.
	window time.Duration

	// Resource table (read-only after client start).
	registry *resource.Registry

	// At most one entry per resource name.
	pending map[string]*pendingDebounce

	// Resources with a refetch currently in flight.
	inflight map[string]bool

	// Resources whose window elapsed during an in-flight refetch and that
	// need one follow-up fetch.
	followUp map[string]bool

	closed bool

	// Context for in-flight fetches, canceled on Close.
	ctx    context.Context
	cancel context.CancelFunc

	// Observer for fetch outcomes.
	onFetch FetchObserver
}

// NewCoalescer creates a coalescer over the given registry. A window of zero
// selects DefaultWindow.
func NewCoalescer(registry *resource.Registry, window time.Duration) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		window:   window,
		registry: registry,
		pending:  make(map[string]*pendingDebounce),
		inflight: make(map[string]bool),
		followUp: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnFetch sets the observer for fetch outcomes.
func (c *Coalescer) OnFetch(fn FetchObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFetch = fn
}

// Notify records a change notification for the named resource. If a window
// is already pending for that resource it is restarted; otherwise a new one
// is opened. Notifications for unknown resources are ignored.
func (c *Coalescer) Notify(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	res, err := c.registry.Get(name)
	if err != nil {
		return
	}

	window := c.window
	if res.DebounceWindow > 0 {
		window = res.DebounceWindow
	}

	if prev, exists := c.pending[name]; exists {
		prev.timer.Stop()
	}

	entry := &pendingDebounce{scheduledAt: time.Now()}
	entry.timer = time.AfterFunc(window, func() {
		c.windowElapsed(name, entry)
	})
	c.pending[name] = entry
}

// Pending reports whether a debounce window is currently open for the
// resource.
func (c *Coalescer) Pending(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.pending[name]
	return exists
}

// PendingCount returns the number of open debounce windows.
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close cancels all pending windows and in-flight fetch contexts. Calling
// Close more than once is a no-op. Timer callbacks that fire concurrently
// with Close are discarded.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for _, entry := range c.pending {
		entry.timer.Stop()
	}
	c.pending = make(map[string]*pendingDebounce)
	c.followUp = make(map[string]bool)
	c.cancel()
}

// windowElapsed runs when a resource's quiet window expires. A stale firing
// (the entry was replaced by a newer notification, or the coalescer closed)
// is a no-op.
func (c *Coalescer) windowElapsed(name string, entry *pendingDebounce) {
	c.mu.Lock()

	if c.closed || c.pending[name] != entry {
		c.mu.Unlock()
		return
	}
	delete(c.pending, name)

	if c.inflight[name] {
		// A refetch is already running; run one follow-up when it ends.
		c.followUp[name] = true
		c.mu.Unlock()
		return
	}
	c.inflight[name] = true
	c.mu.Unlock()

	c.runFetch(name)
}

// runFetch performs refetch+apply cycles for a resource until no follow-up
// is requested. Called with inflight[name] already set; clears it on return.
func (c *Coalescer) runFetch(name string) {
	res, err := c.registry.Get(name)
	if err != nil {
		c.mu.Lock()
		delete(c.inflight, name)
		c.mu.Unlock()
		return
	}

	for {
		start := time.Now()
		snapshot, fetchErr := res.Refetch(c.ctx)

		c.mu.Lock()
		closed := c.closed
		observer := c.onFetch
		c.mu.Unlock()

		if !closed && fetchErr == nil {
			res.Apply(snapshot)
		}
		if observer != nil {
			observer(name, time.Since(start), fetchErr)
		}

		c.mu.Lock()
		if c.closed || !c.followUp[name] {
			delete(c.inflight, name)
			c.mu.Unlock()
			return
		}
		delete(c.followUp, name)
		c.mu.Unlock()
	}
}
