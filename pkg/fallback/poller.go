package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// DefaultPollInterval is the default interval between fallback poll ticks.
const DefaultPollInterval = 4 * time.Second

// TickObserver is notified after each per-resource poll fetch, with the
// error (nil on success). Observers must be thread-safe.
type TickObserver func(name string, duration time.Duration, err error)

// Poller keeps critical resources eventually-consistent by direct interval
// refetching while the notification channel is down. At most one poll loop
// runs at a time.
type Poller struct {
	mu sync.Mutex

	// Resource table for lookups.
	registry *resource.Registry

	active bool

	// Cancels the running loop.
	cancel context.CancelFunc

	// Tracks the loop goroutine so Disarm can wait for it.
	wg sync.WaitGroup

	// Observer for poll fetch outcomes.
	onTick TickObserver
}

// NewPoller creates a poller over the given registry.
func NewPoller(registry *resource.Registry) *Poller {
	return &Poller{registry: registry}
}

// OnTick sets the observer for poll fetch outcomes.
func (p *Poller) OnTick(fn TickObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTick = fn
}

// Arm starts the poll loop over the named resources. An interval of zero
// selects DefaultPollInterval. Arming an already active poller is a no-op;
// there is never more than one loop.
func (p *Poller) Arm(names []string, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active || len(names) == 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.active = true
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(ctx, names, interval)
}

// Disarm stops the poll loop and waits for it to exit, canceling any
// in-flight fetch. Calling Disarm when not armed is a no-op.
func (p *Poller) Disarm() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.cancel()
	p.cancel = nil
	p.mu.Unlock()

	p.wg.Wait()
}

// Active reports whether the poll loop is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// loop ticks until the context is canceled. Each tick refetches every named
// resource and applies the snapshot directly, bypassing the coalescer.
func (p *Poller) loop(ctx context.Context, names []string, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, names)
		}
	}
}

// tick refetches and applies each named resource once. A fetch failure for
// one resource does not stop the others; the next tick retries everything.
func (p *Poller) tick(ctx context.Context, names []string) {
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}

		res, err := p.registry.Get(name)
		if err != nil {
			continue
		}

		start := time.Now()
		snapshot, fetchErr := res.Refetch(ctx)
		if fetchErr == nil && ctx.Err() == nil {
			res.Apply(snapshot)
		}

		p.mu.Lock()
		observer := p.onTick
		p.mu.Unlock()
		if observer != nil {
			observer(name, time.Since(start), fetchErr)
		}
	}
}
