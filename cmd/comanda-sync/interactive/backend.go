package interactive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comanda-pos/comanda-go/pkg/realtime"
	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// Snapshot is the simulated backend's resource representation: a version
// counter that increments on every change, plus a fetch timestamp.
type Snapshot struct {
	Resource  string
	Version   int
	FetchedAt time.Time
}

// Backend simulates the hosted POS backend in memory: it serves snapshot
// fetches, answers health checks, and runs a controllable notification
// channel. Console commands flip its failure switches to exercise the
// client's recovery paths.
type Backend struct {
	mu sync.Mutex

	// Per-resource version counters (the "database").
	versions map[string]int

	// What the client's sink last applied, for the status display.
	applied map[string]Snapshot

	// Failure switches.
	unreachable bool // health checks and fetches fail
	silent      bool // channel opens but never reaches active

	// The single live channel subscription, nil when closed.
	sub *channelSub

	fetchCount  int
	notifyCount int
}

// channelSub is one live channel generation.
type channelSub struct {
	onNotify realtime.NotifyFunc
	onStatus realtime.StatusFunc
	closed   bool
}

// NewBackend creates a simulated backend with every resource at version 1.
func NewBackend(resources []string) *Backend {
	b := &Backend{
		versions: make(map[string]int, len(resources)),
		applied:  make(map[string]Snapshot, len(resources)),
	}
	for _, name := range resources {
		b.versions[name] = 1
	}
	return b
}

// Fetch serves a snapshot request. Implements the resource store.
func (b *Backend) Fetch(ctx context.Context, name string) (resource.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unreachable {
		return nil, errors.New("backend unreachable (simulated)")
	}
	version, ok := b.versions[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource: %s", name)
	}
	b.fetchCount++
	return Snapshot{Resource: name, Version: version, FetchedAt: time.Now()}, nil
}

// Put records what the client applied. Implements the local sink.
func (b *Backend) Put(name string, snapshot resource.Snapshot) {
	snap, ok := snapshot.(Snapshot)
	if !ok {
		// Degraded resources arrive as their Empty value (nil here).
		snap = Snapshot{Resource: name}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied[name] = snap
}

// Health answers the startup health check.
func (b *Backend) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unreachable {
		return errors.New("health check failed (simulated)")
	}
	return nil
}

// Open establishes a simulated notification channel. Implements
// realtime.Channel. The status progression runs on a goroutine so Open
// returns without blocking, like a real transport.
func (b *Backend) Open(resourceNames []string, onNotify realtime.NotifyFunc,
	onStatus realtime.StatusFunc) (realtime.Handle, error) {

	b.mu.Lock()
	if b.unreachable {
		b.mu.Unlock()
		return nil, errors.New("subscribe failed (simulated)")
	}
	sub := &channelSub{onNotify: onNotify, onStatus: onStatus}
	b.sub = sub
	silent := b.silent
	b.mu.Unlock()

	go func() {
		onStatus(realtime.StatusJoining)
		if silent {
			// Never joins; the client's watchdog takes over.
			return
		}
		time.Sleep(10 * time.Millisecond)

		b.mu.Lock()
		stale := sub.closed || b.sub != sub
		b.mu.Unlock()
		if stale {
			return
		}
		onStatus(realtime.StatusActive)
	}()

	return sub, nil
}

// Close tears down a channel handle. Implements realtime.Channel.
func (b *Backend) Close(handle realtime.Handle) {
	sub, ok := handle.(*channelSub)
	if !ok {
		return
	}

	b.mu.Lock()
	sub.closed = true
	if b.sub == sub {
		b.sub = nil
	}
	b.mu.Unlock()
}

// Change bumps a resource's version and pushes a change notification to the
// live channel, if any. Returns the new version.
func (b *Backend) Change(name string) (int, error) {
	b.mu.Lock()
	version, ok := b.versions[name]
	if !ok {
		b.mu.Unlock()
		return 0, fmt.Errorf("unknown resource: %s", name)
	}
	version++
	b.versions[name] = version
	b.notifyCount++
	sub := b.sub
	b.mu.Unlock()

	if sub != nil && !sub.closed {
		sub.onNotify(name)
	}
	return version, nil
}

// Drop simulates the transport failing: the live channel reports an error
// and dies. No-op when no channel is live.
func (b *Backend) Drop() bool {
	return b.failChannel(realtime.StatusChannelError)
}

// Timeout simulates a subscription timeout on the live channel.
func (b *Backend) Timeout() bool {
	return b.failChannel(realtime.StatusTimedOut)
}

func (b *Backend) failChannel(status realtime.Status) bool {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub == nil || sub.closed {
		return false
	}
	sub.closed = true
	sub.onStatus(status)
	return true
}

// SetUnreachable flips the backend's reachability. While unreachable, health
// checks, fetches, and new subscriptions all fail.
func (b *Backend) SetUnreachable(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unreachable = v
}

// SetSilent controls whether new channels ever reach active. Silent channels
// exercise the watchdog and fallback polling.
func (b *Backend) SetSilent(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.silent = v
}

// Unreachable reports the reachability switch.
func (b *Backend) Unreachable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unreachable
}

// Applied returns the snapshot the client last applied for a resource.
func (b *Backend) Applied(name string) (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap, ok := b.applied[name]
	return snap, ok
}

// Version returns a resource's current backend version.
func (b *Backend) Version(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.versions[name]
}

// Stats returns total fetches served and notifications pushed.
func (b *Backend) Stats() (fetches, notifies int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCount, b.notifyCount
}
