package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// countingResource tracks refetches and applied snapshots for one resource.
type countingResource struct {
	mu       sync.Mutex
	fetches  int
	applied  []any
	fetchErr error
	delay    time.Duration
}

func (c *countingResource) refetch(ctx context.Context) (resource.Snapshot, error) {
	c.mu.Lock()
	c.fetches++
	n := c.fetches
	err := c.fetchErr
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (c *countingResource) apply(snapshot resource.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, snapshot)
}

func (c *countingResource) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *countingResource) appliedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.applied)
}

func testRegistry(t *testing.T, resources map[string]*countingResource) *resource.Registry {
	t.Helper()
	reg := resource.NewRegistry()
	for name, cr := range resources {
		err := reg.Register(resource.Resource{
			Name:    name,
			Refetch: cr.refetch,
			Apply:   cr.apply,
		})
		if err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	return reg
}

func TestCoalescerSingleNotification(t *testing.T) {
	orders := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 20*time.Millisecond)
	defer c.Close()

	c.Notify("orders")

	waitFor(t, func() bool { return orders.appliedCount() == 1 }, "refetch after window")

	if orders.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1", orders.fetchCount())
	}
}

func TestCoalescerBurstCollapsesToOneFetch(t *testing.T) {
	orders := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 50*time.Millisecond)
	defer c.Close()

	// Burst inside the quiet window: each notification restarts it.
	for i := 0; i < 5; i++ {
		c.Notify("orders")
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool { return orders.appliedCount() == 1 }, "single refetch")

	// Let any stray timers fire.
	time.Sleep(80 * time.Millisecond)
	if orders.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1 for the whole burst", orders.fetchCount())
	}
}

func TestCoalescerWindowRestartsOnEachNotification(t *testing.T) {
	orders := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 40*time.Millisecond)
	defer c.Close()

	c.Notify("orders")
	time.Sleep(25 * time.Millisecond)

	// Still inside the window; no fetch yet, and this restarts it.
	if orders.fetchCount() != 0 {
		t.Fatal("fetch fired before the quiet window elapsed")
	}
	c.Notify("orders")
	time.Sleep(25 * time.Millisecond)

	// 50ms since the first notification but only 25ms since the second.
	if orders.fetchCount() != 0 {
		t.Fatal("fetch fired before the restarted window elapsed")
	}

	waitFor(t, func() bool { return orders.appliedCount() == 1 }, "refetch after restarted window")
}

func TestCoalescerIndependentWindowsPerResource(t *testing.T) {
	orders := &countingResource{}
	menu := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{
		"orders": orders,
		"menu":   menu,
	}), 20*time.Millisecond)
	defer c.Close()

	c.Notify("orders")
	c.Notify("menu")

	waitFor(t, func() bool {
		return orders.appliedCount() == 1 && menu.appliedCount() == 1
	}, "both resources refetched")
}

func TestCoalescerPerResourceWindowOverride(t *testing.T) {
	orders := &countingResource{}
	reg := resource.NewRegistry()
	err := reg.Register(resource.Resource{
		Name:           "orders",
		Refetch:        orders.refetch,
		Apply:          orders.apply,
		DebounceWindow: 15 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Default window is much longer; the override must win.
	c := NewCoalescer(reg, 500*time.Millisecond)
	defer c.Close()

	c.Notify("orders")

	waitFor(t, func() bool { return orders.appliedCount() == 1 }, "refetch after short override window")
}

func TestCoalescerSingleInflightWithFollowUp(t *testing.T) {
	orders := &countingResource{delay: 60 * time.Millisecond}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 15*time.Millisecond)
	defer c.Close()

	// First window elapses and starts a slow fetch.
	c.Notify("orders")
	waitFor(t, func() bool { return orders.fetchCount() == 1 }, "first fetch to start")

	// Window elapses again mid-fetch: must coalesce into one follow-up.
	c.Notify("orders")
	time.Sleep(25 * time.Millisecond)
	if got := orders.fetchCount(); got != 1 {
		t.Fatalf("fetches = %d while one is in flight, want 1", got)
	}

	waitFor(t, func() bool { return orders.fetchCount() == 2 }, "follow-up fetch")
	waitFor(t, func() bool { return orders.appliedCount() == 2 }, "both snapshots applied")

	time.Sleep(100 * time.Millisecond)
	if got := orders.fetchCount(); got != 2 {
		t.Errorf("fetches = %d, want exactly 2 (one follow-up)", got)
	}
}

func TestCoalescerFetchErrorNotApplied(t *testing.T) {
	orders := &countingResource{fetchErr: errors.New("boom")}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 15*time.Millisecond)
	defer c.Close()

	var fetchErrs atomic.Int32
	c.OnFetch(func(name string, duration time.Duration, err error) {
		if err != nil {
			fetchErrs.Add(1)
		}
	})

	c.Notify("orders")

	waitFor(t, func() bool { return fetchErrs.Load() == 1 }, "failed fetch to be observed")

	if orders.appliedCount() != 0 {
		t.Error("failed fetch was applied to the sink")
	}
}

func TestCoalescerUnknownResourceIgnored(t *testing.T) {
	orders := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 15*time.Millisecond)
	defer c.Close()

	c.Notify("no-such-resource")

	if c.PendingCount() != 0 {
		t.Error("unknown resource opened a debounce window")
	}
}

func TestCoalescerCloseCancelsPendingWindows(t *testing.T) {
	orders := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 20*time.Millisecond)

	c.Notify("orders")
	c.Close()

	time.Sleep(50 * time.Millisecond)
	if orders.fetchCount() != 0 {
		t.Error("pending window fired after Close")
	}

	// Notifications after Close are dropped.
	c.Notify("orders")
	if c.PendingCount() != 0 {
		t.Error("Notify after Close opened a window")
	}
}

func TestCoalescerCloseDuringFetchDiscardsResult(t *testing.T) {
	orders := &countingResource{delay: 50 * time.Millisecond}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 10*time.Millisecond)

	c.Notify("orders")
	waitFor(t, func() bool { return orders.fetchCount() == 1 }, "fetch to start")

	c.Close()

	time.Sleep(80 * time.Millisecond)
	if orders.appliedCount() != 0 {
		t.Error("fetch result applied after Close")
	}
}

func TestCoalescerPendingAccessors(t *testing.T) {
	orders := &countingResource{}
	c := NewCoalescer(testRegistry(t, map[string]*countingResource{"orders": orders}), 30*time.Millisecond)
	defer c.Close()

	if c.Pending("orders") {
		t.Error("Pending() = true before any notification")
	}

	c.Notify("orders")
	if !c.Pending("orders") {
		t.Error("Pending() = false with an open window")
	}
	if c.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", c.PendingCount())
	}

	waitFor(t, func() bool { return !c.Pending("orders") }, "window to close")
}

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
