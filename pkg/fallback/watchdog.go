package fallback

import (
	"sync"
	"time"
)

// DefaultWatchdogTimeout is how long a (re)connection attempt may take to
// reach active before the watchdog declares it stuck.
const DefaultWatchdogTimeout = 6 * time.Second

// Watchdog detects a subscription attempt that fails to reach active within
// a fixed window. Arm it when an attempt begins; Disarm it the moment the
// channel reports active. If the window elapses first, the expiry callback
// runs once.
type Watchdog struct {
	mu sync.Mutex

	// Window length.
	timeout time.Duration

	// Armed timer; identity-checked on expiry so a replaced timer that
	// already fired is discarded.
	timer *time.Timer
	armed bool

	// Invoked outside the lock when the window elapses while still armed.
	onExpire func()
}

// NewWatchdog creates a watchdog. A timeout of zero selects
// DefaultWatchdogTimeout. onExpire must not be nil.
func NewWatchdog(timeout time.Duration, onExpire func()) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	return &Watchdog{
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Arm starts (or restarts) the window. Each new connection attempt re-arms
// the watchdog, so the window measures the current attempt, not the outage.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.armed = true

	var timer *time.Timer
	timer = time.AfterFunc(w.timeout, func() {
		w.expired(timer)
	})
	w.timer = timer
}

// Disarm stops the window. Calling Disarm when not armed is a no-op.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.armed {
		return
	}
	w.armed = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Armed reports whether the window is currently running.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// expired runs when the timer fires. Stale firings (disarmed or re-armed in
// the meantime) are no-ops.
func (w *Watchdog) expired(timer *time.Timer) {
	w.mu.Lock()

	if !w.armed || w.timer != timer {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer = nil
	expireFn := w.onExpire

	w.mu.Unlock()

	expireFn()
}
