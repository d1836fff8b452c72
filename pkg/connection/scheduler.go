package connection

import (
	"sync"
	"time"
)

// AttemptFunc is invoked when a scheduled backoff timer fires. It should
// start a fresh subscription attempt, after checking that one is still
// wanted: a timer may fire after the channel has already recovered through
// another path, and such stale firings must be no-ops.
type AttemptFunc func()

// GateFunc reports whether the consumer is currently active (the
// application is being observed). A nil gate means always active.
type GateFunc func() bool

// Scheduler arms exponential-backoff timers for subscription attempts,
// gated on consumer visibility.
//
// At most one timer is pending at a time; Schedule while one is pending is a
// no-op. Schedule while the consumer is inactive marks the request deferred
// instead of arming a timer; ResumeIfDeferred reissues it, with backoff
// state preserved. RetryNow resets the backoff and attempts immediately.
type Scheduler struct {
	mu sync.Mutex

	backoff *Backoff
	gate    GateFunc
	attempt AttemptFunc

	// Pending timer; identity-checked on fire so a stopped timer that
	// already fired is discarded.
	timer   *time.Timer
	pending bool

	// A schedule request arrived while the consumer was inactive.
	deferred bool

	closed bool

	// Observer invoked when a timer is armed.
	onScheduled func(attempt int, delay time.Duration)
}

// NewScheduler creates a scheduler. attempt must not be nil.
func NewScheduler(backoff *Backoff, gate GateFunc, attempt AttemptFunc) *Scheduler {
	if backoff == nil {
		backoff = NewBackoff()
	}
	return &Scheduler{
		backoff: backoff,
		gate:    gate,
		attempt: attempt,
	}
}

// OnScheduled sets a callback invoked whenever a backoff timer is armed.
func (s *Scheduler) OnScheduled(fn func(attempt int, delay time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onScheduled = fn
}

// Schedule requests a subscription attempt after the current backoff delay.
// Idempotent: a no-op while a timer is already pending. While the consumer
// is inactive the request is deferred rather than dropped.
func (s *Scheduler) Schedule() {
	s.mu.Lock()

	if s.closed || s.pending {
		s.mu.Unlock()
		return
	}

	if s.gate != nil && !s.gate() {
		s.deferred = true
		s.mu.Unlock()
		return
	}

	delay := s.backoff.Next()
	attempts := s.backoff.Attempts()
	s.pending = true

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.timerFired(timer)
	})
	// Assign under the same lock so timerFired's identity check is valid.
	s.timer = timer

	scheduled := s.onScheduled
	s.mu.Unlock()

	if scheduled != nil {
		scheduled(attempts, delay)
	}
}

// timerFired runs when a backoff timer expires. Stale firings (the timer was
// replaced or canceled, or the scheduler closed) are no-ops.
func (s *Scheduler) timerFired(timer *time.Timer) {
	s.mu.Lock()
	if s.closed || !s.pending || s.timer != timer {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	attempt := s.attempt
	s.mu.Unlock()

	attempt()
}

// CancelPending clears any armed timer without resetting the attempt
// counter. Used when the consumer goes inactive: the next Schedule after it
// becomes active again continues the backoff progression rather than
// restarting from the initial delay. The pending request is kept deferred so
// ResumeIfDeferred reissues it.
func (s *Scheduler) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.pending = false
	s.deferred = true
}

// ResumeIfDeferred reissues a deferred schedule request. Called when the
// consumer becomes active again. No-op when nothing was deferred.
func (s *Scheduler) ResumeIfDeferred() {
	s.mu.Lock()
	if s.closed || !s.deferred {
		s.mu.Unlock()
		return
	}
	s.deferred = false
	s.mu.Unlock()

	s.Schedule()
}

// RetryNow resets the backoff and runs the attempt immediately, bypassing
// any armed timer. Called on a connectivity-restored signal: coming back
// online deserves an eager retry, not the stale cool-down.
func (s *Scheduler) RetryNow() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.pending {
		s.timer.Stop()
		s.timer = nil
		s.pending = false
	}
	s.deferred = false
	s.backoff.Reset()
	attempt := s.attempt
	s.mu.Unlock()

	attempt()
}

// Reset cancels any pending timer and resets the backoff to its initial
// delay. Called when the channel reaches active.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		s.timer.Stop()
		s.timer = nil
		s.pending = false
	}
	s.deferred = false
	s.backoff.Reset()
}

// Pending reports whether a backoff timer is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Deferred reports whether a schedule request is waiting for the consumer to
// become active.
func (s *Scheduler) Deferred() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deferred
}

// Attempts returns the backoff attempt count since the last reset.
func (s *Scheduler) Attempts() int {
	return s.backoff.Attempts()
}

// Close cancels any pending timer and prevents further scheduling. After
// Close returns, the attempt callback will not be invoked again.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.pending {
		s.timer.Stop()
		s.timer = nil
		s.pending = false
	}
	s.deferred = false
}
