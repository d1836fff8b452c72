package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-pos/comanda-go/pkg/coalesce"
	"github.com/comanda-pos/comanda-go/pkg/connection"
	"github.com/comanda-pos/comanda-go/pkg/fallback"
	"github.com/comanda-pos/comanda-go/pkg/log"
	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// ChannelState is the controller's view of the notification channel.
type ChannelState uint8

const (
	// StateIdle indicates no channel has been requested (construction, or
	// after Close).
	StateIdle ChannelState = iota

	// StateConnecting indicates a subscription attempt is in progress.
	StateConnecting

	// StateActive indicates notifications are flowing.
	StateActive

	// StateDisconnected indicates the channel is down and the reconnect
	// machinery owns recovery.
	StateDisconnected
)

// String returns a human-readable state name.
func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Controller owns one logical multiplexed notification channel covering
// every registered resource, and drives the state machine
// Idle → Connecting → Active, with Connecting and Active both able to fall
// to Disconnected and the scheduler driving Disconnected → Connecting.
//
// Channel generations: each Open mints a generation ID captured by the
// status callback, so callbacks from a torn-down channel instance are
// recognized and dropped. Before a new channel is opened, the previous
// handle is always closed first, so there are never two live channels
// delivering duplicate notifications.
type Controller struct {
	mu sync.Mutex

	state      ChannelState
	generation string
	handle     Handle

	channel   Channel
	registry  *resource.Registry
	coalescer *coalesce.Coalescer
	scheduler *connection.Scheduler
	watchdog  *fallback.Watchdog
	poller    *fallback.Poller
	cfg       Config

	clientID string
	logger   log.Logger

	onStateChange func(oldState, newState ChannelState)
}

// NewController wires a controller over the given collaborators. cfg must
// already have defaults filled in. env supplies the visibility gate and the
// signals; pass AlwaysActive() for terminals that are never backgrounded.
func NewController(clientID string, channel Channel, registry *resource.Registry,
	coalescer *coalesce.Coalescer, env Environment, cfg Config, logger log.Logger) *Controller {

	if logger == nil {
		logger = log.NoopLogger{}
	}
	if env == nil {
		env = AlwaysActive()
	}

	c := &Controller{
		state:     StateIdle,
		channel:   channel,
		registry:  registry,
		coalescer: coalescer,
		cfg:       cfg,
		clientID:  clientID,
		logger:    logger,
	}

	backoff := connection.NewBackoffWithConfig(connection.BackoffConfig{
		Initial:    cfg.BackoffInitial,
		Max:        cfg.BackoffMax,
		Multiplier: cfg.BackoffMultiplier,
		Jitter:     cfg.BackoffJitter,
	})
	c.scheduler = connection.NewScheduler(backoff, env.IsConsumerActive, c.reconnect)
	c.scheduler.OnScheduled(func(attempt int, delay time.Duration) {
		c.logTimer(log.TimerBackoff, false, delay)
	})

	c.watchdog = fallback.NewWatchdog(cfg.WatchdogTimeout, c.watchdogExpired)

	c.poller = fallback.NewPoller(registry)
	c.poller.OnTick(func(name string, duration time.Duration, err error) {
		c.logFetch(name, log.TriggerPoll, duration, err)
	})

	env.OnBecameActive(c.consumerActive)
	env.OnBecameInactive(c.consumerInactive)
	env.OnConnectivityRestored(c.connectivityRestored)

	return c
}

// OnStateChange sets a callback for channel state transitions. The callback
// runs outside the controller lock and must not block.
func (c *Controller) OnStateChange(fn func(oldState, newState ChannelState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// State returns the current channel state.
func (c *Controller) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the reconnect attempt count since the channel was last
// active.
func (c *Controller) Attempts() int {
	return c.scheduler.Attempts()
}

// PollerActive reports whether fallback polling is running.
func (c *Controller) PollerActive() bool {
	return c.poller.Active()
}

// Open establishes the notification channel, registering every resource in
// the registry as a change source. Any previous channel instance is fully
// torn down first. Open never blocks on the transport becoming active; the
// outcome arrives through the status callback, with the watchdog bounding
// how long an attempt may stay silent.
func (c *Controller) Open() {
	c.mu.Lock()
	gen := uuid.NewString()
	c.generation = gen
	oldHandle := c.handle
	c.handle = nil
	notify := c.toStateLocked(StateConnecting, "open")
	c.mu.Unlock()

	if oldHandle != nil {
		c.channel.Close(oldHandle)
	}
	if notify != nil {
		notify()
	}

	c.watchdog.Arm()
	c.logTimer(log.TimerWatchdog, false, c.cfg.WatchdogTimeout)

	handle, err := c.channel.Open(c.registry.Names(), c.handleNotify, func(s Status) {
		c.handleStatus(gen, s)
	})
	if err != nil {
		c.logError(err, "channel open")
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		notify = c.toStateLocked(StateDisconnected, "open failed")
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
		c.scheduler.Schedule()
		return
	}

	c.mu.Lock()
	if c.generation != gen {
		// Superseded while opening; the newer generation owns the state.
		c.mu.Unlock()
		c.channel.Close(handle)
		return
	}
	c.handle = handle
	c.mu.Unlock()
}

// Close tears the channel down idempotently: cancels the watchdog, the
// poller, and any armed backoff timer, and returns the controller to Idle.
// The controller stays reusable: a later Open starts a fresh
// Idle to Connecting transition unaffected by anything canceled here.
func (c *Controller) Close() {
	c.mu.Lock()
	// Mint a new generation so stragglers from the old channel are dropped.
	c.generation = uuid.NewString()
	oldHandle := c.handle
	c.handle = nil
	notify := c.toStateLocked(StateIdle, "close")
	c.mu.Unlock()

	c.scheduler.Reset()
	c.watchdog.Disarm()
	c.disarmPoller()

	if oldHandle != nil {
		c.channel.Close(oldHandle)
	}
	if notify != nil {
		notify()
	}
}

// handleNotify is the transport's change-notification callback: every
// notification goes through the coalescer, never straight to a fetch.
func (c *Controller) handleNotify(name string) {
	c.coalescer.Notify(name)
}

// handleStatus is the transport's status callback for one channel
// generation. Statuses from a superseded generation are dropped.
func (c *Controller) handleStatus(gen string, status Status) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	switch status {
	case StatusActive:
		notify := c.toStateLocked(StateActive, "channel active")
		c.mu.Unlock()

		c.logStatus(status, gen)
		if notify != nil {
			notify()
		}
		// Stand down the whole failure machinery.
		c.scheduler.Reset()
		c.watchdog.Disarm()
		c.disarmPoller()

	case StatusChannelError, StatusTimedOut, StatusClosed:
		notify := c.toStateLocked(StateDisconnected, status.String())
		c.mu.Unlock()

		c.logStatus(status, gen)
		if notify != nil {
			notify()
		}
		// Recoverable by definition: hand control to the scheduler. It
		// defers (without dropping) while the consumer is inactive.
		c.scheduler.Schedule()

	default: // StatusJoining, StatusLeaving
		c.mu.Unlock()
		c.logStatus(status, gen)
	}
}

// reconnect is the scheduler's attempt callback. A backoff timer may fire
// after the channel recovered through another path or the controller was
// closed; those firings are no-ops.
func (c *Controller) reconnect() {
	c.mu.Lock()
	if c.state == StateActive || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.Open()
}

// watchdogExpired runs when a connection attempt fails to reach active
// within the watchdog window. The poller takes over interim correctness for
// the critical resources.
func (c *Controller) watchdogExpired() {
	c.logTimer(log.TimerWatchdog, true, 0)

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state == StateActive || state == StateIdle {
		return
	}

	c.armPoller()
}

// consumerActive reissues a deferred reconnect request when the consumer
// becomes observable again.
func (c *Controller) consumerActive() {
	c.scheduler.ResumeIfDeferred()
}

// consumerInactive parks any armed backoff timer, preserving the attempt
// count for when the consumer returns.
func (c *Controller) consumerInactive() {
	c.scheduler.CancelPending()
}

// connectivityRestored retries immediately with a fresh backoff, but only
// while disconnected; a healthy channel is left alone.
func (c *Controller) connectivityRestored() {
	c.mu.Lock()
	disconnected := c.state == StateDisconnected
	c.mu.Unlock()

	if disconnected {
		c.scheduler.RetryNow()
	}
}

func (c *Controller) armPoller() {
	if c.poller.Active() {
		return
	}
	critical := c.registry.Critical()
	if len(critical) == 0 {
		return
	}
	c.poller.Arm(critical, c.cfg.PollInterval)
	c.logPoller(true)
}

func (c *Controller) disarmPoller() {
	if !c.poller.Active() {
		return
	}
	c.poller.Disarm()
	c.logPoller(false)
}

// toStateLocked transitions the state machine and returns a closure that
// emits the log event and user callback. Callers run the closure after
// releasing the lock. Returns nil when the state did not change.
func (c *Controller) toStateLocked(newState ChannelState, reason string) func() {
	old := c.state
	if old == newState {
		return nil
	}
	c.state = newState
	cb := c.onStateChange

	return func() {
		c.logger.Log(log.Event{
			Timestamp: time.Now(),
			ClientID:  c.clientID,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.EntityChannel,
				OldState: old.String(),
				NewState: newState.String(),
				Reason:   reason,
			},
		})
		if cb != nil {
			cb(old, newState)
		}
	}
}

func (c *Controller) logError(err error, context string) {
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.clientID,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Context: context,
		},
	})
}

func (c *Controller) logStatus(status Status, gen string) {
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.clientID,
		Category:  log.CategoryChannel,
		Status: &log.StatusEvent{
			Status:     status.String(),
			Generation: gen,
		},
	})
}

func (c *Controller) logTimer(kind log.TimerKind, fired bool, delay time.Duration) {
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.clientID,
		Category:  log.CategoryTimer,
		Timer: &log.TimerEvent{
			Kind:  kind,
			Fired: fired,
			Delay: delay,
		},
	})
}

func (c *Controller) logPoller(started bool) {
	oldState, newState := "RUNNING", "STOPPED"
	if started {
		oldState, newState = "STOPPED", "RUNNING"
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.clientID,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityPoller,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (c *Controller) logFetch(name string, trigger log.FetchTrigger, duration time.Duration, err error) {
	if err != nil {
		c.logger.Log(log.Event{
			Timestamp: time.Now(),
			ClientID:  c.clientID,
			Category:  log.CategoryError,
			Resource:  name,
			Error: &log.ErrorEventData{
				Message: err.Error(),
				Context: trigger.String(),
			},
		})
		return
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.clientID,
		Category:  log.CategoryFetch,
		Resource:  name,
		Fetch: &log.FetchEvent{
			Trigger:  trigger,
			Duration: duration,
		},
	})
}
