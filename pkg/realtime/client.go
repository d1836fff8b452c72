package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-pos/comanda-go/pkg/coalesce"
	"github.com/comanda-pos/comanda-go/pkg/log"
	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// ClientOptions configures a Client. Channel, Registry, and HealthCheck are
// required; everything else has a sensible default.
type ClientOptions struct {
	// Channel is the notification transport.
	Channel Channel

	// Registry holds every resource to keep in sync. Frozen on New.
	Registry *resource.Registry

	// HealthCheck probes backend reachability for the initial load.
	HealthCheck HealthCheckFunc

	// Environment supplies visibility/connectivity signals.
	// Defaults to AlwaysActive().
	Environment Environment

	// Logger receives sync events. Defaults to NoopLogger.
	Logger log.Logger

	// Config tunes timers and backoff. Zero fields select defaults.
	Config Config
}

// Client is the sync client facade: one object the application creates at
// startup, starts once, and disposes at shutdown. It keeps the local state
// sink consistent with the shared backend for every registered resource.
type Client struct {
	mu      sync.Mutex
	started bool
	closed  bool

	id        string
	cfg       Config
	logger    log.Logger
	registry  *resource.Registry
	coalescer *coalesce.Coalescer

	controller *Controller
	loader     *InitialLoader
}

// NewClient validates options, freezes the registry, and wires the client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Channel == nil {
		return nil, errors.New("channel is required")
	}
	if opts.Registry == nil || opts.Registry.Len() == 0 {
		return nil, errors.New("registry must hold at least one resource")
	}
	if opts.HealthCheck == nil {
		return nil, errors.New("health check is required")
	}

	cfg := opts.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	env := opts.Environment
	if env == nil {
		env = AlwaysActive()
	}

	opts.Registry.Freeze()

	c := &Client{
		id:       uuid.NewString(),
		cfg:      cfg,
		logger:   logger,
		registry: opts.Registry,
	}

	c.coalescer = coalesce.NewCoalescer(opts.Registry, cfg.DebounceWindow)
	c.coalescer.OnFetch(c.coalescedFetchDone)

	c.controller = NewController(c.id, opts.Channel, opts.Registry,
		c.coalescer, env, cfg, logger)
	c.loader = NewInitialLoader(c.id, opts.HealthCheck, opts.Registry,
		cfg.HealthCheckTimeout, logger)

	return c, nil
}

// ID returns the client instance ID stamped on its log events.
func (c *Client) ID() string {
	return c.id
}

// Start runs the initial load and, on success, opens the notification
// channel. A health check failure is returned as ErrBackendUnreachable
// (wrapped) without opening the channel; call RetryInitialLoad when the
// user asks to try again. Start after a successful Start is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	if err := c.loader.Load(ctx); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}

	c.controller.Open()
	return nil
}

// RetryInitialLoad re-runs a failed initial load and opens the channel if
// the retry succeeds. A retry while the client is already synced is a
// no-op.
func (c *Client) RetryInitialLoad(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.mu.Unlock()

	// Already synced: nothing to retry.
	if c.loader.State() == LoadLoaded {
		return nil
	}

	if err := c.loader.Retry(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	alreadyStarted := c.started
	c.started = true
	c.mu.Unlock()

	if !alreadyStarted || c.controller.State() == StateIdle {
		c.controller.Open()
	}
	return nil
}

// Close disposes the client: tears down the channel and synchronously
// cancels every pending timer (debounce windows, backoff, watchdog, and
// poll loop). Close is idempotent. The client cannot be restarted.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.controller.Close()
	c.coalescer.Close()
}

// ChannelState returns the notification channel state.
func (c *Client) ChannelState() ChannelState {
	return c.controller.State()
}

// LoadState returns the initial load state.
func (c *Client) LoadState() LoadState {
	return c.loader.State()
}

// LoadErr returns the initial load failure reason, when LoadState is
// LoadFailed.
func (c *Client) LoadErr() error {
	return c.loader.Err()
}

// ReconnectAttempts returns the reconnect attempt count since the channel
// was last active.
func (c *Client) ReconnectAttempts() int {
	return c.controller.Attempts()
}

// PollerActive reports whether fallback polling is running.
func (c *Client) PollerActive() bool {
	return c.controller.PollerActive()
}

// OnChannelStateChange sets a callback for channel state transitions, for
// callers that render connection status. Must not block.
func (c *Client) OnChannelStateChange(fn func(oldState, newState ChannelState)) {
	c.controller.OnStateChange(fn)
}

// coalescedFetchDone logs the outcome of a debounced refetch.
func (c *Client) coalescedFetchDone(name string, duration time.Duration, err error) {
	if err != nil {
		c.logger.Log(log.Event{
			Timestamp: time.Now(),
			ClientID:  c.id,
			Category:  log.CategoryError,
			Resource:  name,
			Error: &log.ErrorEventData{
				Message: err.Error(),
				Context: "coalesced refetch",
			},
		})
		return
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  c.id,
		Category:  log.CategoryFetch,
		Resource:  name,
		Fetch: &log.FetchEvent{
			Trigger:  log.TriggerNotification,
			Duration: duration,
		},
	})
}
