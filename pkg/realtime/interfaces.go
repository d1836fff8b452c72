package realtime

import "context"

// Status is a channel status reported by the transport.
type Status uint8

const (
	// StatusJoining indicates the subscription handshake is in progress.
	StatusJoining Status = iota

	// StatusActive indicates the channel is delivering notifications.
	StatusActive

	// StatusTimedOut indicates the handshake or heartbeat timed out.
	StatusTimedOut

	// StatusChannelError indicates a transport-level failure.
	StatusChannelError

	// StatusClosed indicates the transport closed the channel.
	StatusClosed

	// StatusLeaving indicates a locally requested teardown is in progress.
	StatusLeaving
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusJoining:
		return "JOINING"
	case StatusActive:
		return "ACTIVE"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusChannelError:
		return "CHANNEL_ERROR"
	case StatusClosed:
		return "CLOSED"
	case StatusLeaving:
		return "LEAVING"
	default:
		return "UNKNOWN"
	}
}

// NotifyFunc receives "resource X changed" notifications. The notification
// carries no payload; the new state must be refetched.
type NotifyFunc func(resourceName string)

// StatusFunc receives channel status transitions.
type StatusFunc func(status Status)

// Handle identifies one open channel instance to the transport. Opaque to
// the client.
type Handle any

// Channel is the pub-sub transport that delivers change notifications. It
// is a collaborator: implementations wrap whatever the hosted backend
// exposes (a websocket multiplexer, a database changefeed, ...).
//
// Open registers every named resource as a change source on one logical
// channel and returns a handle for Close. Callbacks may be invoked from any
// goroutine. After Close returns, the transport should stop invoking the
// callbacks registered by the corresponding Open; the controller tolerates
// stragglers but well-behaved transports do not produce them.
type Channel interface {
	Open(resourceNames []string, onNotify NotifyFunc, onStatus StatusFunc) (Handle, error)
	Close(handle Handle)
}

// HealthCheckFunc probes backend reachability. Used once per initial load.
type HealthCheckFunc func(ctx context.Context) error

// Environment supplies the visibility and connectivity signals that gate
// reconnection. Registered callbacks may be invoked from any goroutine.
type Environment interface {
	// IsConsumerActive reports whether the consumer is currently being
	// observed (the terminal's equivalent of a visible page).
	IsConsumerActive() bool

	// OnBecameActive registers a callback for the consumer becoming
	// active again.
	OnBecameActive(fn func())

	// OnBecameInactive registers a callback for the consumer going
	// inactive (screen blanked, app backgrounded).
	OnBecameInactive(fn func())

	// OnConnectivityRestored registers a callback for network
	// connectivity returning.
	OnConnectivityRestored(fn func())
}

// alwaysActiveEnv is the Environment for consumers that are never
// backgrounded, such as a kitchen display.
type alwaysActiveEnv struct{}

func (alwaysActiveEnv) IsConsumerActive() bool        { return true }
func (alwaysActiveEnv) OnBecameActive(func())         {}
func (alwaysActiveEnv) OnBecameInactive(func())       {}
func (alwaysActiveEnv) OnConnectivityRestored(func()) {}

// AlwaysActive returns an Environment that reports the consumer as
// permanently active and never fires signals.
func AlwaysActive() Environment {
	return alwaysActiveEnv{}
}
