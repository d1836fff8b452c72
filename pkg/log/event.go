package log

import (
	"time"
)

// Event represents a sync client event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ClientID uniquely identifies the client instance (UUID).
	ClientID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Resource is the affected resource name, if the event concerns one.
	Resource string `cbor:"4,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"5,keyasint,omitempty"` // Channel/load state transitions
	Status      *StatusEvent      `cbor:"6,keyasint,omitempty"` // Raw channel status callbacks
	Fetch       *FetchEvent       `cbor:"7,keyasint,omitempty"` // Snapshot fetches
	Timer       *TimerEvent       `cbor:"8,keyasint,omitempty"` // Debounce/backoff/watchdog/poll timers
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"` // Errors at any layer
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a state machine transition.
	CategoryState Category = 0
	// CategoryChannel indicates a channel status callback.
	CategoryChannel Category = 1
	// CategoryFetch indicates a snapshot fetch.
	CategoryFetch Category = 2
	// CategoryTimer indicates timer activity.
	CategoryTimer Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryChannel:
		return "CHANNEL"
	case CategoryFetch:
		return "FETCH"
	case CategoryTimer:
		return "TIMER"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures state machine transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// EntityChannel indicates a channel state change.
	EntityChannel StateEntity = 0
	// EntityLoad indicates an initial-load state change.
	EntityLoad StateEntity = 1
	// EntityPoller indicates the fallback poller starting or stopping.
	EntityPoller StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case EntityChannel:
		return "CHANNEL"
	case EntityLoad:
		return "LOAD"
	case EntityPoller:
		return "POLLER"
	default:
		return "UNKNOWN"
	}
}

// StatusEvent captures a raw status callback from the channel transport.
type StatusEvent struct {
	// Status is the transport-reported status name.
	Status string `cbor:"1,keyasint"`

	// Generation identifies the channel generation (UUID). Statuses from a
	// torn-down generation can be recognized and discarded in captures.
	Generation string `cbor:"2,keyasint,omitempty"`
}

// FetchEvent captures a snapshot fetch for one resource.
type FetchEvent struct {
	// Trigger indicates what caused the fetch.
	Trigger FetchTrigger `cbor:"1,keyasint"`

	// Duration is how long the fetch took.
	Duration time.Duration `cbor:"2,keyasint,omitempty"`

	// Degraded is true when the fetch failed and an empty snapshot was
	// substituted (bulk load only).
	Degraded bool `cbor:"3,keyasint,omitempty"`
}

// FetchTrigger indicates what caused a fetch.
type FetchTrigger uint8

const (
	// TriggerInitialLoad indicates a bulk fetch at startup.
	TriggerInitialLoad FetchTrigger = 0
	// TriggerNotification indicates a debounced change notification.
	TriggerNotification FetchTrigger = 1
	// TriggerPoll indicates a fallback poll tick.
	TriggerPoll FetchTrigger = 2
)

// String returns the fetch trigger name.
func (t FetchTrigger) String() string {
	switch t {
	case TriggerInitialLoad:
		return "INITIAL_LOAD"
	case TriggerNotification:
		return "NOTIFICATION"
	case TriggerPoll:
		return "POLL"
	default:
		return "UNKNOWN"
	}
}

// TimerEvent captures timer arming and firing.
type TimerEvent struct {
	// Kind of timer.
	Kind TimerKind `cbor:"1,keyasint"`

	// Fired is true when the timer fired, false when it was armed.
	Fired bool `cbor:"2,keyasint,omitempty"`

	// Delay is the armed delay (arm events only).
	Delay time.Duration `cbor:"3,keyasint,omitempty"`
}

// TimerKind indicates the type of timer.
type TimerKind uint8

const (
	// TimerDebounce is a per-resource debounce timer.
	TimerDebounce TimerKind = 0
	// TimerBackoff is a reconnect backoff timer.
	TimerBackoff TimerKind = 1
	// TimerWatchdog is the connection watchdog.
	TimerWatchdog TimerKind = 2
	// TimerPoll is the fallback poll interval.
	TimerPoll TimerKind = 3
)

// String returns the timer kind name.
func (k TimerKind) String() string {
	switch k {
	case TimerDebounce:
		return "DEBOUNCE"
	case TimerBackoff:
		return "BACKOFF"
	case TimerWatchdog:
		return "WATCHDOG"
	case TimerPoll:
		return "POLL"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
