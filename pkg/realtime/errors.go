package realtime

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	// ErrBackendUnreachable means the startup health check failed. It is
	// the only error the client escalates: the user can act on it by
	// retrying the initial load.
	ErrBackendUnreachable = errors.New("backend unreachable")

	// ErrClientClosed is returned by operations on a disposed client.
	ErrClientClosed = errors.New("client closed")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("client already started")
)

// ResourceFetchError reports a failed fetch for one resource during the
// initial bulk load. It is not escalated (the resource is degraded to its
// empty snapshot) but it is delivered to observers and logs.
type ResourceFetchError struct {
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *ResourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *ResourceFetchError) Unwrap() error {
	return e.Err
}
