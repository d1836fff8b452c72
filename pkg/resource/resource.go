package resource

import (
	"context"
	"errors"
	"time"
)

// Registry errors.
var (
	ErrDuplicateResource = errors.New("resource already registered")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrInvalidResource   = errors.New("invalid resource")
)

// Snapshot is the full current state of one resource as returned by the
// backend. The sync client treats it as opaque and only moves it from
// Refetch to Apply.
type Snapshot any

// RefetchFunc pulls a fresh snapshot for a resource from the backend.
// It must honor ctx cancellation.
type RefetchFunc func(ctx context.Context) (Snapshot, error)

// ApplyFunc pushes a snapshot into the application state sink. It must be
// safe to call repeatedly with stale-but-valid data (idempotent overwrite)
// and safe to call concurrently with applies for other resources.
type ApplyFunc func(snapshot Snapshot)

// Resource describes one independently refreshable slice of backend state.
// Immutable after registration.
type Resource struct {
	// Name uniquely identifies the resource across the registry.
	Name string

	// Refetch pulls the full current state for this resource.
	Refetch RefetchFunc

	// Apply pushes a fresh snapshot into the state sink.
	Apply ApplyFunc

	// DebounceWindow overrides the client's default debounce window for
	// this resource. Zero means use the default.
	DebounceWindow time.Duration

	// Critical marks this resource for the fallback poller: it is kept
	// eventually-consistent by direct polling while the notification
	// channel is down.
	Critical bool

	// Empty is the snapshot substituted when this resource's fetch fails
	// during the initial bulk load. May be nil.
	Empty Snapshot
}

// Registry is a static table of resources keyed by name. It is populated
// before the client starts and read-only afterwards, so lookups need no
// locking once Freeze has been called.
type Registry struct {
	resources map[string]*Resource
	order     []string
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]*Resource),
	}
}

// Register adds a resource to the registry. Registration order is preserved
// and determines bulk-fetch and poll order. Returns ErrDuplicateResource if
// the name is already taken and ErrInvalidResource if the resource is
// missing a name, refetch, or apply function.
func (r *Registry) Register(res Resource) error {
	if r.frozen {
		return errors.New("registry is frozen")
	}
	if res.Name == "" || res.Refetch == nil || res.Apply == nil {
		return ErrInvalidResource
	}
	if _, exists := r.resources[res.Name]; exists {
		return ErrDuplicateResource
	}

	stored := res
	r.resources[res.Name] = &stored
	r.order = append(r.order, res.Name)
	return nil
}

// Freeze marks the registry read-only. The client freezes the registry when
// it starts; Register calls after that fail.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Get returns the resource with the given name.
func (r *Registry) Get(name string) (*Resource, error) {
	res, exists := r.resources[name]
	if !exists {
		return nil, ErrResourceNotFound
	}
	return res, nil
}

// Names returns all registered resource names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Critical returns the names of resources marked critical, in registration
// order. These are the resources the fallback poller refreshes.
func (r *Registry) Critical() []string {
	var names []string
	for _, name := range r.order {
		if r.resources[name].Critical {
			names = append(names, name)
		}
	}
	return names
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	return len(r.resources)
}
