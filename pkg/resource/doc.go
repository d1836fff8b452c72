// Package resource defines the resources the sync client keeps fresh and
// the registry that maps a resource name to its fetch and apply functions.
//
// A resource is one independently refreshable slice of backend state: the
// order queue, the bill list, the menu, and so on. The client never inspects
// snapshot contents; it only moves them from Refetch to Apply, so Snapshot
// is opaque.
//
// # Registration
//
// Resources are registered once at startup, before the client starts, and
// the registry is read-only afterwards. Identity is the name: registering
// the same name twice is an error.
//
// # Standard Resources
//
// The canonical Comanda resource names live in catalog.go. ResourceOrders is
// the critical resource: it is the one the fallback poller keeps fresh when
// the notification channel is down, and it uses a shortened debounce window
// because kitchen displays are latency-sensitive.
package resource
