// Package coalesce implements per-resource change coalescing for the sync
// client.
//
// A single backend write can fan out into several change notifications
// (closing a bill also touches the related order), and the notification
// channel transmits no payload, so every notification costs a full refetch.
// The coalescer collapses a burst of notifications for one resource into a
// single refetch issued after a quiet window, trading at most one window of
// staleness for far fewer redundant fetches and no UI flicker.
//
// # Debounce Behavior
//
// Each notification for a resource restarts that resource's window. When the
// window elapses with no further notifications, the resource's Refetch runs,
// its result is passed to Apply, and the pending entry is cleared.
//
// # Single In-Flight Fetch
//
// At most one refetch is in flight per resource. If the window elapses while
// a fetch is still running, the coalescer runs one follow-up fetch when the
// first completes, so the last Apply always carries state no older than the
// last notification.
//
// # Lifecycle
//
// Close cancels all pending windows and in-flight fetch contexts. Timer
// callbacks that lost the race with Close are no-ops.
package coalesce
