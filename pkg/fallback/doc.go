// Package fallback implements degraded-mode operation for the sync client:
// a watchdog that detects a subscription attempt failing to make progress,
// and a poller that keeps critical resources eventually-consistent by
// direct refetching while the notification channel is down.
//
// # Watchdog
//
// The watchdog is armed whenever a (re)connection attempt begins and
// disarmed the moment the channel reports active. If it expires first, the
// attempt is considered stuck (on restaurant Wi-Fi the notification
// transport is often silently blocked rather than refused) and the
// expiry callback arms the poller.
//
// # Fallback Polling
//
// The poller refetches each critical resource (normally just the live order
// queue) at a fixed interval and applies the snapshots directly, bypassing
// the coalescer: this path exists precisely because notifications are not
// arriving. It runs until the channel reports active, at which point it is
// disarmed. Polling is a correctness backstop, not a performance path: the
// interval bounds staleness even if the transport is permanently blocked
// by network policy.
//
// # Timer Discipline
//
// Both components follow the same rule as every timer in the client: a
// callback that fires after the state it was armed for has changed is a
// no-op, never a regression.
package fallback
