// Package realtime composes the Comanda sync client: the subscription
// controller that owns the notification channel, the initial bulk loader,
// and the Client facade the application starts and disposes.
//
// # Data Flow
//
// Client.Start runs the initial load (health check, parallel bulk fetch,
// apply) and then opens one multiplexed notification channel covering every
// registered resource. Each change notification is debounced by the
// coalescer into a refetch whose snapshot flows to the application sink.
//
// # Failure Handling
//
// The channel transport reports status through a callback. On error,
// timeout, or close the controller marks the channel disconnected and hands
// control to the reconnect scheduler (next attempt, exponential backoff)
// while a watchdog decides whether to start fallback polling of the
// critical resources (interim correctness). Both stand down the moment the
// channel reports active again. The client never gives up on the channel:
// backoff caps the delay but never stops retrying.
//
// Only the initial health check failure is escalated to the caller, since
// that is the one condition a user can act on (retry). Every transport failure
// after that is absorbed into scheduling decisions.
//
// # Concurrency
//
// All controller state lives behind one mutex; timers are the only source
// of concurrent wake-ups, and every timer callback revalidates state before
// acting, so a stale firing is a no-op.
package realtime
