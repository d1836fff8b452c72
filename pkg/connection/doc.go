// Package connection provides reconnect scheduling for the sync client.
//
// This package handles:
//   - Exponential backoff between subscription attempts
//   - Optional jitter to prevent thundering herd
//   - Gating on consumer visibility (no network activity while the
//     consumer is not being observed)
//   - Eager retry when connectivity returns
//
// # Reconnection Strategy
//
// When the notification channel is lost, the scheduler arms a timer using
// exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 20 seconds
//  4. Continue at 20s until successful; the scheduler never gives up
//  5. Reset to 1s on reaching an active channel
//
// # Visibility Gating
//
// Schedule requests made while the consumer is inactive are deferred, not
// dropped: the request is reissued when the consumer becomes active again,
// with backoff state preserved. A connectivity-restored signal instead
// resets the backoff and retries immediately.
package connection
