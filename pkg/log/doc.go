// Package log provides structured event logging for the Comanda sync client.
//
// The sync client does not write free-form text logs. Every observable
// occurrence (a channel state transition, a fetch, a timer firing, an
// error) is captured as a typed Event and handed to a Logger. Applications
// choose where events go: discarded (NoopLogger), to the console through
// log/slog (SlogAdapter), to a compact binary capture file (FileLogger),
// or to several sinks at once (MultiLogger).
//
// # Event Format
//
// Events are encoded as CBOR with integer map keys, which keeps capture
// files small enough to leave enabled on a busy terminal. A capture file is
// a plain concatenation of CBOR-encoded events and can be decoded with
// ReadEvents.
//
// # Threading
//
// Logger implementations must be safe for concurrent use; the client logs
// from timer callbacks and fetch goroutines. Log must not block for long;
// slow sinks should buffer or drop.
package log
