package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes sync events to an slog.Logger.
// Useful for development when you want to see client activity in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("client_id", event.ClientID),
		slog.String("category", event.Category.String()),
	}

	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}

	// Add type-specific attributes
	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Status != nil:
		attrs = append(attrs, slog.String("status", event.Status.Status))
		if event.Status.Generation != "" {
			attrs = append(attrs, slog.String("generation", event.Status.Generation))
		}
	case event.Fetch != nil:
		attrs = append(attrs,
			slog.String("trigger", event.Fetch.Trigger.String()),
			slog.Duration("duration", event.Fetch.Duration),
		)
		if event.Fetch.Degraded {
			attrs = append(attrs, slog.Bool("degraded", true))
		}
	case event.Timer != nil:
		attrs = append(attrs,
			slog.String("timer", event.Timer.Kind.String()),
			slog.Bool("fired", event.Timer.Fired),
		)
		if event.Timer.Delay > 0 {
			attrs = append(attrs, slog.Duration("delay", event.Timer.Delay))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "sync", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
