package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
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
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional addressing
	if event.ObjectPath != "" {
		attrs = append(attrs, slog.String("path", event.ObjectPath))
	}
	if event.Source != 0 {
		attrs = append(attrs, slog.String("src", fmt.Sprintf("0x%04X", event.Source)))
	}
	if event.Destination != "" {
		attrs = append(attrs, slog.String("dst", event.Destination))
	}

	// Add type-specific attributes
	switch {
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("opcode", event.Message.Opcode),
			slog.Uint64("key_index", uint64(event.Message.KeyIndex)),
			slog.Int("size", event.Message.Size),
		)
		if event.Message.Model != "" {
			attrs = append(attrs, slog.String("model", event.Message.Model))
		}
		if event.Message.Method != "" {
			attrs = append(attrs, slog.String("method", event.Message.Method))
		}
		if event.Message.Delivery != nil {
			attrs = append(attrs, slog.Duration("delivery", *event.Message.Delivery))
		}
	case event.Call != nil:
		attrs = append(attrs,
			slog.String("interface", event.Call.Interface),
			slog.String("method", event.Call.Method),
		)
		if event.Call.Args != "" {
			attrs = append(attrs, slog.String("args", event.Call.Args))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Name != "" {
			attrs = append(attrs, slog.String("error_name", event.Error.Name))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
