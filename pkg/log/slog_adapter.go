package log

import (
	"context"
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
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Component != "" {
		attrs = append(attrs, slog.String("component", event.Component))
	}

	// Add type-specific attributes
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Int("stream_id", int(event.Frame.StreamID)),
			slog.Int("msg_type", int(event.Frame.MessageType)),
			slog.Bool("truncated", event.Frame.Truncated),
		)
		if event.Frame.Flags != 0 {
			attrs = append(attrs, slog.Int("flags", int(event.Frame.Flags)))
		}
	case event.Message != nil:
		attrs = append(attrs,
			slog.Int("stream_id", int(event.Message.StreamID)),
			slog.String("kind", event.Message.Kind.String()),
		)
		if event.Message.Operation != "" {
			attrs = append(attrs, slog.String("operation", event.Message.Operation))
		}
		if event.Message.ServiceModelType != "" {
			attrs = append(attrs, slog.String("model_type", event.Message.ServiceModelType))
		}
		if event.Message.ErrorCode != "" {
			attrs = append(attrs, slog.String("error_code", event.Message.ErrorCode))
		}
		if event.Message.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *event.Message.ProcessingTime))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Entity != StateEntityConnection {
			attrs = append(attrs, slog.Int("stream_id", int(event.StateChange.StreamID)))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.ControlMsg != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.ControlMsg.Type.String()))
		if event.ControlMsg.Type == ControlMsgTerminate {
			attrs = append(attrs, slog.Int("stream_id", int(event.ControlMsg.StreamID)))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Kind != "" {
			attrs = append(attrs, slog.String("error_kind", event.Error.Kind))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
