package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger. Each record carries
// the event's own timestamp, and the payload is nested in a group named
// after the payload kind ("monitor", "write", "interest", "lifecycle",
// "error"). Error events are logged at Warn, everything else at Debug.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	if event.Category == CategoryError {
		level = slog.LevelWarn
	}

	ctx := context.Background()
	h := a.logger.Handler()
	if !h.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(event.Timestamp, level, "protocol", 0)
	r.AddAttrs(
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	if event.ConnectionID != "" {
		r.AddAttrs(slog.String("conn_id", event.ConnectionID))
	}
	if event.PV != "" {
		r.AddAttrs(slog.String("pv", event.PV))
	}
	if payload, ok := payloadGroup(event); ok {
		r.AddAttrs(payload)
	}

	_ = h.Handle(ctx, r)
}

func payloadGroup(event Event) (slog.Attr, bool) {
	switch {
	case event.Monitor != nil:
		m := event.Monitor
		return slog.Group("monitor",
			slog.Uint64("mask", uint64(m.Mask)),
			slog.Int("size", m.Size),
			slog.Bool("truncated", m.Truncated),
		), true
	case event.Write != nil:
		w := event.Write
		attrs := []any{slog.String("request_id", w.RequestID), slog.String("outcome", w.Outcome.String())}
		if w.Reason != "" {
			attrs = append(attrs, slog.String("reason", w.Reason))
		}
		return slog.Group("write", attrs...), true
	case event.Interest != nil:
		return slog.Group("interest", slog.Bool("enabled", event.Interest.Enabled)), true
	case event.Lifecycle != nil:
		l := event.Lifecycle
		attrs := []any{slog.String("action", l.Action.String())}
		if l.Type != "" {
			attrs = append(attrs, slog.String("type", l.Type), slog.Int("count", l.Count))
		}
		if l.Target != "" {
			attrs = append(attrs, slog.String("target", l.Target))
		}
		return slog.Group("lifecycle", attrs...), true
	case event.Error != nil:
		e := event.Error
		attrs := []any{
			slog.String("layer", e.Layer.String()),
			slog.String("kind", e.Kind.String()),
			slog.String("message", e.Message),
		}
		if e.Context != "" {
			attrs = append(attrs, slog.String("context", e.Context))
		}
		return slog.Group("error", attrs...), true
	}
	return slog.Attr{}, false
}

var _ Logger = (*SlogAdapter)(nil)
