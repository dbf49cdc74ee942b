package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter writes protocol events to a zap.Logger.
// Error events are logged at Warn level, everything else at Debug.
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter creates a ZapAdapter that writes to the given zap.Logger.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: logger}
}

// Log writes the event to the zap logger.
func (a *ZapAdapter) Log(event Event) {
	level := zapcore.DebugLevel
	if event.Category == CategoryError {
		level = zapcore.WarnLevel
	}
	ce := a.logger.Check(level, "protocol")
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.Stringer("direction", event.Direction),
		zap.Stringer("layer", event.Layer),
		zap.Stringer("category", event.Category),
	}
	if event.ConnectionID != "" {
		fields = append(fields, zap.String("conn_id", event.ConnectionID))
	}
	if event.PV != "" {
		fields = append(fields, zap.String("pv", event.PV))
	}

	switch {
	case event.Monitor != nil:
		fields = append(fields,
			zap.Uint8("mask", event.Monitor.Mask),
			zap.Int("snapshot_size", event.Monitor.Size),
		)
		if event.Monitor.Truncated {
			fields = append(fields, zap.Bool("truncated", true))
		}
	case event.Write != nil:
		fields = append(fields,
			zap.String("request_id", event.Write.RequestID),
			zap.Stringer("outcome", event.Write.Outcome),
		)
		if event.Write.Reason != "" {
			fields = append(fields, zap.String("reason", event.Write.Reason))
		}
	case event.Interest != nil:
		fields = append(fields, zap.Bool("enabled", event.Interest.Enabled))
	case event.Lifecycle != nil:
		fields = append(fields, zap.Stringer("action", event.Lifecycle.Action))
		if event.Lifecycle.Type != "" {
			fields = append(fields,
				zap.String("type", event.Lifecycle.Type),
				zap.Int("count", event.Lifecycle.Count),
			)
		}
		if event.Lifecycle.Target != "" {
			fields = append(fields, zap.String("target", event.Lifecycle.Target))
		}
	case event.Error != nil:
		fields = append(fields,
			zap.Stringer("error_kind", event.Error.Kind),
			zap.String("error", event.Error.Message),
			zap.String("context", event.Error.Context),
		)
	}

	ce.Write(fields...)
}

var _ Logger = (*ZapAdapter)(nil)
