package log

// Logger receives protocol events from the engine and the server surface.
// Log is called from whichever goroutine raised the event, often with a
// PV's delivery in progress, so implementations must be safe for concurrent
// use and must not call back into the PV.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events. It is the default when no logger is
// configured and is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// Enabled reports whether events sent to l go anywhere. Callers use it to
// skip building payloads, such as encoded snapshots, nobody will read.
func Enabled(l Logger) bool {
	switch l := l.(type) {
	case nil, NoopLogger, *NoopLogger:
		return false
	case *MultiLogger:
		return l != nil && len(l.loggers) > 0
	}
	return true
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
