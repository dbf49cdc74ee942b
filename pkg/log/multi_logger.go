package log

import (
	"errors"
	"io"
)

// MultiLogger fans events out to several loggers in order, typically a
// FileLogger for the .plog record and a ZapAdapter for the console.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Disabled loggers are dropped and
// nested MultiLoggers are flattened.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if !Enabled(l) {
			continue
		}
		if nested, ok := l.(*MultiLogger); ok {
			m.loggers = append(m.loggers, nested.loggers...)
			continue
		}
		m.loggers = append(m.loggers, l)
	}
	return m
}

// Combine returns the smallest logger that sends to every enabled logger
// given: NoopLogger for none, the logger itself for one, a MultiLogger
// otherwise.
func Combine(loggers ...Logger) Logger {
	m := NewMultiLogger(loggers...)
	switch len(m.loggers) {
	case 0:
		return NoopLogger{}
	case 1:
		return m.loggers[0]
	default:
		return m
	}
}

// Log sends the event to every logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Len returns the number of loggers events are sent to.
func (m *MultiLogger) Len() int { return len(m.loggers) }

// Close closes every logger that is an io.Closer and joins their errors.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if c, ok := l.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

var _ Logger = (*MultiLogger)(nil)
