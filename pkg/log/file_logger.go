package log

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends protocol events to a .plog file as a stream of CBOR
// items. It is safe for concurrent use.
type FileLogger struct {
	path    string
	dropped atomic.Uint64

	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644 if
// needed. Events already in the file are kept.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open protocol log: %w", err)
	}
	return &FileLogger{path: path, file: f, encoder: NewEncoder(f)}, nil
}

// Path returns the file the logger writes to.
func (l *FileLogger) Path() string { return l.path }

// Log appends an event. Events that cannot be written, and events logged
// after Close, are counted in Dropped instead of failing the caller.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.encoder.Encode(event) != nil {
		l.dropped.Add(1)
	}
}

// Dropped returns the number of events that were not written.
func (l *FileLogger) Dropped() uint64 { return l.dropped.Load() }

// Sync flushes the file to stable storage.
func (l *FileLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.file.Sync()
}

// Close closes the file. Further calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
