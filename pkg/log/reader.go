package log

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events from a .plog file. Zero fields match everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// PV is an exact name or a shell pattern such as "TEMP:*".
	PV string

	// EventMask keeps monitor events whose posted mask intersects it.
	// Other categories never match a non-zero mask.
	EventMask uint8

	// ErrorKind keeps error events of one kind.
	ErrorKind *ErrorKind
}

// Validate reports a malformed PV pattern.
func (f *Filter) Validate() error {
	if f.PV == "" {
		return nil
	}
	if _, err := path.Match(f.PV, ""); err != nil {
		return fmt.Errorf("pv pattern %q: %w", f.PV, err)
	}
	return nil
}

// Match reports whether event passes every criterion of f.
func (f *Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.PV != "" && !f.matchPV(event.PV):
		return false
	case f.EventMask != 0 && (event.Monitor == nil || event.Monitor.Mask&f.EventMask == 0):
		return false
	case f.ErrorKind != nil && (event.Error == nil || event.Error.Kind != *f.ErrorKind):
		return false
	}
	return true
}

func (f *Filter) matchPV(name string) bool {
	if name == f.PV {
		return true
	}
	ok, _ := path.Match(f.PV, name)
	return ok
}

// Reader streams events from a .plog file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path for reading the events filter matches.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A file cut off in the middle of an event yields io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// All iterates the remaining matching events. Iteration stops after the
// first read error, which is yielded with a zero Event; the end of the
// file is not an error.
func (r *Reader) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
