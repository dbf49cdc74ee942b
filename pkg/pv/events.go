package pv

import "strings"

// Events is a set of Channel Access event categories. The bit values are
// the DBE_* masks.
type Events uint8

const (
	EventNone     Events = 0
	EventValue    Events = 1
	EventArchive  Events = 2
	EventAlarm    Events = 4
	EventProperty Events = 8

	EventAll = EventValue | EventArchive | EventAlarm | EventProperty
)

// Has reports whether all bits of e2 are set in e.
func (e Events) Has(e2 Events) bool { return e&e2 == e2 && e2 != 0 }

// String renders the set as "VALUE|ALARM", or "NONE".
func (e Events) String() string {
	if e == EventNone {
		return "NONE"
	}
	var parts []string
	if e&EventValue != 0 {
		parts = append(parts, "VALUE")
	}
	if e&EventArchive != 0 {
		parts = append(parts, "ARCHIVE")
	}
	if e&EventAlarm != 0 {
		parts = append(parts, "ALARM")
	}
	if e&EventProperty != 0 {
		parts = append(parts, "PROPERTY")
	}
	return strings.Join(parts, "|")
}
