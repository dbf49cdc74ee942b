package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
)

// FilterOptions are the textual filter flags shared by view, export and filter.
type FilterOptions struct {
	ConnID    string
	PV        string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Events    string
}

// Build converts the options to a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		PV:           o.PV,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if o.Events != "" {
		mask, err := ParseEventsFlag(o.Events)
		if err != nil {
			return log.Filter{}, err
		}
		filter.EventMask = uint8(mask)
	}
	if err := filter.Validate(); err != nil {
		return log.Filter{}, err
	}
	return filter, nil
}

// RunFilter copies the events of path matching opts to output and returns
// how many were written.
func RunFilter(path, output string, opts FilterOptions) (int, error) {
	filter, err := opts.Build()
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for event, err := range reader.All() {
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
	return count, nil
}

// ParseEventsFlag parses an event set such as "value|alarm" or
// "archive,property".
func ParseEventsFlag(s string) (pv.Events, error) {
	var mask pv.Events
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "value":
			mask |= pv.EventValue
		case "archive":
			mask |= pv.EventArchive
		case "alarm":
			mask |= pv.EventAlarm
		case "property":
			mask |= pv.EventProperty
		default:
			return 0, fmt.Errorf("invalid event: %s (must be value, archive, alarm, or property)", part)
		}
	}
	if mask == pv.EventNone {
		return 0, fmt.Errorf("empty event set: %q", s)
	}
	return mask, nil
}
