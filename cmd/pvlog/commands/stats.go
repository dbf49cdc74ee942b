package commands

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
)

var (
	layerOrder     = []log.Layer{log.LayerTransport, log.LayerWire, log.LayerEngine}
	categoryOrder  = []log.Category{log.CategoryEvent, log.CategoryWrite, log.CategoryInterest, log.CategoryLifecycle, log.CategoryError}
	directionOrder = []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionNone}
	errorKindOrder = []log.ErrorKind{log.ErrorKindEncoding, log.ErrorKindProtocolMisuse, log.ErrorKindConfiguration, log.ErrorKindOther}
	eventOrder     = []pv.Events{pv.EventValue, pv.EventArchive, pv.EventAlarm, pv.EventProperty}
)

// Stats aggregates a protocol log.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	ErrorsByKind      map[log.ErrorKind]int
	PVs               map[string]*PVStats
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// PVStats aggregates the events of one PV.
type PVStats struct {
	Posted   int
	ByEvent  map[pv.Events]int
	Writes   map[log.WriteOutcome]int
	LastPost time.Time
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		ErrorsByKind:      make(map[log.ErrorKind]int),
		PVs:               make(map[string]*PVStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}
	if event.Error != nil {
		s.ErrorsByKind[event.Error.Kind]++
	}
	if event.PV != "" {
		s.pv(event.PV).add(event)
	}
}

func (s *Stats) pv(name string) *PVStats {
	ps, ok := s.PVs[name]
	if !ok {
		ps = &PVStats{ByEvent: make(map[pv.Events]int), Writes: make(map[log.WriteOutcome]int)}
		s.PVs[name] = ps
	}
	return ps
}

func (ps *PVStats) add(event log.Event) {
	switch {
	case event.Monitor != nil:
		ps.Posted++
		mask := pv.Events(event.Monitor.Mask)
		for _, e := range eventOrder {
			if mask.Has(e) {
				ps.ByEvent[e]++
			}
		}
		if event.Timestamp.After(ps.LastPost) {
			ps.LastPost = event.Timestamp
		}
	case event.Write != nil:
		ps.Writes[event.Write.Outcome]++
	}
}

// CollectStats reads path and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for event, err := range reader.All() {
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

// RunStats prints the statistics of path to w.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

// printCounts writes the non-zero counts of keys in order, one per line.
func printCounts[K interface {
	comparable
	fmt.Stringer
}](w io.Writer, width int, counts map[K]int, keys []K) {
	for _, k := range keys {
		if n := counts[k]; n > 0 {
			fmt.Fprintf(w, "  %-*s %d\n", width, k.String()+":", n)
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprint(w, "=== PV Protocol Log Statistics ===\n\n")

	if stats.TotalEvents > 0 {
		start, end := stats.TimeRange.Start, stats.TimeRange.End
		fmt.Fprintf(w, "Time Range: %s to %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", end.Sub(start).Round(time.Second))
	}
	fmt.Fprintf(w, "Total Events: %d\n\n", stats.TotalEvents)

	fmt.Fprintln(w, "Events by Layer:")
	printCounts(w, 12, stats.EventsByLayer, layerOrder)
	fmt.Fprintln(w, "\nEvents by Category:")
	printCounts(w, 12, stats.EventsByCategory, categoryOrder)
	fmt.Fprintln(w, "\nEvents by Direction:")
	printCounts(w, 12, stats.EventsByDirection, directionOrder)

	fmt.Fprintf(w, "\nPVs: %d\n", len(stats.PVs))
	names := make([]string, 0, len(stats.PVs))
	for name := range stats.PVs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		ps := stats.PVs[name]
		fmt.Fprintf(w, "  %s: %d posted", name, ps.Posted)
		for _, e := range eventOrder {
			if n := ps.ByEvent[e]; n > 0 {
				fmt.Fprintf(w, ", %s=%d", e, n)
			}
		}
		fmt.Fprintln(w)
		if len(ps.Writes) > 0 {
			fmt.Fprintf(w, "    writes: accepted=%d rejected=%d pending=%d\n",
				ps.Writes[log.WriteAccepted], ps.Writes[log.WriteRejected], ps.Writes[log.WritePending])
		}
	}

	total := 0
	for _, n := range stats.ErrorsByKind {
		total += n
	}
	if total > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", total)
		printCounts(w, 16, stats.ErrorsByKind, errorKindOrder)
	}
}
