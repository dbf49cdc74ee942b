package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// ExportOptions configures RunExport.
type ExportOptions struct {
	Format string // jsonl or csv
	Output string // empty for w
	Filter FilterOptions
}

// record is the flat, text-only form of an event shared by both formats.
type record struct {
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Direction    string    `json:"direction"`
	Layer        string    `json:"layer"`
	Category     string    `json:"category"`
	PV           string    `json:"pv,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Value        string    `json:"value,omitempty"`
	Alarm        string    `json:"alarm,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "pv", "detail", "value", "alarm", "reason"}

func (r record) row() []string {
	return []string{
		r.Timestamp.UTC().Format(timeLayout),
		r.ConnectionID, r.Direction, r.Layer, r.Category, r.PV,
		r.Detail, r.Value, r.Alarm, r.Reason,
	}
}

func newRecord(event log.Event) record {
	r := record{
		Timestamp:    event.Timestamp,
		ConnectionID: event.ConnectionID,
		Direction:    event.Direction.String(),
		Layer:        event.Layer.String(),
		Category:     event.Category.String(),
		PV:           event.PV,
	}
	switch {
	case event.Monitor != nil:
		r.Detail = pv.Events(event.Monitor.Mask).String()
		if event.Monitor.Truncated {
			break
		}
		if snap, err := wire.UnmarshalSnapshot(event.Monitor.Snapshot); err == nil {
			if snap.Has(wire.FieldValue) {
				r.Value = formatWireValue(snap.Value)
			}
			if snap.Has(wire.FieldStatus) || snap.Has(wire.FieldSeverity) {
				r.Alarm = pv.Status(snap.Status).String() + "/" + pv.Severity(snap.Severity).String()
			}
		}
	case event.Write != nil:
		r.Detail = event.Write.Outcome.String()
		r.Reason = event.Write.Reason
	case event.Interest != nil:
		r.Detail = "publishing=" + strconv.FormatBool(event.Interest.Enabled)
	case event.Lifecycle != nil:
		r.Detail = event.Lifecycle.Action.String()
		if event.Lifecycle.Target != "" {
			r.Value = event.Lifecycle.Target
		}
	case event.Error != nil:
		r.Detail = event.Error.Kind.String()
		r.Reason = event.Error.Message
	}
	return r
}

// exporter writes records in one output format.
type exporter interface {
	write(r record) error
	flush() error
}

type jsonlExporter struct{ enc *json.Encoder }

func (e jsonlExporter) write(r record) error { return e.enc.Encode(r) }
func (e jsonlExporter) flush() error         { return nil }

type csvExporter struct{ w *csv.Writer }

func (e csvExporter) write(r record) error { return e.w.Write(r.row()) }

func (e csvExporter) flush() error {
	e.w.Flush()
	return e.w.Error()
}

func newExporter(format string, w io.Writer) (exporter, error) {
	switch format {
	case "jsonl":
		return jsonlExporter{enc: json.NewEncoder(w)}, nil
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		return csvExporter{w: cw}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// RunExport writes the events of path matching opts.Filter as JSON lines or
// CSV, to opts.Output when set and to w otherwise. It returns the number of
// exported events.
func RunExport(path string, opts ExportOptions, w io.Writer) (int, error) {
	if opts.Format != "jsonl" && opts.Format != "csv" {
		return 0, fmt.Errorf("unknown format: %s (supported: jsonl, csv)", opts.Format)
	}
	filter, err := opts.Filter.Build()
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return 0, fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	exp, err := newExporter(opts.Format, w)
	if err != nil {
		return 0, err
	}

	count := 0
	for event, err := range reader.All() {
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		if err := exp.write(newRecord(event)); err != nil {
			return count, fmt.Errorf("failed to write event: %w", err)
		}
		count++
	}
	return count, exp.flush()
}
