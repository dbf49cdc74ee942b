// Package commands implements the pvlog CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// timeLayout is the timestamp format of every human-readable line.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER CATEGORY pv
	ts := event.Timestamp.UTC().Format(timeLayout)
	conn := shortenConnID(event.ConnectionID)
	if conn == "" {
		conn = "-"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %-9s %s %s\n",
		ts, conn, event.Direction, event.Layer, event.Category, event.PV)

	switch {
	case event.Monitor != nil:
		formatMonitorDetails(w, event.Monitor)
	case event.Write != nil:
		fmt.Fprintf(w, "  Request: %s\n", event.Write.RequestID)
		fmt.Fprintf(w, "  Outcome: %s\n", event.Write.Outcome)
		if event.Write.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", event.Write.Reason)
		}
	case event.Interest != nil:
		fmt.Fprintf(w, "  Publishing: %t\n", event.Interest.Enabled)
	case event.Lifecycle != nil:
		formatLifecycleDetails(w, event.Lifecycle)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatMonitorDetails(w io.Writer, m *log.MonitorEvent) {
	fmt.Fprintf(w, "  Events: %s\n", pv.Events(m.Mask))
	fmt.Fprintf(w, "  Size: %d bytes", m.Size)
	if m.Truncated {
		fmt.Fprint(w, " (truncated)")
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w)

	snap, err := wire.UnmarshalSnapshot(m.Snapshot)
	if err != nil {
		fmt.Fprintf(w, "  Snapshot: undecodable: %v\n", err)
		return
	}
	if snap.Has(wire.FieldValue) {
		fmt.Fprintf(w, "  Value: %s\n", formatWireValue(snap.Value))
	}
	if snap.Has(wire.FieldStatus) || snap.Has(wire.FieldSeverity) {
		fmt.Fprintf(w, "  Alarm: %s/%s\n", pv.Status(snap.Status), pv.Severity(snap.Severity))
	}
	if snap.Has(wire.FieldTimestamp) {
		fmt.Fprintf(w, "  Stamp: %s\n", snap.Timestamp)
	}
}

func formatWireValue(v wire.Value) string {
	var parts []string
	switch {
	case v.Ints != nil:
		for _, x := range v.Ints {
			parts = append(parts, fmt.Sprint(x))
		}
	case v.Floats != nil:
		for _, x := range v.Floats {
			parts = append(parts, fmt.Sprint(x))
		}
	case v.Strings != nil:
		for _, b := range v.Strings {
			parts = append(parts, fmt.Sprintf("%q", b))
		}
	}
	if v.Array {
		return "[" + strings.Join(parts, " ") + "]"
	}
	return strings.Join(parts, " ")
}

func formatLifecycleDetails(w io.Writer, lc *log.LifecycleEvent) {
	fmt.Fprintf(w, "  Action: %s\n", lc.Action)
	if lc.Type != "" {
		fmt.Fprintf(w, "  Type: %s[%d]\n", lc.Type, lc.Count)
	}
	if lc.Target != "" {
		fmt.Fprintf(w, "  Target: %s\n", lc.Target)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Kind: %s\n", err.Kind)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "engine":
		return log.LayerEngine, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or engine)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "none", "-":
		return log.DirectionNone, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out or none)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "event":
		return log.CategoryEvent, nil
	case "write":
		return log.CategoryWrite, nil
	case "interest":
		return log.CategoryInterest, nil
	case "lifecycle":
		return log.CategoryLifecycle, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be event, write, interest, lifecycle, or error)", s)
	}
}

// RunView prints every event matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for event, err := range reader.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
