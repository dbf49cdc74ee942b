package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func monitorEvent(t *testing.T, ts time.Time, name string, events pv.Events, v wire.Value) log.Event {
	t.Helper()
	raw, err := wire.MarshalSnapshot(&wire.Snapshot{
		Fields:   wire.FieldValue | wire.FieldStatus | wire.FieldSeverity,
		Value:    v,
		Status:   uint16(pv.StatusHigh),
		Severity: uint16(pv.SeverityMinor),
	})
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	return log.Event{
		Timestamp: ts,
		Direction: log.DirectionOut,
		Layer:     log.LayerTransport,
		Category:  log.CategoryEvent,
		PV:        name,
		Monitor:   log.NewMonitorEvent(uint8(events), raw),
	}
}

func sampleEvents(t *testing.T) []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp: ts, Direction: log.DirectionNone, Layer: log.LayerEngine, Category: log.CategoryLifecycle,
			PV: "TEMP", Lifecycle: &log.LifecycleEvent{Action: log.LifecycleCreated, Type: "double", Count: 1},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: "abc12345-6789", Direction: log.DirectionIn,
			Layer: log.LayerTransport, Category: log.CategoryInterest,
			PV: "TEMP", Interest: &log.InterestEvent{Enabled: true},
		},
		monitorEvent(t, ts.Add(2*time.Second), "TEMP", pv.EventValue|pv.EventAlarm, wire.Float(31.5)),
		{
			Timestamp: ts.Add(3 * time.Second), ConnectionID: "abc12345-6789", Direction: log.DirectionIn,
			Layer: log.LayerTransport, Category: log.CategoryWrite,
			PV: "SP", Write: &log.WriteEvent{RequestID: "req-1", Outcome: log.WriteRejected, Reason: "read-only"},
		},
		{
			Timestamp: ts.Add(4 * time.Second), Direction: log.DirectionNone, Layer: log.LayerEngine, Category: log.CategoryError,
			PV: "ASYNC", Error: &log.ErrorEventData{Layer: log.LayerEngine, Kind: log.ErrorKindProtocolMisuse, Message: "token dropped", Context: "collected"},
		},
	}
}

func TestFormatMonitorEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	var buf bytes.Buffer
	formatEvent(&buf, monitorEvent(t, ts, "TEMP", pv.EventValue|pv.EventAlarm, wire.Floats(1, 2.5)))
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:-]",
		"OUT",
		"EVENT TEMP",
		"Events: VALUE|ALARM",
		"Value: [1 2.5]",
		"Alarm: HIGH/MINOR",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatTruncatedMonitor(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryEvent,
		Monitor:   log.NewMonitorEvent(1, make([]byte, log.MaxSnapshotLog+1)),
	})
	if !strings.Contains(buf.String(), "(truncated)") {
		t.Errorf("expected truncation marker, got: %s", buf.String())
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents(t))

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{PV: "TEMP"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()
	if strings.Count(output, " TEMP\n") != 3 {
		t.Errorf("expected 3 TEMP events, got:\n%s", output)
	}
	if strings.Contains(output, " SP\n") {
		t.Error("filtered PV appears in output")
	}
	if !strings.Contains(output, "Publishing: true") {
		t.Error("interest details missing")
	}
}

func TestParseFlags(t *testing.T) {
	if _, err := ParseLayerFlag("ENGINE"); err != nil {
		t.Errorf("ParseLayerFlag: %v", err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("none"); err != nil || d != log.DirectionNone {
		t.Errorf("ParseDirectionFlag(none) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("Write"); err != nil || c != log.CategoryWrite {
		t.Errorf("ParseCategoryFlag(Write) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("message"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents(t))
	out := filepath.Join(t.TempDir(), "out.plog")

	n, err := RunFilter(path, out, FilterOptions{Category: "error"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("filtered %d events, want 1", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()
	event, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if event.PV != "ASYNC" || event.Error == nil {
		t.Errorf("unexpected event %+v", event)
	}

	if _, err := RunFilter(path, out, FilterOptions{TimeStart: "yesterday"}); err == nil {
		t.Error("expected error for bad time-start")
	}
}

func TestStats(t *testing.T) {
	events := append(sampleEvents(t),
		monitorEvent(t, time.Date(2026, 1, 28, 10, 16, 0, 0, time.UTC), "TEMP", pv.EventValue|pv.EventArchive, wire.Float(30)))
	path := createTestLogFile(t, events)

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}
	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	temp := stats.PVs["TEMP"]
	if temp == nil || temp.Posted != 2 {
		t.Fatalf("TEMP stats = %+v", temp)
	}
	if temp.ByEvent[pv.EventValue] != 2 || temp.ByEvent[pv.EventAlarm] != 1 || temp.ByEvent[pv.EventArchive] != 1 {
		t.Errorf("ByEvent = %v", temp.ByEvent)
	}
	if stats.PVs["SP"].Writes[log.WriteRejected] != 1 {
		t.Errorf("SP writes = %v", stats.PVs["SP"].Writes)
	}
	if stats.ErrorsByKind[log.ErrorKindProtocolMisuse] != 1 {
		t.Errorf("ErrorsByKind = %v", stats.ErrorsByKind)
	}

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Total Events: 6", "ENGINE:", "TEMP: 2 posted, VALUE=2", "writes: accepted=0 rejected=1", "PROTOCOL_MISUSE:"} {
		if !strings.Contains(output, want) {
			t.Errorf("stats output missing %q:\n%s", want, output)
		}
	}
}

func TestExport(t *testing.T) {
	path := createTestLogFile(t, sampleEvents(t))
	dir := t.TempDir()

	jsonl := filepath.Join(dir, "out.jsonl")
	n, err := RunExport(path, ExportOptions{Format: "jsonl", Output: jsonl}, nil)
	if err != nil {
		t.Fatalf("RunExport jsonl failed: %v", err)
	}
	if n != 5 {
		t.Errorf("exported %d events, want 5", n)
	}
	data, err := os.ReadFile(jsonl)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d JSON lines, want 5", len(lines))
	}
	var monitor map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &monitor); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	for key, want := range map[string]string{
		"pv":       "TEMP",
		"category": "EVENT",
		"detail":   "VALUE|ALARM",
		"value":    "31.5",
		"alarm":    "HIGH/MINOR",
	} {
		if monitor[key] != want {
			t.Errorf("%s = %v, want %q", key, monitor[key], want)
		}
	}
	if _, ok := monitor["connection_id"]; ok {
		t.Error("connection_id should be omitted when empty")
	}

	var buf bytes.Buffer
	if _, err := RunExport(path, ExportOptions{Format: "csv"}, &buf); err != nil {
		t.Fatalf("RunExport csv failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "timestamp,connection_id,direction,layer,category,pv,detail,value,alarm,reason\n") {
		t.Errorf("unexpected CSV header: %s", out)
	}
	if !strings.Contains(out, "REJECTED,,,read-only") {
		t.Errorf("CSV missing write outcome and reason:\n%s", out)
	}

	if _, err := RunExport(path, ExportOptions{Format: "xml"}, &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExportFiltered(t *testing.T) {
	path := createTestLogFile(t, sampleEvents(t))

	var buf bytes.Buffer
	n, err := RunExport(path, ExportOptions{
		Format: "jsonl",
		Filter: FilterOptions{ConnID: "abc12345-6789"},
	}, &buf)
	if err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d events, want 2", n)
	}
	if strings.Contains(buf.String(), "ASYNC") {
		t.Errorf("unfiltered event exported:\n%s", buf.String())
	}

	if _, err := RunExport(path, ExportOptions{Format: "csv", Filter: FilterOptions{Layer: "session"}}, &buf); err == nil {
		t.Error("expected error for bad layer flag")
	}
}

func TestStatsGolden(t *testing.T) {
	path := createTestLogFile(t, sampleEvents(t))

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "stats", buf.Bytes())
}

func TestRunViewByEventsAndPattern(t *testing.T) {
	events := sampleEvents(t)
	ts := events[0].Timestamp
	events = append(events,
		monitorEvent(t, ts.Add(5*time.Second), "TEMP:2", pv.EventProperty, wire.Float(1)),
		monitorEvent(t, ts.Add(6*time.Second), "HUMID", pv.EventValue, wire.Float(40)),
	)
	path := createTestLogFile(t, events)

	filter, err := FilterOptions{PV: "TEMP*", Events: "alarm|property"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, " TEMP\n") || !strings.Contains(output, " TEMP:2\n") {
		t.Errorf("expected both TEMP monitor events, got:\n%s", output)
	}
	if strings.Contains(output, "HUMID") || strings.Contains(output, "Publishing") {
		t.Errorf("unexpected events in output:\n%s", output)
	}

	if _, err := (FilterOptions{PV: "TEMP["}).Build(); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestParseEventsFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    pv.Events
		wantErr bool
	}{
		{"value", pv.EventValue, false},
		{"Value|ALARM", pv.EventValue | pv.EventAlarm, false},
		{"archive, property", pv.EventArchive | pv.EventProperty, false},
		{"value|archive|alarm|property", pv.EventAll, false},
		{"|", 0, true},
		{"change", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseEventsFlag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEventsFlag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEventsFlag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
