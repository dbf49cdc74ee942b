package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slogJSON logs event through a JSON handler at level and returns the
// decoded record, or nil when nothing was written.
func slogJSON(t *testing.T, level slog.Level, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	NewSlogAdapter(slog.New(handler)).Log(event)

	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func group(t *testing.T, entry map[string]any, name string) map[string]any {
	t.Helper()
	g, ok := entry[name].(map[string]any)
	require.Truef(t, ok, "missing %q group in %v", name, entry)
	return g
}

func TestSlogAdapterMonitorEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	entry := slogJSON(t, slog.LevelDebug, Event{
		Timestamp: at,
		Direction: DirectionOut,
		Layer:     LayerTransport,
		Category:  CategoryEvent,
		PV:        "TEMP:1",
		Monitor:   NewMonitorEvent(7, make([]byte, 256)),
	})
	require.NotNil(t, entry)

	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "protocol", entry["msg"])
	assert.Equal(t, "2026-03-01T08:30:00Z", entry["time"])
	assert.Equal(t, "TEMP:1", entry["pv"])
	assert.Equal(t, "OUT", entry["direction"])
	assert.NotContains(t, entry, "conn_id")

	m := group(t, entry, "monitor")
	assert.Equal(t, float64(7), m["mask"])
	assert.Equal(t, float64(256), m["size"])
	assert.Equal(t, false, m["truncated"])
}

func TestSlogAdapterWriteEvent(t *testing.T) {
	entry := slogJSON(t, slog.LevelDebug, Event{
		Timestamp:    time.Now(),
		ConnectionID: "peer-9",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryWrite,
		PV:           "SETPOINT",
		Write:        &WriteEvent{RequestID: "req-1", Outcome: WriteRejected, Reason: "too high"},
	})
	require.NotNil(t, entry)

	assert.Equal(t, "peer-9", entry["conn_id"])
	w := group(t, entry, "write")
	assert.Equal(t, "req-1", w["request_id"])
	assert.Equal(t, "REJECTED", w["outcome"])
	assert.Equal(t, "too high", w["reason"])
}

func TestSlogAdapterLifecycleEvent(t *testing.T) {
	entry := slogJSON(t, slog.LevelDebug, Event{
		Timestamp: time.Now(),
		Direction: DirectionNone,
		Layer:     LayerEngine,
		Category:  CategoryLifecycle,
		PV:        "WAVE",
		Lifecycle: &LifecycleEvent{Action: LifecycleCreated, Type: "double", Count: 16},
	})
	require.NotNil(t, entry)

	l := group(t, entry, "lifecycle")
	assert.Equal(t, "CREATED", l["action"])
	assert.Equal(t, "double", l["type"])
	assert.Equal(t, float64(16), l["count"])
	assert.NotContains(t, l, "target")
}

func TestSlogAdapterErrorsAtWarn(t *testing.T) {
	event := Event{
		Timestamp: time.Now(),
		Direction: DirectionNone,
		Layer:     LayerEngine,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerWire,
			Kind:    ErrorKindEncoding,
			Message: "encoding error",
			Context: "post event",
		},
	}

	entry := slogJSON(t, slog.LevelInfo, event)
	require.NotNil(t, entry, "error events pass an info threshold")
	assert.Equal(t, "WARN", entry["level"])

	e := group(t, entry, "error")
	assert.Equal(t, "WIRE", e["layer"])
	assert.Equal(t, "ENCODING", e["kind"])
	assert.Equal(t, "post event", e["context"])
}

func TestSlogAdapterSkipsBelowLevel(t *testing.T) {
	entry := slogJSON(t, slog.LevelInfo, Event{
		Timestamp: time.Now(),
		Category:  CategoryInterest,
		Interest:  &InterestEvent{Enabled: true},
	})
	assert.Nil(t, entry)
}
