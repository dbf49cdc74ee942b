package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/chanaccess/cas-go/pkg/log"
)

func writeDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pvs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(simDB), 0o644))
	return path
}

func readEvents(t *testing.T, path string) []log.Event {
	t.Helper()
	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	var events []log.Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, e)
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	plog := filepath.Join(t.TempDir(), "server.plog")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, &options{
		dbPath:      writeDB(t),
		logLevel:    "warn",
		protocolLog: plog,
		simTick:     time.Second,
	})
	require.NoError(t, err)

	var created, closed int
	for _, e := range readEvents(t, plog) {
		if e.Lifecycle == nil {
			continue
		}
		switch e.Lifecycle.Action {
		case log.LifecycleCreated:
			created++
		case log.LifecycleClosed:
			closed++
		}
	}
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, closed)
}

func TestRunSimulated(t *testing.T) {
	plog := filepath.Join(t.TempDir(), "server.plog")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := run(ctx, &options{
		dbPath:      writeDB(t),
		logLevel:    "error",
		protocolLog: plog,
		simulate:    true,
		simTick:     5 * time.Millisecond,
	})
	require.NoError(t, err)

	// Nobody registered interest, so producers post nothing.
	for _, e := range readEvents(t, plog) {
		assert.Nil(t, e.Monitor)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()

	err := run(ctx, &options{dbPath: writeDB(t), logLevel: "loud", simTick: time.Second})
	assert.ErrorContains(t, err, "invalid log level")

	err = run(ctx, &options{dbPath: filepath.Join(t.TempDir(), "none.yaml"), logLevel: "info", simTick: time.Second})
	assert.Error(t, err)

	err = run(ctx, &options{dbPath: writeDB(t), logLevel: "info", simTick: 0})
	assert.ErrorContains(t, err, "tick must be positive")
}

func TestOpenProtocolLog(t *testing.T) {
	l, closeLog, err := openProtocolLog("", zapcore.InfoLevel)
	require.NoError(t, err)
	assert.IsType(t, log.NoopLogger{}, l)
	closeLog()

	l, closeLog, err = openProtocolLog("", zapcore.DebugLevel)
	require.NoError(t, err)
	assert.IsType(t, &log.ZapAdapter{}, l)
	closeLog()

	path := filepath.Join(t.TempDir(), "p.plog")
	l, closeLog, err = openProtocolLog(path, zapcore.DebugLevel)
	require.NoError(t, err)
	assert.IsType(t, &log.MultiLogger{}, l)
	closeLog()

	_, _, err = openProtocolLog(filepath.Join(t.TempDir(), "missing", "p.plog"), zapcore.InfoLevel)
	assert.Error(t, err)
}

func TestSwitchWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := &switchWriter{w: &a}
	_, _ = w.Write([]byte("one"))
	w.Set(&b)
	_, _ = w.Write([]byte("two"))
	assert.Equal(t, "one", a.String())
	assert.Equal(t, "two", b.String())
}

func TestRootCommandRequiresDB(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(nil)
	assert.Error(t, cmd.Execute())
}
