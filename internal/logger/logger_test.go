package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(zap.NewAtomicLevelAt(zapcore.DebugLevel), zapcore.AddSync(&buf))

	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "pvserver")
	ctx = WithKV(ctx, "pv", "TEMP:1")
	InfoKV(ctx, "value changed", "events", "VALUE|ARCHIVE")

	out := buf.String()
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "pvserver")
	require.Contains(t, out, "value changed")
	require.Contains(t, out, `"pv": "TEMP:1"`)
	require.Contains(t, out, `"events": "VALUE|ARCHIVE"`)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

