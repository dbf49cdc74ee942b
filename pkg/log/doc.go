// Package log provides structured protocol logging for the PV server.
//
// This package defines the Logger interface and Event types for capturing
// what the server does with its process variables: events posted to
// subscribers, write request outcomes, interest toggles, PV lifecycle and
// errors the engine reports instead of returning (encoding failures while
// posting, completion token misuse). It is separate from operational logging
// (zap) - protocol capture provides a complete machine-readable trace for
// debugging and analysis.
//
// # Basic Usage
//
// Servers configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog or zap
//	srv := server.New(server.WithLogger(log.NewSlogAdapter(slog.Default())))
//	srv := server.New(server.WithLogger(log.NewZapAdapter(zapLogger)))
//
//	// For production: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/pvserver/server.plog")
//
//	// Both: use MultiLogger
//	srv := server.New(server.WithLogger(log.NewMultiLogger(
//	    log.NewZapAdapter(zapLogger),
//	    fl,
//	)))
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: interest changes, write outcomes, posted events (MonitorEvent)
//   - Wire: snapshot encoding failures
//   - Engine: protocol misuse and PV lifecycle
//
// # File Format
//
// Log files use CBOR encoding with .plog extension. The pvlog CLI tool
// provides viewing, filtering, and statistics.
package log
