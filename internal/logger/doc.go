// Package logger wraps zap for the operational logs of the binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing,
//   - leveled helpers (Info, InfoKV, WarnKV, ...).
//
// Protocol events are not written here; see pkg/log.
package logger
