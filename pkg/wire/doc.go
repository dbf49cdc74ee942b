// Package wire defines the transport-facing representation of process
// variable state.
//
// The engine keeps values, text and timestamps in typed Go form. Everything
// that crosses into the network layer goes through this package first:
//
//   - Text is converted to a declared byte encoding (UTF-8 by default, any
//     IANA-registered charset via golang.org/x/text, or RawBytes which only
//     accepts text that is already byte encoded).
//   - Timestamps become a (seconds, nanoseconds) pair relative to the Channel
//     Access epoch, 1990-01-01T00:00:00Z, see EpochOffset.
//   - Snapshots are framed as CBOR with integer keys for the transport.
//
// # Failure Behavior
//
// Conversions never coerce. Invalid byte sequences, unrepresentable
// characters and out-of-range fractional seconds all fail with an error
// wrapping ErrEncoding.
package wire
