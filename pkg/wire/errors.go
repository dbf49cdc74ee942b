package wire

import "errors"

// Codec errors.
var (
	// ErrEncoding indicates a text/byte mismatch, an invalid byte sequence
	// or an out-of-range timestamp.
	ErrEncoding = errors.New("encoding error")

	// ErrInvalidSnapshot indicates a structurally invalid snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrUnknownEncoding indicates an encoding name that is not registered.
	ErrUnknownEncoding = errors.New("unknown encoding")
)
