package pv

import (
	"errors"

	"github.com/chanaccess/cas-go/pkg/wire"
)

// Engine errors.
var (
	// ErrConfiguration indicates a malformed PV configuration or initial
	// attribute set. It fails construction only.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidAttribute indicates an update the store cannot accept.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrWriteRejected indicates a remote write that was refused, either by
	// the PV being read-only or by its write handler.
	ErrWriteRejected = errors.New("write rejected")

	// ErrProtocolMisuse indicates a completion token resolved twice, a
	// write context reused, or a PV released with writes still deferred.
	ErrProtocolMisuse = errors.New("protocol misuse")

	// ErrClosed indicates an operation on a released PV.
	ErrClosed = errors.New("pv closed")

	// ErrEncoding is the codec error; see wire.ErrEncoding.
	ErrEncoding = wire.ErrEncoding
)
