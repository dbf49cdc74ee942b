package wire

import (
	"fmt"
	"math"
	"time"
)

// EpochOffset is the number of seconds between the Unix epoch and the
// Channel Access epoch (1990-01-01T00:00:00Z).
const EpochOffset int64 = 631152000

// MaxNanoseconds is the largest valid fractional-second value.
const MaxNanoseconds = 999_999_999

// Epoch is the Channel Access epoch as a time.Time.
var Epoch = time.Unix(EpochOffset, 0).UTC()

// TimeStamp is a wire timestamp: whole seconds since Epoch plus nanoseconds.
type TimeStamp struct {
	Seconds     uint32 `cbor:"1,keyasint"`
	Nanoseconds uint32 `cbor:"2,keyasint"`
}

// IsZero reports whether ts is the epoch itself.
func (ts TimeStamp) IsZero() bool {
	return ts.Seconds == 0 && ts.Nanoseconds == 0
}

// Validate checks that the fractional part is within range.
func (ts TimeStamp) Validate() error {
	if ts.Nanoseconds > MaxNanoseconds {
		return fmt.Errorf("%w: nanoseconds %d out of range", ErrEncoding, ts.Nanoseconds)
	}
	return nil
}

// Time converts the wire timestamp back to a UTC calendar time.
func (ts TimeStamp) Time() (time.Time, error) {
	if err := ts.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Unix(EpochOffset+int64(ts.Seconds), int64(ts.Nanoseconds)).UTC(), nil
}

// String renders the timestamp as RFC 3339 with nanoseconds, or the raw
// pair when it is invalid.
func (ts TimeStamp) String() string {
	t, err := ts.Time()
	if err != nil {
		return fmt.Sprintf("%d.%d(invalid)", ts.Seconds, ts.Nanoseconds)
	}
	return t.Format(time.RFC3339Nano)
}

// FromTime converts a calendar time to a wire timestamp.
// Instants before Epoch or past the 32-bit seconds range fail.
func FromTime(t time.Time) (TimeStamp, error) {
	sec := t.Unix() - EpochOffset
	if sec < 0 || sec > math.MaxUint32 {
		return TimeStamp{}, fmt.Errorf("%w: %s outside timestamp range", ErrEncoding, t.UTC().Format(time.RFC3339))
	}
	return TimeStamp{
		Seconds:     uint32(sec),
		Nanoseconds: uint32(t.Nanosecond()),
	}, nil
}
