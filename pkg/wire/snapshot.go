package wire

import "fmt"

// Field presence bits carried in Snapshot.Fields. The bit layout matches
// pv.Field.
const (
	FieldValue uint16 = 1 << iota
	FieldStatus
	FieldSeverity
	FieldTimestamp
	FieldUnit
	FieldPrecision
	FieldEnumStrings
	FieldDisplayLimits
	FieldControlLimits
	FieldWarningLimits
	FieldAlarmLimits
)

// Value is the wire form of a process variable value. Exactly one of Ints,
// Floats or Strings is populated.
type Value struct {
	Ints    []int64   `cbor:"1,keyasint,omitempty"`
	Floats  []float64 `cbor:"2,keyasint,omitempty"`
	Strings [][]byte  `cbor:"3,keyasint,omitempty"`

	// Array distinguishes a one-element array from a scalar.
	Array bool `cbor:"4,keyasint,omitempty"`
}

// Int returns a scalar integer wire value.
func Int(v int64) Value { return Value{Ints: []int64{v}} }

// Float returns a scalar floating point wire value.
func Float(v float64) Value { return Value{Floats: []float64{v}} }

// Bytes returns a scalar string wire value.
func Bytes(b []byte) Value { return Value{Strings: [][]byte{b}} }

// Ints returns an integer array wire value.
func Ints(v ...int64) Value { return Value{Ints: v, Array: true} }

// Floats returns a floating point array wire value.
func Floats(v ...float64) Value { return Value{Floats: v, Array: true} }

// Len returns the number of elements.
func (v Value) Len() int {
	switch {
	case v.Ints != nil:
		return len(v.Ints)
	case v.Floats != nil:
		return len(v.Floats)
	default:
		return len(v.Strings)
	}
}

// Validate checks that exactly one element slice is set and that scalars
// hold a single element.
func (v Value) Validate() error {
	set := 0
	if len(v.Ints) > 0 {
		set++
	}
	if len(v.Floats) > 0 {
		set++
	}
	if len(v.Strings) > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: value must carry exactly one element kind", ErrInvalidSnapshot)
	}
	if !v.Array && v.Len() != 1 {
		return fmt.Errorf("%w: scalar value with %d elements", ErrInvalidSnapshot, v.Len())
	}
	return nil
}

// Limits is the wire form of a (low, high) limit pair.
type Limits struct {
	Low  float64 `cbor:"1,keyasint"`
	High float64 `cbor:"2,keyasint"`
}

// Snapshot is the wire form of a process variable's attributes, as returned
// by a read or carried by a posted event.
type Snapshot struct {
	// Fields is the presence mask (FieldValue, FieldStatus, ...).
	Fields uint16 `cbor:"0,keyasint"`

	Value     Value     `cbor:"1,keyasint,omitempty"`
	Status    uint16    `cbor:"2,keyasint,omitempty"`
	Severity  uint16    `cbor:"3,keyasint,omitempty"`
	Timestamp TimeStamp `cbor:"4,keyasint"`

	Unit        []byte   `cbor:"5,keyasint,omitempty"`
	Precision   int16    `cbor:"6,keyasint,omitempty"`
	EnumStrings [][]byte `cbor:"7,keyasint,omitempty"`

	DisplayLimits *Limits `cbor:"8,keyasint,omitempty"`
	ControlLimits *Limits `cbor:"9,keyasint,omitempty"`
	WarningLimits *Limits `cbor:"10,keyasint,omitempty"`
	AlarmLimits   *Limits `cbor:"11,keyasint,omitempty"`
}

// Has reports whether a field bit is present.
func (s *Snapshot) Has(field uint16) bool {
	return s.Fields&field != 0
}

// Validate checks the snapshot for structural consistency.
func (s *Snapshot) Validate() error {
	if s.Has(FieldValue) {
		if err := s.Value.Validate(); err != nil {
			return err
		}
	}
	if s.Has(FieldTimestamp) {
		if err := s.Timestamp.Validate(); err != nil {
			return err
		}
	}
	limits := []struct {
		bit uint16
		l   *Limits
	}{
		{FieldDisplayLimits, s.DisplayLimits},
		{FieldControlLimits, s.ControlLimits},
		{FieldWarningLimits, s.WarningLimits},
		{FieldAlarmLimits, s.AlarmLimits},
	}
	for _, lim := range limits {
		if s.Has(lim.bit) && lim.l == nil {
			return fmt.Errorf("%w: limit field 0x%04x flagged but missing", ErrInvalidSnapshot, lim.bit)
		}
	}
	return nil
}
