package pv

import (
	"fmt"
	"math"
	"time"

	"github.com/chanaccess/cas-go/pkg/wire"
)

// Encode converts attributes to their wire form using the given text
// encoding. It fails with ErrEncoding on text that does not match the
// encoding or timestamps outside the wire range.
func Encode(a *Attributes, enc *wire.Encoding) (wire.Snapshot, error) {
	s := wire.Snapshot{Fields: uint16(a.Fields)}

	if a.Has(FieldValue) {
		v, err := encodeValue(a.Value, enc)
		if err != nil {
			return wire.Snapshot{}, fmt.Errorf("value: %w", err)
		}
		s.Value = v
	}
	if a.Has(FieldStatus) {
		s.Status = uint16(a.Status)
	}
	if a.Has(FieldSeverity) {
		s.Severity = uint16(a.Severity)
	}
	if a.Has(FieldTimestamp) {
		ts, err := wire.FromTime(a.Timestamp)
		if err != nil {
			return wire.Snapshot{}, fmt.Errorf("timestamp: %w", err)
		}
		s.Timestamp = ts
	}
	if a.Has(FieldUnit) {
		b, err := encodeText(a.Unit, enc)
		if err != nil {
			return wire.Snapshot{}, fmt.Errorf("unit: %w", err)
		}
		s.Unit = b
	}
	if a.Has(FieldPrecision) {
		s.Precision = a.Precision
	}
	if a.Has(FieldEnumStrings) {
		s.EnumStrings = make([][]byte, len(a.EnumStrings))
		for i, t := range a.EnumStrings {
			b, err := encodeText(t, enc)
			if err != nil {
				return wire.Snapshot{}, fmt.Errorf("enum_strings[%d]: %w", i, err)
			}
			s.EnumStrings[i] = b
		}
	}
	for _, f := range limitOrder {
		if a.Has(f) {
			l := a.limits(f)
			wl := &wire.Limits{Low: l.Low, High: l.High}
			switch f {
			case FieldDisplayLimits:
				s.DisplayLimits = wl
			case FieldControlLimits:
				s.ControlLimits = wl
			case FieldWarningLimits:
				s.WarningLimits = wl
			case FieldAlarmLimits:
				s.AlarmLimits = wl
			}
		}
	}
	return s, nil
}

// Decode is the inverse of Encode. Text fields are decoded with enc, or kept
// as raw bytes when enc is raw.
func Decode(s *wire.Snapshot, typ Type, enc *wire.Encoding) (Attributes, error) {
	if err := s.Validate(); err != nil {
		return Attributes{}, err
	}
	a := Attributes{Fields: Field(s.Fields)}

	if s.Has(wire.FieldValue) {
		v, err := decodeValue(s.Value, typ, enc)
		if err != nil {
			return Attributes{}, fmt.Errorf("value: %w", err)
		}
		a.Value = v
	}
	a.Status = Status(s.Status)
	if !a.Status.Valid() {
		return Attributes{}, fmt.Errorf("%w: unknown status %d", ErrEncoding, s.Status)
	}
	a.Severity = Severity(s.Severity)
	if !a.Severity.Valid() {
		return Attributes{}, fmt.Errorf("%w: unknown severity %d", ErrEncoding, s.Severity)
	}
	if s.Has(wire.FieldTimestamp) {
		t, err := s.Timestamp.Time()
		if err != nil {
			return Attributes{}, fmt.Errorf("timestamp: %w", err)
		}
		a.Timestamp = t
	}
	if s.Has(wire.FieldUnit) {
		t, err := decodeText(s.Unit, enc)
		if err != nil {
			return Attributes{}, fmt.Errorf("unit: %w", err)
		}
		a.Unit = t
	}
	a.Precision = s.Precision
	if s.Has(wire.FieldEnumStrings) {
		a.EnumStrings = make([]Text, len(s.EnumStrings))
		for i, b := range s.EnumStrings {
			t, err := decodeText(b, enc)
			if err != nil {
				return Attributes{}, fmt.Errorf("enum_strings[%d]: %w", i, err)
			}
			a.EnumStrings[i] = t
		}
	}
	pairs := []struct {
		f  Field
		wl *wire.Limits
	}{
		{FieldDisplayLimits, s.DisplayLimits},
		{FieldControlLimits, s.ControlLimits},
		{FieldWarningLimits, s.WarningLimits},
		{FieldAlarmLimits, s.AlarmLimits},
	}
	for _, pair := range pairs {
		if a.Has(pair.f) {
			*a.limits(pair.f) = Limits{Low: pair.wl.Low, High: pair.wl.High}
		}
	}
	return a, nil
}

func encodeValue(v Value, enc *wire.Encoding) (wire.Value, error) {
	switch v.kind {
	case KindInt:
		return wire.Value{Ints: v.Ints(), Array: v.array}, nil
	case KindFloat:
		return wire.Value{Floats: v.Floats(), Array: v.array}, nil
	case KindText:
		b, err := encodeText(v.text, enc)
		if err != nil {
			return wire.Value{}, err
		}
		return wire.Bytes(b), nil
	}
	return wire.Value{}, fmt.Errorf("%w: unset value", ErrEncoding)
}

func encodeText(t Text, enc *wire.Encoding) ([]byte, error) {
	if enc.IsRaw() {
		if !t.IsRaw() {
			return nil, fmt.Errorf("%w: text %q given where raw bytes are required", ErrEncoding, t.s)
		}
		return t.Bytes(), nil
	}
	if t.IsRaw() {
		return nil, fmt.Errorf("%w: raw bytes given where %s text is required", ErrEncoding, enc)
	}
	return enc.Encode(t.s)
}

func decodeText(b []byte, enc *wire.Encoding) (Text, error) {
	if enc.IsRaw() {
		return RawText(b), nil
	}
	s, err := enc.Decode(b)
	if err != nil {
		return Text{}, err
	}
	return TextOf(s), nil
}

// decodeValue converts a wire value to the element kind of typ. Floats sent
// to integral PVs are rounded; integers sent to floating PVs are widened.
func decodeValue(wv wire.Value, typ Type, enc *wire.Encoding) (Value, error) {
	if err := wv.Validate(); err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	array := wv.Array || wv.Len() > 1

	switch {
	case len(wv.Strings) > 0:
		if len(wv.Strings) != 1 {
			return Value{}, fmt.Errorf("%w: string arrays are not supported", ErrEncoding)
		}
		if typ != TypeString && typ != TypeEnum {
			return Value{}, fmt.Errorf("%w: string value for %s PV", ErrEncoding, typ)
		}
		t, err := decodeText(wv.Strings[0], enc)
		if err != nil {
			return Value{}, err
		}
		return TextValue(t), nil
	case typ == TypeString:
		return Value{}, fmt.Errorf("%w: numeric value for string PV", ErrEncoding)
	case len(wv.Floats) > 0 && typ.IsIntegral():
		ints := make([]int64, len(wv.Floats))
		for i, x := range wv.Floats {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return Value{}, fmt.Errorf("%w: %g is not an integer", ErrEncoding, x)
			}
			ints[i] = int64(math.Round(x))
		}
		return Value{kind: KindInt, array: array, ints: ints}, nil
	case len(wv.Floats) > 0:
		return Value{kind: KindFloat, array: array, floats: append([]float64(nil), wv.Floats...)}, nil
	case typ.IsFloating():
		f := make([]float64, len(wv.Ints))
		for i, x := range wv.Ints {
			f[i] = float64(x)
		}
		return Value{kind: KindFloat, array: array, floats: f}, nil
	default:
		return Value{kind: KindInt, array: array, ints: append([]int64(nil), wv.Ints...)}, nil
	}
}

// decodeWrite converts a remote write to engine form. A nil wire
// timestamp means the time of receipt.
func (p *PV) decodeWrite(wv wire.Value, wts *wire.TimeStamp) (Value, time.Time, error) {
	v, err := decodeValue(wv, p.typ, p.enc)
	if err != nil {
		return Value{}, time.Time{}, err
	}
	if wts == nil {
		return v, time.Now(), nil
	}
	ts, err := wts.Time()
	if err != nil {
		return Value{}, time.Time{}, err
	}
	return v, ts, nil
}
