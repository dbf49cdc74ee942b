package pv

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the element representation of a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindText
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Text is a text attribute in one of two forms: decoded text, for PVs with a
// text encoding, or raw bytes, for PVs that require pre-encoded input.
type Text struct {
	s   string
	raw bool
}

// TextOf returns text in decoded form.
func TextOf(s string) Text { return Text{s: s} }

// RawText returns text in raw byte form.
func RawText(b []byte) Text { return Text{s: string(b), raw: true} }

// IsRaw reports whether the text is in raw byte form.
func (t Text) IsRaw() bool { return t.raw }

// String returns the text. Raw bytes are returned as is.
func (t Text) String() string { return t.s }

// Bytes returns a copy of the raw bytes, or the text as UTF-8.
func (t Text) Bytes() []byte { return []byte(t.s) }

// Texts converts strings to decoded Text values.
func Texts(ss ...string) []Text {
	out := make([]Text, len(ss))
	for i, s := range ss {
		out[i] = TextOf(s)
	}
	return out
}

// Value is a PV value: a scalar or array of integers or floats, or a single
// text. Values are immutable; accessors return copies.
type Value struct {
	kind   Kind
	array  bool
	ints   []int64
	floats []float64
	text   Text
}

// Int returns a scalar integer value.
func Int(v int64) Value { return Value{kind: KindInt, ints: []int64{v}} }

// Float returns a scalar floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, floats: []float64{v}} }

// Ints returns an integer array value.
func Ints(v ...int64) Value { return Value{kind: KindInt, array: true, ints: slices.Clone(v)} }

// Floats returns a floating point array value.
func Floats(v ...float64) Value {
	return Value{kind: KindFloat, array: true, floats: slices.Clone(v)}
}

// StringValue returns a text value in decoded form.
func StringValue(s string) Value { return Value{kind: KindText, text: TextOf(s)} }

// BytesValue returns a text value in raw byte form.
func BytesValue(b []byte) Value { return Value{kind: KindText, text: RawText(b)} }

// TextValue returns a text value.
func TextValue(t Text) Value { return Value{kind: KindText, text: t} }

// Kind returns the element kind.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds anything.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// IsArray reports whether v is an array.
func (v Value) IsArray() bool { return v.array }

// Len returns the number of elements.
func (v Value) Len() int {
	switch v.kind {
	case KindInt:
		return len(v.ints)
	case KindFloat:
		return len(v.floats)
	case KindText:
		return 1
	default:
		return 0
	}
}

// Int returns the first integer element.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt || len(v.ints) == 0 {
		return 0, false
	}
	return v.ints[0], true
}

// Float returns the first element as a float. Integers are converted.
func (v Value) Float() (float64, bool) {
	switch {
	case v.kind == KindFloat && len(v.floats) > 0:
		return v.floats[0], true
	case v.kind == KindInt && len(v.ints) > 0:
		return float64(v.ints[0]), true
	}
	return 0, false
}

// Ints returns a copy of the integer elements.
func (v Value) Ints() []int64 { return slices.Clone(v.ints) }

// Floats returns a copy of the float elements.
func (v Value) Floats() []float64 { return slices.Clone(v.floats) }

// Text returns the text of a text value.
func (v Value) Text() (Text, bool) { return v.text, v.kind == KindText }

// float64s returns the numeric elements as floats. The result may alias v.
func (v Value) float64s() []float64 {
	if v.kind == KindFloat {
		return v.floats
	}
	out := make([]float64, len(v.ints))
	for i, x := range v.ints {
		out[i] = float64(x)
	}
	return out
}

// clone returns a deep copy.
func (v Value) clone() Value {
	v.ints = slices.Clone(v.ints)
	v.floats = slices.Clone(v.floats)
	return v
}

// String renders the value for display.
func (v Value) String() string {
	var elems []string
	switch v.kind {
	case KindInt:
		for _, x := range v.ints {
			elems = append(elems, strconv.FormatInt(x, 10))
		}
	case KindFloat:
		for _, x := range v.floats {
			elems = append(elems, strconv.FormatFloat(x, 'g', -1, 64))
		}
	case KindText:
		if v.text.raw {
			return fmt.Sprintf("%q", v.text.s)
		}
		return v.text.s
	default:
		return "<invalid>"
	}
	if !v.array {
		return elems[0]
	}
	return "[" + strings.Join(elems, " ") + "]"
}

// equalExact compares values element by element without tolerance.
func (v Value) equalExact(o Value) bool {
	if v.kind != o.kind || v.array != o.array {
		return false
	}
	switch v.kind {
	case KindInt:
		return slices.Equal(v.ints, o.ints)
	case KindFloat:
		return slices.EqualFunc(v.floats, o.floats, func(a, b float64) bool {
			return a == b || (math.IsNaN(a) && math.IsNaN(b))
		})
	case KindText:
		return v.text == o.text
	}
	return true
}

// isClose reports whether a and b are equal within a relative and an
// absolute tolerance. NaN is close to NaN.
func isClose(a, b, relTol, absTol float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	diff := math.Abs(a - b)
	return diff <= relTol*math.Abs(b) || diff <= relTol*math.Abs(a) || diff <= absTol
}
