package pv

import (
	"fmt"
	"math"
	"slices"

	"github.com/chanaccess/cas-go/pkg/wire"
)

// change is the outcome of applying an Update to a copy of the store.
type change struct {
	attrs  Attributes
	count  int
	events Events
}

// limitOrder is the order in which limit edits are applied.
var limitOrder = []Field{FieldControlLimits, FieldDisplayLimits, FieldAlarmLimits, FieldWarningLimits}

// compute applies u to a copy of cur and classifies the resulting events.
// cur is not modified; the caller commits the result only if err is nil.
//
// Property fields are applied first, then status and severity, then the
// value, so that a value change can override an explicit alarm state and a
// limit edit re-evaluates an unchanged value.
func (p *PV) compute(cur Attributes, count int, u Update) (change, error) {
	in := u.a
	if extra := in.Fields &^ p.typ.Fields(); extra != 0 {
		return change{}, fmt.Errorf("%w: %s not applicable to %s PV", ErrInvalidAttribute, extra, p.typ)
	}
	if err := p.checkTexts(&in); err != nil {
		return change{}, err
	}

	next := cur.clone()
	var ev Events

	if in.Has(FieldPrecision) && in.Precision != next.Precision {
		next.Precision = in.Precision
		ev |= EventProperty
	}
	if in.Has(FieldEnumStrings) && !slices.Equal(in.EnumStrings, next.EnumStrings) {
		next.EnumStrings = slices.Clone(in.EnumStrings)
		ev |= EventProperty
	}
	if in.Has(FieldUnit) && in.Unit != next.Unit {
		next.Unit = in.Unit
		ev |= EventProperty
	}
	limitsChanged := false
	for _, f := range limitOrder {
		if in.Has(f) && *in.limits(f) != *next.limits(f) {
			*next.limits(f) = *in.limits(f)
			ev |= EventProperty
			limitsChanged = true
		}
	}

	if in.Has(FieldStatus) || in.Has(FieldSeverity) {
		status, severity := next.Status, next.Severity
		if in.Has(FieldStatus) {
			status = in.Status
		}
		if in.Has(FieldSeverity) {
			severity = in.Severity
		}
		if !status.Valid() || !severity.Valid() {
			return change{}, fmt.Errorf("%w: invalid alarm pair %s/%s", ErrInvalidAttribute, status, severity)
		}
		ev |= setAlarm(&next, status, severity)
	}

	switch {
	case in.Has(FieldValue):
		v, err := p.normalize(in.Value, &next)
		if err != nil {
			return change{}, err
		}
		if v, err = p.constrain(v, &next); err != nil {
			return change{}, err
		}
		ev |= p.updateValue(&next, v)
	case limitsChanged:
		v, err := p.constrain(next.Value, &next)
		if err != nil {
			return change{}, err
		}
		ev |= p.updateValue(&next, v)
	}

	if in.Has(FieldTimestamp) {
		if _, err := wire.FromTime(in.Timestamp); err != nil {
			return change{}, err
		}
		next.Timestamp = in.Timestamp
	}

	newCount := count
	if p.resizable {
		newCount = next.Value.Len()
	}
	if p.typ == TypeEnum && len(next.EnumStrings) < newCount {
		return change{}, fmt.Errorf("%w: enum_strings has %d entries, need at least %d",
			ErrInvalidAttribute, len(next.EnumStrings), newCount)
	}
	return change{attrs: next, count: newCount, events: ev}, nil
}

// setAlarm stores a status/severity pair and reports ALARM if either changed.
func setAlarm(a *Attributes, status Status, severity Severity) Events {
	if a.Status == status && a.Severity == severity {
		return EventNone
	}
	a.Status, a.Severity = status, severity
	return EventAlarm
}

// normalize converts v to the PV's element kind and shape.
func (p *PV) normalize(v Value, a *Attributes) (Value, error) {
	if !v.IsValid() {
		return Value{}, fmt.Errorf("%w: value is unset", ErrInvalidAttribute)
	}

	if p.typ == TypeString {
		if v.kind != KindText {
			return Value{}, fmt.Errorf("%w: %s value for string PV", ErrInvalidAttribute, v.kind)
		}
		return v, nil
	}

	switch v.kind {
	case KindText:
		if p.typ != TypeEnum {
			return Value{}, fmt.Errorf("%w: text value for %s PV", ErrInvalidAttribute, p.typ)
		}
		idx := slices.Index(a.EnumStrings, v.text)
		if idx < 0 {
			return Value{}, fmt.Errorf("%w: %q is not an enum string", ErrInvalidAttribute, v.text.s)
		}
		v = Int(int64(idx))
	case KindFloat:
		if p.typ.IsIntegral() {
			ints := make([]int64, len(v.floats))
			for i, x := range v.floats {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return Value{}, fmt.Errorf("%w: %g is not an integer", ErrInvalidAttribute, x)
				}
				ints[i] = int64(math.Round(x))
			}
			v = Value{kind: KindInt, array: v.array, ints: ints}
		}
	case KindInt:
		if p.typ.IsFloating() {
			v = Value{kind: KindFloat, array: v.array, floats: v.float64s()}
		}
	}

	n := v.Len()
	if n == 0 {
		return Value{}, fmt.Errorf("%w: empty value", ErrInvalidAttribute)
	}
	if !p.resizable {
		if n != 1 {
			return Value{}, fmt.Errorf("%w: scalar PV cannot hold %d elements", ErrInvalidAttribute, n)
		}
		v.array = false
	} else {
		v.array = true
	}

	if p.typ == TypeEnum {
		for _, x := range v.ints {
			if x < 0 || x >= int64(len(a.EnumStrings)) {
				return Value{}, fmt.Errorf("%w: enum index %d outside %d strings", ErrInvalidAttribute, x, len(a.EnumStrings))
			}
		}
	}
	return v, nil
}

// constrain clamps v to the control limits in a and checks that every
// element fits the element type.
func (p *PV) constrain(v Value, a *Attributes) (Value, error) {
	if !p.typ.IsNumeric() {
		return v, nil
	}
	v = Constrain(v, a.ControlLimits)
	switch {
	case p.typ.IsIntegral():
		lo, hi := p.typ.intRange()
		for _, x := range v.ints {
			if x < lo || x > hi {
				return Value{}, fmt.Errorf("%w: %d out of range for %s", ErrInvalidAttribute, x, p.typ)
			}
		}
	case p.typ == TypeFloat:
		v = v.clone()
		for i, x := range v.floats {
			v.floats[i] = float64(float32(x))
		}
	}
	return v, nil
}

// updateValue stores v, derives the alarm state from the limits and returns
// the events raised.
func (p *PV) updateValue(a *Attributes, v Value) Events {
	status, severity := Classify(v, a.WarningLimits, a.AlarmLimits)

	var ev Events
	if !p.sameValue(a.Value, v) {
		ev |= p.valueEvents(a.Value, v)
		a.Value = v
	}
	return ev | setAlarm(a, status, severity)
}

func (p *PV) sameValue(old, v Value) bool {
	if old.Len() != v.Len() {
		return false
	}
	if p.typ.IsFloating() && old.kind == KindFloat && v.kind == KindFloat {
		for i := range v.floats {
			if !isClose(old.floats[i], v.floats[i], p.relTol, p.absTol) {
				return false
			}
		}
		return true
	}
	return old.equalExact(v)
}

// valueEvents classifies a value change. Text and enum changes and resizes
// always raise VALUE and ARCHIVE; numeric changes are filtered by the
// deadbands, inclusive of the threshold.
func (p *PV) valueEvents(old, v Value) Events {
	if p.typ == TypeString || p.typ == TypeEnum || old.Len() != v.Len() {
		return EventValue | EventArchive
	}
	diff := maxDiff(old.float64s(), v.float64s())
	var ev Events
	if diff >= p.valueDeadband {
		ev |= EventValue
	}
	if diff >= p.archiveDeadband {
		ev |= EventArchive
	}
	return ev
}

// maxDiff returns the largest element-wise absolute difference. A change
// to or from NaN counts as infinite.
func maxDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		if a[i] == b[i] || (math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			continue
		}
		d := math.Abs(a[i] - b[i])
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		m = math.Max(m, d)
	}
	return m
}

// checkTexts validates the text fields of an update against the PV's text
// encoding.
func (p *PV) checkTexts(in *Attributes) error {
	if in.Has(FieldUnit) {
		if err := p.checkText(in.Unit); err != nil {
			return fmt.Errorf("unit: %w", err)
		}
	}
	if in.Has(FieldEnumStrings) {
		for i, t := range in.EnumStrings {
			if err := p.checkText(t); err != nil {
				return fmt.Errorf("enum_strings[%d]: %w", i, err)
			}
		}
	}
	if in.Has(FieldValue) && in.Value.kind == KindText {
		if err := p.checkText(in.Value.text); err != nil {
			return fmt.Errorf("value: %w", err)
		}
	}
	return nil
}

// checkText verifies t has the form the encoding requires and can be
// represented in it.
func (p *PV) checkText(t Text) error {
	if p.enc.IsRaw() {
		if !t.IsRaw() {
			return fmt.Errorf("%w: text %q given where raw bytes are required", ErrEncoding, t.s)
		}
		return nil
	}
	if t.IsRaw() {
		return fmt.Errorf("%w: raw bytes given where %s text is required", ErrEncoding, p.enc)
	}
	_, err := p.enc.Encode(t.s)
	return err
}
