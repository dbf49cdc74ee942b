package pv

import "math"

// Constrain clamps every numeric element of v to the control limits. Text
// values and inactive limits leave v unchanged. Integer elements are clamped
// to the integers inside the pair. NaN elements are left as they are.
func Constrain(v Value, control Limits) Value {
	if !control.Active() {
		return v
	}
	switch v.kind {
	case KindInt:
		lo, hi := math.Ceil(control.Low), math.Floor(control.High)
		if lo > hi {
			// No integer inside the pair.
			return v
		}
		out := v.clone()
		for i, x := range out.ints {
			switch f := float64(x); {
			case f < lo:
				out.ints[i] = int64(lo)
			case f > hi:
				out.ints[i] = int64(hi)
			}
		}
		return out
	case KindFloat:
		out := v.clone()
		for i, x := range out.floats {
			switch {
			case x < control.Low:
				out.floats[i] = control.Low
			case x > control.High:
				out.floats[i] = control.High
			}
		}
		return out
	}
	return v
}

// Classify derives the alarm status and severity of v from the warning and
// alarm limits. Arrays are judged by their lowest and highest element. When
// an array violates both bounds of a pair, the violation farther from its
// bound is reported. A violated alarm pair (MAJOR) always wins over a
// violated warning pair (MINOR). Text values never alarm.
func Classify(v Value, warning, alarm Limits) (Status, Severity) {
	if v.kind != KindInt && v.kind != KindFloat {
		return StatusNoAlarm, SeverityNoAlarm
	}
	lowest, highest, ok := extremes(v.float64s())
	if !ok {
		return StatusNoAlarm, SeverityNoAlarm
	}

	status, severity := StatusNoAlarm, SeverityNoAlarm
	if s, hit := violation(lowest, highest, warning, StatusLow, StatusHigh); hit {
		status, severity = s, SeverityMinor
	}
	if s, hit := violation(lowest, highest, alarm, StatusLoLo, StatusHiHi); hit {
		status, severity = s, SeverityMajor
	}
	return status, severity
}

// violation checks one limit pair against the extremes of a value.
func violation(lowest, highest float64, l Limits, low, high Status) (Status, bool) {
	if !l.Active() {
		return StatusNoAlarm, false
	}
	below := lowest < l.Low
	above := highest > l.High
	switch {
	case below && above:
		if math.Abs(lowest-l.Low) > math.Abs(highest-l.High) {
			return low, true
		}
		return high, true
	case below:
		return low, true
	case above:
		return high, true
	}
	return StatusNoAlarm, false
}

// extremes returns the smallest and largest non-NaN element.
func extremes(xs []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		ok = true
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi, ok
}
