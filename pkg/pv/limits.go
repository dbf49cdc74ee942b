package pv

import "fmt"

// Limits is a (low, high) limit pair. A pair is active only if Low < High;
// inactive pairs impose no constraint.
type Limits struct {
	Low  float64
	High float64
}

// Active reports whether the pair constrains anything.
func (l Limits) Active() bool { return l.Low < l.High }

// String renders the pair as "(low, high)".
func (l Limits) String() string {
	return fmt.Sprintf("(%g, %g)", l.Low, l.High)
}
