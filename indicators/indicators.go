// Package indicators provides technical analysis indicators for trading.
//
// Every function returns a series the same length as its input and aligned to
// the same bars. Values that cannot be computed yet (warm-up) or that would
// divide by zero are NaN, the package's "undefined" marker; use IsDefined to
// test for it. Output at index i only ever depends on inputs at indices <= i.
package indicators

import "math"

// Undefined is the marker stored for values that cannot be computed.
var Undefined = math.NaN()

// IsDefined reports whether v is a usable number.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// undefinedSeries returns n NaNs.
func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Undefined
	}
	return out
}

// SafeDiv returns a/b, or NaN when b is zero or either side is undefined.
func SafeDiv(a, b float64) float64 {
	if b == 0 || !IsDefined(a) || !IsDefined(b) {
		return Undefined
	}
	return a / b
}

// Clamp bounds v into [lo, hi]. NaN stays NaN.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(lo, math.Min(hi, v))
}

// firstDefined returns the index of the first defined value, or len(x).
func firstDefined(x []float64) int {
	for i, v := range x {
		if IsDefined(v) {
			return i
		}
	}
	return len(x)
}

// Last returns the final value of x, or NaN for an empty slice.
func Last(x []float64) float64 {
	if len(x) == 0 {
		return Undefined
	}
	return x[len(x)-1]
}
