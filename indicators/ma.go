package indicators

import "math"

// SMA calculates the simple moving average of x over period bars. A window
// containing an undefined value yields NaN.
func SMA(x []float64, period int) []float64 {
	out := undefinedSeries(len(x))
	if period <= 0 {
		return out
	}
	sum := 0.0
	bad := 0
	for i, v := range x {
		if IsDefined(v) {
			sum += v
		} else {
			bad++
		}
		if i >= period {
			old := x[i-period]
			if IsDefined(old) {
				sum -= old
			} else {
				bad--
			}
		}
		if i >= period-1 && bad == 0 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA calculates the exponential moving average of x. It is seeded with the
// SMA of the first period defined values and is undefined before that.
func EMA(x []float64, period int) []float64 {
	out := undefinedSeries(len(x))
	if period <= 0 {
		return out
	}
	start := firstDefined(x)
	if start+period > len(x) {
		return out
	}

	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for i := start; i < start+period; i++ {
		if !IsDefined(x[i]) {
			return out
		}
		sum += x[i]
	}
	ema := sum / float64(period)
	out[start+period-1] = ema

	for i := start + period; i < len(x); i++ {
		if !IsDefined(x[i]) {
			continue
		}
		ema = (x[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// RollingStd returns the population standard deviation of x over period bars.
func RollingStd(x []float64, period int) []float64 {
	out := undefinedSeries(len(x))
	if period <= 1 {
		return out
	}
	mean := SMA(x, period)
	for i := period - 1; i < len(x); i++ {
		if !IsDefined(mean[i]) {
			continue
		}
		ss := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := x[j] - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out
}

// ROC returns the rate of change x[i]/x[i-period] - 1.
func ROC(x []float64, period int) []float64 {
	out := undefinedSeries(len(x))
	if period <= 0 {
		return out
	}
	for i := period; i < len(x); i++ {
		out[i] = SafeDiv(x[i], x[i-period]) - 1
	}
	return out
}

// Returns returns simple one-bar returns; index 0 is undefined.
func Returns(x []float64) []float64 {
	return ROC(x, 1)
}

// PriorMax returns max(x[i-period .. i-1]): the highest value of the
// completed bars before i, never including bar i itself.
func PriorMax(x []float64, period int) []float64 {
	out := undefinedSeries(len(x))
	if period <= 0 {
		return out
	}
	for i := period; i < len(x); i++ {
		m := math.Inf(-1)
		for j := i - period; j < i; j++ {
			m = math.Max(m, x[j])
		}
		out[i] = m
	}
	return out
}

// PriorMin returns min(x[i-period .. i-1]).
func PriorMin(x []float64, period int) []float64 {
	out := undefinedSeries(len(x))
	if period <= 0 {
		return out
	}
	for i := period; i < len(x); i++ {
		m := math.Inf(1)
		for j := i - period; j < i; j++ {
			m = math.Min(m, x[j])
		}
		out[i] = m
	}
	return out
}
