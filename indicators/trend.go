package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Trend holds a rolling least-squares fit of price against bar index.
type Trend struct {
	R2    []float64 // goodness of fit, 0..1
	Slope []float64 // fitted slope per bar as a fraction of the window mean
}

// TrendStrength fits y = a + b*t over each trailing window of period bars and
// reports R² and the normalized slope. Constant windows are undefined.
func TrendStrength(x []float64, period int) Trend {
	tr := Trend{R2: undefinedSeries(len(x)), Slope: undefinedSeries(len(x))}
	if period < 3 {
		return tr
	}
	ts := make([]float64, period)
	for i := range ts {
		ts[i] = float64(i)
	}
	for i := period - 1; i < len(x); i++ {
		win := x[i-period+1 : i+1]
		if !allDefined(win) || stat.Variance(win, nil) == 0 {
			continue
		}
		alpha, beta := stat.LinearRegression(ts, win, nil, false)
		tr.R2[i] = Clamp(stat.RSquared(ts, win, nil, alpha, beta), 0, 1)
		tr.Slope[i] = SafeDiv(beta, stat.Mean(win, nil))
	}
	return tr
}

func allDefined(x []float64) bool {
	for _, v := range x {
		if !IsDefined(v) {
			return false
		}
	}
	return true
}

// RollingSharpe returns mean/stddev of returns over each trailing window,
// scaled by sqrt(periodsPerYear). Zero volatility is undefined.
func RollingSharpe(returns []float64, period int, periodsPerYear float64) []float64 {
	out := undefinedSeries(len(returns))
	if period < 2 {
		return out
	}
	scale := math.Sqrt(periodsPerYear)
	for i := period - 1; i < len(returns); i++ {
		win := returns[i-period+1 : i+1]
		if !allDefined(win) {
			continue
		}
		mean, sd := stat.MeanStdDev(win, nil)
		out[i] = SafeDiv(mean, sd) * scale
	}
	return out
}

// RollingSortino is RollingSharpe with downside deviation in the denominator.
func RollingSortino(returns []float64, period int, periodsPerYear float64) []float64 {
	out := undefinedSeries(len(returns))
	if period < 2 {
		return out
	}
	scale := math.Sqrt(periodsPerYear)
	for i := period - 1; i < len(returns); i++ {
		win := returns[i-period+1 : i+1]
		if !allDefined(win) {
			continue
		}
		out[i] = SafeDiv(stat.Mean(win, nil), DownsideDeviation(win)) * scale
	}
	return out
}

// DownsideDeviation is sqrt(mean(min(r,0)^2)).
func DownsideDeviation(returns []float64) float64 {
	if len(returns) == 0 {
		return Undefined
	}
	ss := 0.0
	for _, r := range returns {
		if r < 0 {
			ss += r * r
		}
	}
	return math.Sqrt(ss / float64(len(returns)))
}
