package indicators

import (
	"math"

	"github.com/rustyeddy/daytrader/market"
)

// trueRange calculates the True Range for a bar given the previous close.
func trueRange(high, low, prevClose float64) float64 {
	highLow := high - low
	highClose := math.Abs(high - prevClose)
	lowClose := math.Abs(low - prevClose)

	return math.Max(highLow, math.Max(highClose, lowClose))
}

// TrueRange returns the true range of every bar. The first bar has no
// previous close and uses high-low.
func TrueRange(bars market.Series) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			out[i] = b.High - b.Low
			continue
		}
		out[i] = trueRange(b.High, b.Low, bars[i-1].Close)
	}
	return out
}

// ATR calculates the Average True Range with Wilder smoothing. The first value
// is the mean of the true ranges of bars 1..period and lands on index period.
func ATR(bars market.Series, period int) []float64 {
	out := undefinedSeries(len(bars))
	if period <= 0 || len(bars) <= period {
		return out
	}
	tr := TrueRange(bars)

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// ATRPercent returns ATR divided by close.
func ATRPercent(bars market.Series, period int) []float64 {
	atr := ATR(bars, period)
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = SafeDiv(atr[i], bars[i].Close)
	}
	return out
}

// VolatilityRatio returns ATR(short)/ATR(long). Values above 1 mean recent
// ranges are wider than usual.
func VolatilityRatio(bars market.Series, short, long int) []float64 {
	s := ATR(bars, short)
	l := ATR(bars, long)
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = SafeDiv(s[i], l[i])
	}
	return out
}
