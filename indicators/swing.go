package indicators

import "github.com/rustyeddy/daytrader/market"

// Swings lists confirmed swing highs and lows visible at bar i, most recent
// first. Bar j is a swing high when its high is strictly above the highs of
// strength bars on each side; it is only confirmed once bar j+strength has
// closed, so nothing after i is ever consulted. Only pivots within lookback
// bars of i are returned.
func Swings(bars market.Series, i, lookback, strength int) (highs, lows []float64) {
	if strength < 1 || i >= len(bars) {
		return nil, nil
	}
	lo := i - lookback
	if lo < strength {
		lo = strength
	}
	for j := i - strength; j >= lo; j-- {
		if isSwingHigh(bars, j, strength) {
			highs = append(highs, bars[j].High)
		}
		if isSwingLow(bars, j, strength) {
			lows = append(lows, bars[j].Low)
		}
	}
	return highs, lows
}

func isSwingHigh(bars market.Series, j, strength int) bool {
	h := bars[j].High
	for k := 1; k <= strength; k++ {
		if bars[j-k].High >= h || bars[j+k].High >= h {
			return false
		}
	}
	return true
}

func isSwingLow(bars market.Series, j, strength int) bool {
	l := bars[j].Low
	for k := 1; k <= strength; k++ {
		if bars[j-k].Low <= l || bars[j+k].Low <= l {
			return false
		}
	}
	return true
}
