package risk

import "math"

// Outcomes summarises closed trades for Kelly sizing.
type Outcomes struct {
	Trades  int
	Wins    int
	AvgWin  float64 // mean winning PnL, positive
	AvgLoss float64 // mean losing PnL as a positive number
}

// WinRate is wins/trades, 0 with no trades.
func (o Outcomes) WinRate() float64 {
	if o.Trades == 0 {
		return 0
	}
	return float64(o.Wins) / float64(o.Trades)
}

// Summarise builds Outcomes from realised PnLs. Break-even trades count as
// trades but neither wins nor losses.
func Summarise(pnls []float64) Outcomes {
	var o Outcomes
	var winSum, lossSum float64
	losses := 0
	for _, p := range pnls {
		o.Trades++
		switch {
		case p > 0:
			o.Wins++
			winSum += p
		case p < 0:
			losses++
			lossSum -= p
		}
	}
	if o.Wins > 0 {
		o.AvgWin = winSum / float64(o.Wins)
	}
	if losses > 0 {
		o.AvgLoss = lossSum / float64(losses)
	}
	return o
}

// KellyFraction is W - (1-W)/R with R = AvgWin/AvgLoss. It is 0 when the
// edge is negative or undefined.
func KellyFraction(o Outcomes) float64 {
	if o.AvgLoss <= 0 || o.AvgWin <= 0 {
		return 0
	}
	w := o.WinRate()
	r := o.AvgWin / o.AvgLoss
	return math.Max(0, w-(1-w)/r)
}

// KellyConfig bounds fractional Kelly sizing.
type KellyConfig struct {
	Fraction  float64 // multiplier on full Kelly, e.g. 0.25
	MinTrades int     // below this the fixed risk pct is used
	MaxRisk   float64 // ceiling on the returned risk pct
}

// KellyRiskPct returns the risk fraction to use and whether Kelly applied.
// With too little history it falls back to fixed.
func KellyRiskPct(o Outcomes, cfg KellyConfig, fixed float64) (pct float64, usedKelly bool) {
	if o.Trades < cfg.MinTrades {
		return fixed, false
	}
	pct = cfg.Fraction * KellyFraction(o)
	if cfg.MaxRisk > 0 {
		pct = math.Min(pct, cfg.MaxRisk)
	}
	return pct, true
}
