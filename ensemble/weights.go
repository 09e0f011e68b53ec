package ensemble

import (
	"math"

	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/strategies"
	"gonum.org/v1/gonum/stat"
)

// WeightSnapshot is an immutable set of strategy weights valid over
// [ComputedAt, ValidUntil). Rebalancing produces a new snapshot.
type WeightSnapshot struct {
	Weights    map[string]float64 `json:"weights"`
	ComputedAt int64              `json:"computed_at"`
	ValidUntil int64              `json:"valid_until"`
}

// Valid reports whether the snapshot applies at ts.
func (w WeightSnapshot) Valid(ts int64) bool {
	return w.Weights != nil && ts >= w.ComputedAt && ts < w.ValidUntil
}

// Weight returns the weight of name, 0 when absent.
func (w WeightSnapshot) Weight(name string) float64 {
	return w.Weights[name]
}

// Rebalance computes performance weights as seen at the close of bar i.
//
// Strategy j's return at bar k is signal[k-1].Strength * (close[k]/close[k-1] - 1),
// so only returns already realised at bar i are used. Each strategy's
// annualised Sharpe over the trailing WindowDays is clipped to
// [0, SharpeClip] and the clipped values are normalised to sum to 1. When no
// strategy has a positive Sharpe the weights are equal.
func Rebalance(bars market.Series, signals map[string][]strategies.Signal, names []string, i int, cfg Config) WeightSnapshot {
	cfg = cfg.withDefaults()
	now := bars[i].Timestamp
	snap := WeightSnapshot{
		ComputedAt: now,
		ValidUntil: now + int64(cfg.RebalanceDays)*dayMillis,
	}

	from := bars.LowerBound(now - int64(cfg.WindowDays)*dayMillis + 1)
	if from < 1 {
		from = 1
	}
	raw := make(map[string]float64, len(names))
	total := 0.0
	for _, name := range names {
		rets := StrategyReturns(bars, signals[name], from, i)
		sharpe := 0.0
		if len(rets) >= 2 {
			mean, sd := stat.MeanStdDev(rets, nil)
			if sd > 0 && !math.IsNaN(sd) {
				sharpe = mean / sd * math.Sqrt(cfg.PeriodsPerYear)
			}
		}
		w := math.Max(0, math.Min(cfg.SharpeClip, sharpe))
		raw[name] = w
		total += w
	}
	if total == 0 {
		snap.Weights = EqualWeights(names)
		return snap
	}
	for _, name := range names {
		raw[name] /= total
	}
	snap.Weights = raw
	return snap
}

// StrategyReturns returns the per-bar returns of following sigs over
// bars[from..to], each bar holding the previous bar's signal.
func StrategyReturns(bars market.Series, sigs []strategies.Signal, from, to int) []float64 {
	if from < 1 {
		from = 1
	}
	if to >= len(bars) {
		to = len(bars) - 1
	}
	if to < from {
		return nil
	}
	out := make([]float64, 0, to-from+1)
	for k := from; k <= to; k++ {
		prev := bars[k-1].Close
		if prev == 0 {
			continue
		}
		out = append(out, sigs[k-1].Strength*(bars[k].Close/prev-1))
	}
	return out
}
