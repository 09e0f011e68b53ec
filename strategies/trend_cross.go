package strategies

import (
	"math"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

var trendCrossSpecs = []ParamSpec{
	{Name: "fast_period", Min: 2, Max: 200, Default: 20, Integer: true, Doc: "fast EMA lookback"},
	{Name: "slow_period", Min: 3, Max: 400, Default: 50, Integer: true, Doc: "slow EMA lookback, greater than fast_period"},
	{Name: "min_separation_pct", Min: 0, Max: 0.1, Default: 0.001, Doc: "minimum |fast-slow|/slow before a side is taken"},
	{Name: "strength_scale", Min: 0.0001, Max: 1, Default: 0.01, Doc: "separation at which strength saturates at 1"},
}

// trendCross is long while the fast EMA sits above the slow EMA by at least
// min_separation_pct, short in the mirror case, and flat in between.
type trendCross struct {
	base
	fast, slow int
	minSep     float64
	scale      float64
}

func newTrendCross(b base) (Strategy, error) {
	s := &trendCross{
		base:   b,
		fast:   b.int("fast_period"),
		slow:   b.int("slow_period"),
		minSep: b.float("min_separation_pct"),
		scale:  b.float("strength_scale"),
	}
	if s.fast >= s.slow {
		return nil, errs.Config(b.name, "fast_period", s.fast, "must be less than slow_period (%d)", s.slow)
	}
	return s, nil
}

func (s *trendCross) Warmup() int { return s.slow - 1 }

func (s *trendCross) Generate(bars market.Series) []Signal {
	closes := bars.Closes()
	fast := indicators.EMA(closes, s.fast)
	slow := indicators.EMA(closes, s.slow)

	out := make([]Signal, len(bars))
	for i, b := range bars {
		sep := indicators.SafeDiv(fast[i]-slow[i], slow[i])
		switch {
		case !indicators.IsDefined(sep):
			out[i] = s.flat(b.Timestamp, "warmup")
		case math.Abs(sep) < s.minSep || sep == 0:
			out[i] = s.flat(b.Timestamp, "separation-below-minimum")
		case sep > 0:
			out[i] = s.signal(b.Timestamp, market.Long, sep/s.scale, "fast-above-slow")
		default:
			out[i] = s.signal(b.Timestamp, market.Short, sep/s.scale, "fast-below-slow")
		}
	}
	return out
}
