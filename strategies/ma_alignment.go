package strategies

import (
	"math"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

var maAlignmentSpecs = []ParamSpec{
	{Name: "short_period", Min: 2, Max: 100, Default: 10, Integer: true, Doc: "short EMA lookback"},
	{Name: "medium_period", Min: 3, Max: 200, Default: 30, Integer: true, Doc: "medium EMA lookback"},
	{Name: "long_period", Min: 4, Max: 400, Default: 100, Integer: true, Doc: "long EMA lookback"},
	{Name: "min_separation_pct", Min: 0, Max: 0.1, Default: 0.001, Doc: "minimum gap between adjacent EMAs, as a fraction of the long EMA"},
}

// maAlignment is long when short > medium > long EMAs with each gap at least
// min_separation_pct, short when fully stacked the other way.
type maAlignment struct {
	base
	short, medium, long int
	minSep              float64
}

func newMAAlignment(b base) (Strategy, error) {
	s := &maAlignment{
		base:   b,
		short:  b.int("short_period"),
		medium: b.int("medium_period"),
		long:   b.int("long_period"),
		minSep: b.float("min_separation_pct"),
	}
	if s.short >= s.medium || s.medium >= s.long {
		return nil, errs.Config(b.name, "medium_period", s.medium,
			"periods must satisfy short < medium < long (%d, %d, %d)", s.short, s.medium, s.long)
	}
	return s, nil
}

func (s *maAlignment) Warmup() int { return s.long - 1 }

func (s *maAlignment) Generate(bars market.Series) []Signal {
	closes := bars.Closes()
	sh := indicators.EMA(closes, s.short)
	md := indicators.EMA(closes, s.medium)
	lg := indicators.EMA(closes, s.long)

	out := make([]Signal, len(bars))
	for i, b := range bars {
		if !defined(sh[i], md[i], lg[i]) || lg[i] == 0 {
			out[i] = s.flat(b.Timestamp, "warmup")
			continue
		}
		gap1 := (sh[i] - md[i]) / lg[i]
		gap2 := (md[i] - lg[i]) / lg[i]
		// Strength saturates when the total spread reaches 2%.
		spread := math.Abs(gap1+gap2) / 0.02
		switch {
		case gap1 > 0 && gap2 > 0 && gap1 >= s.minSep && gap2 >= s.minSep:
			out[i] = s.signal(b.Timestamp, market.Long, spread, "bullish-stack")
		case gap1 < 0 && gap2 < 0 && -gap1 >= s.minSep && -gap2 >= s.minSep:
			out[i] = s.signal(b.Timestamp, market.Short, spread, "bearish-stack")
		default:
			out[i] = s.flat(b.Timestamp, "not-aligned")
		}
	}
	return out
}
