package strategies

import (
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

var meanReversionSpecs = []ParamSpec{
	{Name: "period", Min: 2, Max: 200, Default: 20, Integer: true, Doc: "Bollinger lookback for the z-score"},
	{Name: "entry_z", Min: 0.1, Max: 5, Default: 2, Doc: "|z| needed to fade the move"},
	{Name: "rsi_period", Min: 2, Max: 100, Default: 14, Integer: true, Doc: "RSI lookback"},
	{Name: "oversold", Min: 1, Max: 50, Default: 30, Doc: "RSI at or below which longs are allowed"},
	{Name: "overbought", Min: 50, Max: 99, Default: 70, Doc: "RSI at or above which shorts are allowed"},
}

// meanReversion fades stretched closes: z <= -entry_z with RSI oversold is
// long, z >= entry_z with RSI overbought is short.
type meanReversion struct {
	base
	period, rsiPeriod    int
	entryZ               float64
	oversold, overbought float64
}

func newMeanReversion(b base) (Strategy, error) {
	s := &meanReversion{
		base:       b,
		period:     b.int("period"),
		rsiPeriod:  b.int("rsi_period"),
		entryZ:     b.float("entry_z"),
		oversold:   b.float("oversold"),
		overbought: b.float("overbought"),
	}
	if s.oversold >= s.overbought {
		return nil, errs.Config(b.name, "oversold", s.oversold, "must be less than overbought (%g)", s.overbought)
	}
	return s, nil
}

func (s *meanReversion) Warmup() int { return max(s.period-1, s.rsiPeriod) }

func (s *meanReversion) Generate(bars market.Series) []Signal {
	closes := bars.Closes()
	z := indicators.ZScore(closes, s.period)
	rsi := indicators.RSI(closes, s.rsiPeriod)

	out := make([]Signal, len(bars))
	for i, b := range bars {
		if !defined(z[i], rsi[i]) {
			out[i] = s.flat(b.Timestamp, "warmup")
			continue
		}
		switch {
		case z[i] <= -s.entryZ && rsi[i] <= s.oversold:
			out[i] = s.signal(b.Timestamp, market.Long, -z[i]/(2*s.entryZ), "oversold-stretch")
		case z[i] >= s.entryZ && rsi[i] >= s.overbought:
			out[i] = s.signal(b.Timestamp, market.Short, z[i]/(2*s.entryZ), "overbought-stretch")
		default:
			out[i] = s.flat(b.Timestamp, "within-band")
		}
	}
	return out
}
