package strategies

import (
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

var divergenceVolSpecs = []ParamSpec{
	{Name: "rsi_period", Min: 2, Max: 100, Default: 14, Integer: true, Doc: "RSI lookback"},
	{Name: "lookback", Min: 2, Max: 200, Default: 10, Integer: true, Doc: "prior bars searched for the previous extreme"},
	{Name: "atr_period", Min: 2, Max: 100, Default: 14, Integer: true, Doc: "ATR lookback for the volatility filter"},
	{Name: "min_atr_pct", Min: 0, Max: 0.5, Default: 0.0005, Doc: "minimum ATR/close to trade"},
	{Name: "max_atr_pct", Min: 0, Max: 1, Default: 0.05, Doc: "maximum ATR/close to trade"},
}

// divergenceVol looks for price making a new extreme over the prior lookback
// bars while RSI does not: a lower close low with a higher RSI low is
// bullish, the mirror is bearish. Trades only inside the ATR% band.
type divergenceVol struct {
	base
	rsiPeriod, lookback, atrPeriod int
	minATR, maxATR                 float64
}

func newDivergenceVol(b base) (Strategy, error) {
	s := &divergenceVol{
		base:      b,
		rsiPeriod: b.int("rsi_period"),
		lookback:  b.int("lookback"),
		atrPeriod: b.int("atr_period"),
		minATR:    b.float("min_atr_pct"),
		maxATR:    b.float("max_atr_pct"),
	}
	if s.minATR >= s.maxATR {
		return nil, errs.Config(b.name, "min_atr_pct", s.minATR, "must be less than max_atr_pct (%g)", s.maxATR)
	}
	return s, nil
}

func (s *divergenceVol) Warmup() int {
	return max(s.rsiPeriod+s.lookback, s.atrPeriod)
}

func (s *divergenceVol) Generate(bars market.Series) []Signal {
	closes := bars.Closes()
	rsi := indicators.RSI(closes, s.rsiPeriod)
	atrPct := indicators.ATRPercent(bars, s.atrPeriod)
	priorLow := indicators.PriorMin(closes, s.lookback)
	priorHigh := indicators.PriorMax(closes, s.lookback)
	rsiLow := indicators.PriorMin(rsi, s.lookback)
	rsiHigh := indicators.PriorMax(rsi, s.lookback)

	out := make([]Signal, len(bars))
	for i, b := range bars {
		vals := []float64{rsi[i], atrPct[i], priorLow[i], priorHigh[i], rsiLow[i], rsiHigh[i]}
		if !defined(vals...) {
			out[i] = s.flat(b.Timestamp, "warmup")
			continue
		}
		if atrPct[i] < s.minATR || atrPct[i] > s.maxATR {
			out[i] = s.flat(b.Timestamp, "volatility-filter")
			continue
		}
		c := closes[i]
		switch {
		case c < priorLow[i] && rsi[i] > rsiLow[i]:
			out[i] = s.signal(b.Timestamp, market.Long, (rsi[i]-rsiLow[i])/20, "bullish-divergence")
		case c > priorHigh[i] && rsi[i] < rsiHigh[i]:
			out[i] = s.signal(b.Timestamp, market.Short, (rsiHigh[i]-rsi[i])/20, "bearish-divergence")
		default:
			out[i] = s.flat(b.Timestamp, "no-divergence")
		}
	}
	return out
}

func defined(vals ...float64) bool {
	for _, v := range vals {
		if !indicators.IsDefined(v) {
			return false
		}
	}
	return true
}
