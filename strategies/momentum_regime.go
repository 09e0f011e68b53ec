package strategies

import (
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

var momentumRegimeSpecs = []ParamSpec{
	{Name: "rsi_period", Min: 2, Max: 100, Default: 14, Integer: true, Doc: "RSI lookback"},
	{Name: "rsi_band", Min: 0, Max: 40, Default: 5, Doc: "distance from 50 the RSI must clear"},
	{Name: "adx_period", Min: 2, Max: 100, Default: 14, Integer: true, Doc: "ADX lookback"},
	{Name: "adx_threshold", Min: 0, Max: 100, Default: 20, Doc: "minimum ADX for a trending regime"},
}

// momentumRegime follows RSI momentum, but only while ADX says the market is
// trending. Strength grows with the RSI distance beyond the band.
type momentumRegime struct {
	base
	rsiPeriod, adxPeriod int
	band, adxMin         float64
}

func newMomentumRegime(b base) (Strategy, error) {
	return &momentumRegime{
		base:      b,
		rsiPeriod: b.int("rsi_period"),
		adxPeriod: b.int("adx_period"),
		band:      b.float("rsi_band"),
		adxMin:    b.float("adx_threshold"),
	}, nil
}

func (s *momentumRegime) Warmup() int {
	return max(s.rsiPeriod, 2*s.adxPeriod-1)
}

func (s *momentumRegime) Generate(bars market.Series) []Signal {
	rsi := indicators.RSI(bars.Closes(), s.rsiPeriod)
	adx := indicators.ADX(bars, s.adxPeriod).ADX

	room := 50 - s.band
	out := make([]Signal, len(bars))
	for i, b := range bars {
		r, a := rsi[i], adx[i]
		switch {
		case !indicators.IsDefined(r) || !indicators.IsDefined(a):
			out[i] = s.flat(b.Timestamp, "warmup")
		case a < s.adxMin:
			out[i] = s.flat(b.Timestamp, "no-trend-regime")
		case r > 50+s.band:
			out[i] = s.signal(b.Timestamp, market.Long, indicators.SafeDiv(r-50-s.band, room), "momentum-up")
		case r < 50-s.band:
			out[i] = s.signal(b.Timestamp, market.Short, indicators.SafeDiv(50-s.band-r, room), "momentum-down")
		default:
			out[i] = s.flat(b.Timestamp, "momentum-neutral")
		}
	}
	return out
}
