package strategies

import (
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

var breakoutTrendSpecs = []ParamSpec{
	{Name: "channel_period", Min: 2, Max: 200, Default: 20, Integer: true, Doc: "Donchian channel over the prior bars"},
	{Name: "trend_period", Min: 2, Max: 400, Default: 50, Integer: true, Doc: "EMA the close must be on the breakout side of"},
	{Name: "hold_bars", Min: 0, Max: 100, Default: 3, Integer: true, Doc: "bars a breakout signal persists after the trigger bar"},
}

// breakoutTrend takes the side of a close beyond the prior channel_period
// high/low when the trend EMA agrees. The channel excludes the current bar.
type breakoutTrend struct {
	base
	channel, trend, hold int
}

func newBreakoutTrend(b base) (Strategy, error) {
	return &breakoutTrend{
		base:    b,
		channel: b.int("channel_period"),
		trend:   b.int("trend_period"),
		hold:    b.int("hold_bars"),
	}, nil
}

func (s *breakoutTrend) Warmup() int { return max(s.channel, s.trend-1) }

func (s *breakoutTrend) Generate(bars market.Series) []Signal {
	closes := bars.Closes()
	upper := indicators.PriorMax(bars.Highs(), s.channel)
	lower := indicators.PriorMin(bars.Lows(), s.channel)
	ema := indicators.EMA(closes, s.trend)

	out := make([]Signal, len(bars))
	var (
		held     market.Direction
		heldStr  float64
		heldLeft int
	)
	for i, b := range bars {
		up, dn, tr := upper[i], lower[i], ema[i]
		if !indicators.IsDefined(up) || !indicators.IsDefined(dn) || !indicators.IsDefined(tr) {
			out[i] = s.flat(b.Timestamp, "warmup")
			continue
		}
		width := up - dn
		c := closes[i]

		var dir market.Direction
		var strength float64
		switch {
		case c > up && c > tr:
			dir = market.Long
			strength = 0.5 + 0.5*indicators.Clamp(indicators.SafeDiv(c-up, width), 0, 1)
		case c < dn && c < tr:
			dir = market.Short
			strength = 0.5 + 0.5*indicators.Clamp(indicators.SafeDiv(dn-c, width), 0, 1)
		}
		if !indicators.IsDefined(strength) {
			strength = 0.5
		}

		switch {
		case dir != market.Flat:
			held, heldStr, heldLeft = dir, strength, s.hold
			out[i] = s.signal(b.Timestamp, dir, strength, "channel-breakout")
		case heldLeft > 0 && (held == market.Long) == (c > tr):
			// Decay linearly over the hold period.
			decay := float64(heldLeft) / float64(s.hold+1)
			heldLeft--
			out[i] = s.signal(b.Timestamp, held, heldStr*decay, "breakout-hold")
		default:
			heldLeft = 0
			out[i] = s.flat(b.Timestamp, "inside-channel")
		}
	}
	return out
}
