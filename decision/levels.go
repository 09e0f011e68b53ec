package decision

import (
	"math"

	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

// Band is the acceptable entry range around the reference mid price.
type Band struct {
	Mid       float64 `json:"mid"`
	MidSource string  `json:"mid_source"` // "vwap" or "typical"
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
}

// EntryBand centres a band of half-width beta on the session VWAP of the last
// bar, or on its typical price when the session has no volume yet.
func EntryBand(bars market.Series, vwap []float64, beta float64) Band {
	last := bars.Last()
	b := Band{Mid: last.Typical(), MidSource: "typical"}
	if v := vwap[len(vwap)-1]; indicators.IsDefined(v) && v > 0 {
		b.Mid, b.MidSource = v, "vwap"
	}
	b.Low = b.Mid * (1 - beta)
	b.High = b.Mid * (1 + beta)
	return b
}

// Entry is the band edge a limit order would rest at: the low edge for a
// long, the high edge for a short.
func (b Band) Entry(dir market.Direction) float64 {
	switch dir {
	case market.Long:
		return b.Low
	case market.Short:
		return b.High
	}
	return b.Mid
}

// Levels are the protective prices of a planned trade.
type Levels struct {
	Stop   float64    `json:"stop_loss"`
	Target float64    `json:"take_profit"`
	Method StopMethod `json:"method"`
	OK     bool       `json:"-"`
}

// RR is reward over risk, 0 when the stop sits on the entry.
func (l Levels) RR(entry float64) float64 {
	r := math.Abs(entry - l.Stop)
	if r == 0 {
		return 0
	}
	return math.Abs(l.Target-entry) / r
}

// volatilityLevels places stop and target at fixed ATR multiples.
func volatilityLevels(dir market.Direction, entry, atr float64, cfg Config) Levels {
	if !indicators.IsDefined(atr) || atr <= 0 {
		return Levels{Method: Volatility}
	}
	d := dir.Float()
	return Levels{
		Stop:   entry - d*cfg.StopATR*atr,
		Target: entry + d*cfg.TargetATR*atr,
		Method: Volatility,
		OK:     true,
	}
}

// swingLevels finds the stop beyond the most recent confirmed swing on the
// losing side and the nearest swing on the winning side. target is NaN when
// no swing lies beyond entry.
func swingLevels(dir market.Direction, entry float64, bars market.Series, cfg Config) (stop, target float64, ok bool) {
	highs, lows := indicators.Swings(bars, len(bars)-1, cfg.SwingLookback, cfg.SwingStrength)
	against, toward := lows, highs
	if dir == market.Short {
		against, toward = highs, lows
	}

	d := dir.Float()
	for _, p := range against {
		if d*(entry-p) > 0 {
			stop, ok = p*(1-d*cfg.SwingBuffer), true
			break
		}
	}
	target = math.NaN()
	for _, p := range toward {
		if d*(p-entry) > 0 {
			target = p
			break
		}
	}
	return stop, target, ok
}

// structuralLevels trades from swing to swing, with the target clamped into
// the reward/risk bounds.
func structuralLevels(dir market.Direction, entry float64, bars market.Series, cfg Config) Levels {
	stop, target, ok := swingLevels(dir, entry, bars, cfg)
	if !ok {
		return Levels{Method: Structural}
	}
	return Levels{
		Stop:   stop,
		Target: clampTarget(dir, entry, stop, target, cfg),
		Method: Structural,
		OK:     true,
	}
}

// hybridLevels keeps whichever stop is closer to entry, then aims at the
// swing target when it satisfies the reward/risk bounds and at the ATR
// target otherwise.
func hybridLevels(dir market.Direction, entry, atr float64, bars market.Series, cfg Config) Levels {
	vol := volatilityLevels(dir, entry, atr, cfg)
	stop, target, ok := swingLevels(dir, entry, bars, cfg)
	switch {
	case !vol.OK && !ok:
		return Levels{Method: Hybrid}
	case !ok:
		vol.Method = Hybrid
		return vol
	case !vol.OK:
		return Levels{Stop: stop, Target: clampTarget(dir, entry, stop, target, cfg), Method: Hybrid, OK: true}
	}

	l := Levels{Method: Hybrid, OK: true, Stop: vol.Stop}
	if math.Abs(entry-stop) < math.Abs(entry-vol.Stop) {
		l.Stop = stop
	}
	if math.IsNaN(target) {
		target = vol.Target
	} else if rr := (Levels{Stop: l.Stop, Target: target}).RR(entry); rr < cfg.MinRR || rr > cfg.MaxRR {
		target = vol.Target
	}
	l.Target = clampTarget(dir, entry, l.Stop, target, cfg)
	return l
}

// clampTarget moves target so that reward/risk lands in [MinRR, MaxRR]. A NaN
// target becomes the minimum-RR target.
func clampTarget(dir market.Direction, entry, stop, target float64, cfg Config) float64 {
	risk := math.Abs(entry - stop)
	d := dir.Float()
	if math.IsNaN(target) {
		return entry + d*cfg.MinRR*risk
	}
	rr := d * (target - entry) / risk
	rr = math.Max(cfg.MinRR, math.Min(cfg.MaxRR, rr))
	return entry + d*rr*risk
}

func levels(dir market.Direction, entry, atr float64, bars market.Series, cfg Config) Levels {
	switch cfg.StopMethod {
	case Structural:
		return structuralLevels(dir, entry, bars, cfg)
	case Hybrid:
		return hybridLevels(dir, entry, atr, bars, cfg)
	}
	return volatilityLevels(dir, entry, atr, cfg)
}
