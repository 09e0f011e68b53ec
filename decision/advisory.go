package decision

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
)

type Regime string

const (
	Bull    Regime = "bull"
	Bear    Regime = "bear"
	Neutral Regime = "neutral"
	Crisis  Regime = "crisis"
)

// AdvisoryConfig tunes the three horizon views and how they move risk.
type AdvisoryConfig struct {
	ShortWeight  float64 `json:"short_weight" yaml:"short_weight"`
	MediumWeight float64 `json:"medium_weight" yaml:"medium_weight"`
	LongWeight   float64 `json:"long_weight" yaml:"long_weight"`

	VolShort     int     `json:"vol_short" yaml:"vol_short"`
	VolLong      int     `json:"vol_long" yaml:"vol_long"`
	HighVolRatio float64 `json:"high_vol_ratio" yaml:"high_vol_ratio"`

	FastPeriod     int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod     int     `json:"slow_period" yaml:"slow_period"`
	ADXPeriod      int     `json:"adx_period" yaml:"adx_period"`
	ADXThreshold   float64 `json:"adx_threshold" yaml:"adx_threshold"`
	LongPeriod     int     `json:"long_period" yaml:"long_period"`
	CrisisDrawdown float64 `json:"crisis_drawdown" yaml:"crisis_drawdown"`
	CrisisVolPct   float64 `json:"crisis_vol_percentile" yaml:"crisis_vol_percentile"`

	// Multipliers applied to the base risk pct.
	HighVolCut    float64 `json:"high_vol_cut" yaml:"high_vol_cut"`
	CrisisCut     float64 `json:"crisis_cut" yaml:"crisis_cut"`
	DisagreeCut   float64 `json:"disagree_cut" yaml:"disagree_cut"`
	FavourableMul float64 `json:"favourable_boost" yaml:"favourable_boost"`
}

func DefaultAdvisoryConfig() AdvisoryConfig {
	return AdvisoryConfig{
		ShortWeight:    0.2,
		MediumWeight:   0.3,
		LongWeight:     0.5,
		VolShort:       5,
		VolLong:        50,
		HighVolRatio:   1.5,
		FastPeriod:     20,
		SlowPeriod:     50,
		ADXPeriod:      14,
		ADXThreshold:   20,
		LongPeriod:     200,
		CrisisDrawdown: 0.2,
		CrisisVolPct:   0.9,
		HighVolCut:     0.75,
		CrisisCut:      0.5,
		DisagreeCut:    0.75,
		FavourableMul:  1.25,
	}
}

func (c AdvisoryConfig) Validate() error {
	bad := func(param string, v any, reason string) error {
		return errs.Config("advisory", param, v, "%s", reason)
	}
	switch {
	case c.ShortWeight < 0 || c.MediumWeight < 0 || c.LongWeight < 0 || c.ShortWeight+c.MediumWeight+c.LongWeight == 0:
		return bad("weights", [3]float64{c.ShortWeight, c.MediumWeight, c.LongWeight}, "weights must be non-negative and not all zero")
	case c.VolShort < 1 || c.VolLong <= c.VolShort:
		return bad("vol_long", c.VolLong, "need 1 <= vol_short < vol_long")
	case c.FastPeriod < 1 || c.SlowPeriod <= c.FastPeriod:
		return bad("slow_period", c.SlowPeriod, "need 1 <= fast_period < slow_period")
	case c.ADXPeriod < 1:
		return bad("adx_period", c.ADXPeriod, "must be positive")
	case c.LongPeriod < 2:
		return bad("long_period", c.LongPeriod, "must be at least 2")
	case c.CrisisDrawdown <= 0 || c.CrisisDrawdown >= 1:
		return bad("crisis_drawdown", c.CrisisDrawdown, "must be within (0, 1)")
	case c.CrisisVolPct <= 0 || c.CrisisVolPct > 1:
		return bad("crisis_vol_percentile", c.CrisisVolPct, "must be within (0, 1]")
	case c.HighVolCut <= 0 || c.HighVolCut > 1 || c.CrisisCut <= 0 || c.CrisisCut > 1 || c.DisagreeCut <= 0 || c.DisagreeCut > 1:
		return bad("risk_cuts", c.HighVolCut, "cuts must be within (0, 1]")
	case c.FavourableMul < 1 || c.FavourableMul > 3:
		return bad("favourable_boost", c.FavourableMul, "must be within [1, 3]")
	}
	return nil
}

// View is one horizon's opinion.
type View struct {
	Direction market.Direction `json:"direction"`
	Score     float64          `json:"score"` // [-1, 1]
	Note      string           `json:"note"`
}

// Advisory is the combined multi-horizon context of a decision.
type Advisory struct {
	Short  View   `json:"short"`
	Medium View   `json:"medium"`
	Long   View   `json:"long"`
	Regime Regime `json:"regime"`

	HighVol       bool    `json:"high_vol"`
	VolPercentile float64 `json:"vol_percentile"`
	Drawdown      float64 `json:"drawdown"`

	Consensus      market.Direction `json:"consensus"`
	ConsensusScore float64          `json:"consensus_score"`
	Agree          bool             `json:"agree"`
	RiskMultiplier float64          `json:"risk_multiplier"`
	Summary        string           `json:"summary"`
}

// Advise derives the three horizon views at the last bar of bars and the
// risk multiplier for a trade in direction dir.
func Advise(bars market.Series, vwap []float64, dir market.Direction, cfg AdvisoryConfig) Advisory {
	i := len(bars) - 1
	last := bars[i]
	var a Advisory

	// Short: where price sits against the session VWAP, scaled by ATR, and
	// whether recent ranges are stretched.
	atr := indicators.ATR(bars, cfg.VolShort)
	ratio := indicators.Last(indicators.VolatilityRatio(bars, cfg.VolShort, cfg.VolLong))
	a.HighVol = indicators.IsDefined(ratio) && ratio > cfg.HighVolRatio
	if v := vwap[i]; indicators.IsDefined(v) && indicators.IsDefined(atr[i]) && atr[i] > 0 {
		a.Short.Score = indicators.Clamp((last.Close-v)/atr[i], -1, 1)
	}
	a.Short.Direction = market.DirectionOf(a.Short.Score)
	a.Short.Note = fmt.Sprintf("vol ratio %.2f", nanZero(ratio))

	// Medium: EMA stack confirmed by ADX.
	closes := bars.Closes()
	fast := indicators.Last(indicators.EMA(closes, cfg.FastPeriod))
	slow := indicators.Last(indicators.EMA(closes, cfg.SlowPeriod))
	adx := indicators.Last(indicators.ADX(bars, cfg.ADXPeriod).ADX)
	if indicators.IsDefined(fast) && indicators.IsDefined(slow) && indicators.IsDefined(adx) && adx >= cfg.ADXThreshold {
		a.Medium.Direction = market.DirectionOf(fast - slow)
		a.Medium.Score = a.Medium.Direction.Float() * math.Min(adx/50, 1)
	}
	a.Medium.Note = fmt.Sprintf("adx %.1f", nanZero(adx))

	// Long: regime from price vs a long SMA, drawdown from the window peak
	// and where today's volatility ranks in the window.
	period := min(cfg.LongPeriod, len(bars))
	sma := indicators.SMA(closes, period)
	a.Drawdown = drawdown(closes[len(closes)-period:])
	a.VolPercentile = volPercentile(indicators.ATRPercent(bars, cfg.VolShort), period)
	a.Regime = regime(last.Close, sma, a, cfg)
	switch a.Regime {
	case Bull:
		a.Long = View{Direction: market.Long, Score: 1}
	case Bear:
		a.Long = View{Direction: market.Short, Score: -1}
	}
	a.Long.Note = fmt.Sprintf("%s, drawdown %.1f%%", a.Regime, 100*a.Drawdown)

	total := cfg.ShortWeight + cfg.MediumWeight + cfg.LongWeight
	a.ConsensusScore = (cfg.ShortWeight*a.Short.Score + cfg.MediumWeight*a.Medium.Score + cfg.LongWeight*a.Long.Score) / total
	if math.Abs(a.ConsensusScore) >= 0.25 {
		a.Consensus = market.DirectionOf(a.ConsensusScore)
	}
	a.Agree = a.Short.Direction != market.Flat &&
		a.Short.Direction == a.Medium.Direction && a.Medium.Direction == a.Long.Direction

	m := 1.0
	if a.HighVol {
		m *= cfg.HighVolCut
	}
	if a.Regime == Crisis {
		m *= cfg.CrisisCut
	}
	if dir != market.Flat && a.Consensus == dir.Opposite() {
		m *= cfg.DisagreeCut
	}
	if a.Agree && a.Short.Direction == dir && !a.HighVol && a.VolPercentile < 0.5 {
		m *= cfg.FavourableMul
	}
	a.RiskMultiplier = m
	a.Summary = fmt.Sprintf("short %s, medium %s, long %s (%s); consensus %s, risk x%.2f",
		a.Short.Direction, a.Medium.Direction, a.Long.Direction, a.Regime, a.Consensus, m)
	return a
}

func regime(price float64, sma []float64, a Advisory, cfg AdvisoryConfig) Regime {
	cur := indicators.Last(sma)
	if a.Drawdown >= cfg.CrisisDrawdown || (a.VolPercentile >= cfg.CrisisVolPct && indicators.IsDefined(cur) && price < cur) {
		return Crisis
	}
	if !indicators.IsDefined(cur) || len(sma) < 2 {
		return Neutral
	}
	prev := sma[len(sma)-2]
	rising := indicators.IsDefined(prev) && cur > prev
	falling := indicators.IsDefined(prev) && cur < prev
	switch {
	case price > cur && rising:
		return Bull
	case price < cur && falling:
		return Bear
	}
	return Neutral
}

// drawdown is the decline of the last close from the window's highest close.
func drawdown(closes []float64) float64 {
	peak := 0.0
	for _, c := range closes {
		peak = math.Max(peak, c)
	}
	if peak == 0 {
		return 0
	}
	return (peak - closes[len(closes)-1]) / peak
}

// volPercentile ranks the last defined value among the trailing window.
func volPercentile(x []float64, window int) float64 {
	lo := max(0, len(x)-window)
	var vals []float64
	for _, v := range x[lo:] {
		if indicators.IsDefined(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 || !indicators.IsDefined(x[len(x)-1]) {
		return 0.5
	}
	cur := x[len(x)-1]
	sort.Float64s(vals)
	return stat.CDF(cur, stat.Empirical, vals, nil)
}

func nanZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
