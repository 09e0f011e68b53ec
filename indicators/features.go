package indicators

import (
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// FeatureConfig selects the lookbacks used by ComputeFeatures.
type FeatureConfig struct {
	FastPeriod  int
	SlowPeriod  int
	RSIPeriod   int
	ATRPeriod   int
	ADXPeriod   int
	TrendPeriod int
	VolShort    int
	VolLong     int

	// HighVolRatio flags bars whose ATR(short)/ATR(long) is above it.
	HighVolRatio float64
	// TrendingR2 flags bars whose rolling R² is at least this.
	TrendingR2 float64

	Location *time.Location
}

// DefaultFeatureConfig returns the lookbacks used across the engine.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		FastPeriod:   20,
		SlowPeriod:   50,
		RSIPeriod:    14,
		ATRPeriod:    14,
		ADXPeriod:    14,
		TrendPeriod:  30,
		VolShort:     5,
		VolLong:      50,
		HighVolRatio: 1.5,
		TrendingR2:   0.5,
		Location:     time.UTC,
	}
}

// Features bundles the derived series the advisory and classifier read.
type Features struct {
	Returns    []float64
	EMAFast    []float64
	EMASlow    []float64
	RSI        []float64
	ATR        []float64
	ATRPct     []float64
	ADX        []float64
	TrendR2    []float64
	TrendSlope []float64
	VolRatio   []float64
	VWAP       []float64

	HighVol  []bool
	Trending []bool
}

// ComputeFeatures derives every feature column for bars in one pass.
func ComputeFeatures(bars market.Series, cfg FeatureConfig) Features {
	closes := bars.Closes()
	trend := TrendStrength(closes, cfg.TrendPeriod)
	f := Features{
		Returns:    Returns(closes),
		EMAFast:    EMA(closes, cfg.FastPeriod),
		EMASlow:    EMA(closes, cfg.SlowPeriod),
		RSI:        RSI(closes, cfg.RSIPeriod),
		ATR:        ATR(bars, cfg.ATRPeriod),
		ATRPct:     ATRPercent(bars, cfg.ATRPeriod),
		ADX:        ADX(bars, cfg.ADXPeriod).ADX,
		TrendR2:    trend.R2,
		TrendSlope: trend.Slope,
		VolRatio:   VolatilityRatio(bars, cfg.VolShort, cfg.VolLong),
		VWAP:       IntradayVWAP(bars, cfg.Location),
		HighVol:    make([]bool, len(bars)),
		Trending:   make([]bool, len(bars)),
	}
	for i := range bars {
		f.HighVol[i] = IsDefined(f.VolRatio[i]) && f.VolRatio[i] > cfg.HighVolRatio
		f.Trending[i] = IsDefined(f.TrendR2[i]) && f.TrendR2[i] >= cfg.TrendingR2
	}
	return f
}
