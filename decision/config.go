package decision

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/session"
)

type StopMethod string

const (
	Volatility StopMethod = "volatility"
	Structural StopMethod = "structural"
	Hybrid     StopMethod = "hybrid"
)

type Sizing string

const (
	Fixed Sizing = "fixed"
	Kelly Sizing = "kelly"
)

// Config holds every knob of the decision engine. Percentages are fractions.
type Config struct {
	Capital    float64 `json:"capital" yaml:"capital"`
	RiskPct    float64 `json:"risk_pct" yaml:"risk_pct"`
	MinRiskPct float64 `json:"min_risk_pct" yaml:"min_risk_pct"`
	MaxRiskPct float64 `json:"max_risk_pct" yaml:"max_risk_pct"`

	EntryBeta           float64 `json:"entry_beta" yaml:"entry_beta"`
	MinEntryDistancePct float64 `json:"min_entry_distance_pct" yaml:"min_entry_distance_pct"`
	MaxEntryDistancePct float64 `json:"max_entry_distance_pct" yaml:"max_entry_distance_pct"`
	MinConfidence       float64 `json:"min_confidence" yaml:"min_confidence"`

	StopMethod    StopMethod `json:"stop_method" yaml:"stop_method"`
	ATRPeriod     int        `json:"atr_period" yaml:"atr_period"`
	StopATR       float64    `json:"atr_multiplier_sl" yaml:"atr_multiplier_sl"`
	TargetATR     float64    `json:"atr_multiplier_tp" yaml:"atr_multiplier_tp"`
	MinRR         float64    `json:"min_rr_ratio" yaml:"min_rr_ratio"`
	MaxRR         float64    `json:"max_rr_ratio" yaml:"max_rr_ratio"`
	MinStopPct    float64    `json:"min_stop_pct" yaml:"min_stop_pct"`
	MaxStopPct    float64    `json:"max_stop_pct" yaml:"max_stop_pct"`
	SwingLookback int        `json:"swing_lookback" yaml:"swing_lookback"`
	SwingStrength int        `json:"swing_strength" yaml:"swing_strength"`
	SwingBuffer   float64    `json:"swing_buffer_pct" yaml:"swing_buffer_pct"`

	Sizing         Sizing  `json:"sizing" yaml:"sizing"`
	KellyFraction  float64 `json:"kelly_fraction" yaml:"kelly_fraction"`
	KellyMinTrades int     `json:"kelly_min_trades" yaml:"kelly_min_trades"`
	QuantityStep   float64 `json:"quantity_step" yaml:"quantity_step"`
	MinNotional    float64 `json:"min_notional" yaml:"min_notional"`
	MaxLeverage    float64 `json:"max_leverage" yaml:"max_leverage"`

	MaxTradesPerDay int            `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	Advisory        bool           `json:"use_advisory" yaml:"use_advisory"`
	AdvisoryConfig  AdvisoryConfig `json:"advisory" yaml:"advisory"`

	Calendar session.Calendar `json:"-" yaml:"-"`
	Log      zerolog.Logger   `json:"-" yaml:"-"`
}

// DefaultConfig returns the engine defaults for cal.
func DefaultConfig(cal session.Calendar) Config {
	return Config{
		Capital:             100_000,
		RiskPct:             0.01,
		MinRiskPct:          0.0025,
		MaxRiskPct:          0.02,
		EntryBeta:           0.001,
		MinEntryDistancePct: 0,
		MaxEntryDistancePct: 0.01,
		MinConfidence:       0.2,
		StopMethod:          Volatility,
		ATRPeriod:           14,
		StopATR:             1.5,
		TargetATR:           3,
		MinRR:               1.5,
		MaxRR:               5,
		MinStopPct:          0.001,
		MaxStopPct:          0.05,
		SwingLookback:       50,
		SwingStrength:       2,
		SwingBuffer:         0.001,
		Sizing:              Fixed,
		KellyFraction:       0.25,
		KellyMinTrades:      30,
		MinNotional:         10,
		MaxLeverage:         1,
		MaxTradesPerDay:     1,
		AdvisoryConfig:      DefaultAdvisoryConfig(),
		Calendar:            cal,
		Log:                 zerolog.Nop(),
	}
}

// Validate rejects out-of-range values and stop/target combinations that
// could never satisfy the reward/risk bounds.
func (c Config) Validate() error {
	bad := func(param string, v any, format string, args ...any) error {
		return errs.Config("decision", param, v, format, args...)
	}
	in := func(v, lo, hi float64) bool { return !math.IsNaN(v) && v >= lo && v <= hi }

	switch {
	case c.Capital <= 0:
		return bad("capital", c.Capital, "must be positive")
	case !in(c.RiskPct, 1e-6, 0.1):
		return bad("risk_pct", c.RiskPct, "must be within (0, 0.1]")
	case !in(c.MinRiskPct, 0, c.RiskPct):
		return bad("min_risk_pct", c.MinRiskPct, "must be within [0, risk_pct]")
	case !in(c.MaxRiskPct, c.RiskPct, 0.1):
		return bad("max_risk_pct", c.MaxRiskPct, "must be within [risk_pct, 0.1]")
	case !in(c.EntryBeta, 0, 0.05):
		return bad("entry_beta", c.EntryBeta, "must be within [0, 0.05]")
	case !in(c.MinEntryDistancePct, 0, c.MaxEntryDistancePct):
		return bad("min_entry_distance_pct", c.MinEntryDistancePct, "must be within [0, max_entry_distance_pct]")
	case !in(c.MaxEntryDistancePct, 0, 0.2):
		return bad("max_entry_distance_pct", c.MaxEntryDistancePct, "must be within [0, 0.2]")
	case !in(c.MinConfidence, 0, 1):
		return bad("min_confidence", c.MinConfidence, "must be within [0, 1]")
	case c.StopMethod != Volatility && c.StopMethod != Structural && c.StopMethod != Hybrid:
		return bad("stop_method", c.StopMethod, "want volatility, structural or hybrid")
	case c.ATRPeriod < 1:
		return bad("atr_period", c.ATRPeriod, "must be positive")
	case !in(c.StopATR, 0.01, 20):
		return bad("atr_multiplier_sl", c.StopATR, "must be within [0.01, 20]")
	case !in(c.TargetATR, 0.01, 50):
		return bad("atr_multiplier_tp", c.TargetATR, "must be within [0.01, 50]")
	case !in(c.MinRR, 0.1, 20):
		return bad("min_rr_ratio", c.MinRR, "must be within [0.1, 20]")
	case !in(c.MaxRR, c.MinRR, 50):
		return bad("max_rr_ratio", c.MaxRR, "must be within [min_rr_ratio, 50]")
	case !in(c.MinStopPct, 0, c.MaxStopPct):
		return bad("min_stop_pct", c.MinStopPct, "must be within [0, max_stop_pct]")
	case !in(c.MaxStopPct, 0.0001, 0.5):
		return bad("max_stop_pct", c.MaxStopPct, "must be within [0.0001, 0.5]")
	case c.StopMethod != Volatility && (c.SwingLookback < 3 || c.SwingStrength < 1):
		return bad("swing_lookback", c.SwingLookback, "structural stops need lookback >= 3 and strength >= 1")
	case !in(c.SwingBuffer, 0, 0.05):
		return bad("swing_buffer_pct", c.SwingBuffer, "must be within [0, 0.05]")
	case c.Sizing != Fixed && c.Sizing != Kelly:
		return bad("sizing", c.Sizing, "want fixed or kelly")
	case c.Sizing == Kelly && !in(c.KellyFraction, 0.01, 1):
		return bad("kelly_fraction", c.KellyFraction, "must be within [0.01, 1]")
	case c.QuantityStep < 0:
		return bad("quantity_step", c.QuantityStep, "must not be negative")
	case c.MinNotional < 0:
		return bad("min_notional", c.MinNotional, "must not be negative")
	case !in(c.MaxLeverage, 0.01, 10):
		return bad("max_leverage", c.MaxLeverage, "must be within [0.01, 10]")
	case c.MaxTradesPerDay != 1:
		return bad("max_trades_per_day", c.MaxTradesPerDay, "only one entry per trading day is allowed")
	case len(c.Calendar.Windows) == 0:
		return bad("trading_windows", nil, "calendar has no trading windows")
	}

	// A volatility target is a fixed multiple of the stop, so its RR is known
	// up front.
	if c.StopMethod == Volatility {
		rr := c.TargetATR / c.StopATR
		if rr < c.MinRR-1e-9 || rr > c.MaxRR+1e-9 {
			return bad("atr_multiplier_tp", c.TargetATR,
				"reward/risk %.2f of atr multipliers outside [%g, %g]", rr, c.MinRR, c.MaxRR)
		}
	}
	if c.Advisory {
		return c.AdvisoryConfig.Validate()
	}
	return nil
}
