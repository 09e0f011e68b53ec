package backtest

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/session"
)

// Config controls the simulated execution. Money fields are in account
// currency; percentages are fractions (0.01 = 1%).
type Config struct {
	Symbol string `json:"symbol"`

	Capital      float64 `json:"capital"`
	RiskPct      float64 `json:"risk_pct"`
	MaxLeverage  float64 `json:"max_leverage"`
	QuantityStep float64 `json:"quantity_step"`
	MinNotional  float64 `json:"min_notional"`

	// Stops and targets are ATR multiples fixed at entry.
	ATRPeriod int     `json:"atr_period"`
	StopATR   float64 `json:"atr_multiplier_sl"`
	TargetATR float64 `json:"atr_multiplier_tp"`

	CommissionPct float64 `json:"commission_pct"`
	SlippagePct   float64 `json:"slippage_pct"`

	// EntryThreshold is the |signal| a bar must exceed to be a candidate.
	EntryThreshold float64 `json:"entry_threshold"`
	ExitOnOpposite bool    `json:"exit_on_opposite"`

	MaxTradesPerDay int     `json:"max_trades_per_day"`
	RiskFreeRate    float64 `json:"risk_free_rate"`

	Calendar session.Calendar `json:"-"`
	Log      zerolog.Logger   `json:"-"`
}

// DefaultConfig returns the engine defaults with the given calendar.
func DefaultConfig(cal session.Calendar) Config {
	return Config{
		Capital:         100_000,
		RiskPct:         0.01,
		MaxLeverage:     1,
		ATRPeriod:       14,
		StopATR:         1.5,
		TargetATR:       3,
		CommissionPct:   0.0005,
		SlippagePct:     0.0002,
		ExitOnOpposite:  true,
		MaxTradesPerDay: 1,
		Calendar:        cal,
		Log:             zerolog.Nop(),
	}
}

// Validate returns the first out-of-range field as a ConfigError.
func (c Config) Validate() error {
	check := func(param string, v, lo, hi float64) error {
		if math.IsNaN(v) || v < lo || v > hi {
			return errs.Config("backtest", param, v, "must be within [%g, %g]", lo, hi)
		}
		return nil
	}
	if c.Capital <= 0 {
		return errs.Config("backtest", "capital", c.Capital, "must be positive")
	}
	for _, chk := range []error{
		check("risk_pct", c.RiskPct, 1e-6, 0.1),
		check("max_leverage", c.MaxLeverage, 0.01, 10),
		check("quantity_step", c.QuantityStep, 0, math.MaxFloat64),
		check("min_notional", c.MinNotional, 0, math.MaxFloat64),
		check("atr_period", float64(c.ATRPeriod), 1, 500),
		check("atr_multiplier_sl", c.StopATR, 0.01, 20),
		check("atr_multiplier_tp", c.TargetATR, 0.01, 50),
		check("commission_pct", c.CommissionPct, 0, 0.05),
		check("slippage_pct", c.SlippagePct, 0, 0.05),
		check("entry_threshold", c.EntryThreshold, 0, 0.999),
		check("risk_free_rate", c.RiskFreeRate, -0.1, 0.5),
	} {
		if chk != nil {
			return chk
		}
	}
	if c.MaxTradesPerDay != 1 {
		return errs.Config("backtest", "max_trades_per_day", c.MaxTradesPerDay, "only one entry per trading day is allowed")
	}
	if len(c.Calendar.Windows) == 0 {
		return errs.Config("backtest", "trading_windows", nil, "calendar has no trading windows")
	}
	return nil
}
