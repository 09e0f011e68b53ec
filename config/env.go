package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/errs"
)

// EnvPrefix prefixes every environment override, e.g. TRADER_RISK_PCT.
const EnvPrefix = "TRADER_"

// LoadDotEnv loads the given .env files (".env" when none are named) into
// the process environment. Missing files are ignored and variables already
// set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

type override struct {
	key string
	set func(string) error
}

func (c *Config) overrides() []override {
	return []override{
		strVar("symbol", &c.Symbol),
		strVar("timeframe", &c.Timeframe),
		strVar("data", &c.Data),
		floatVar("capital", &c.Capital),
		floatVar("risk_pct", &c.RiskPct),
		floatVar("commission_pct", &c.CommissionPct),
		floatVar("slippage_pct", &c.SlippagePct),
		strVar("timezone", &c.Timezone),
		listVar("trading_windows", &c.TradingWindows),
		strVar("forced_close_time", &c.ForcedCloseTime),
		intVar("max_trades_per_day", &c.MaxTradesPerDay),
		intVar("atr_period", &c.ATRPeriod),
		floatVar("atr_multiplier_sl", &c.StopATR),
		floatVar("atr_multiplier_tp", &c.TargetATR),
		floatVar("min_rr_ratio", &c.MinRR),
		floatVar("max_rr_ratio", &c.MaxRR),
		floatVar("entry_beta", &c.EntryBeta),
		{"combination_method", func(v string) error { c.CombinationMethod = ensemble.Method(v); return nil }},
		intVar("rebalance_frequency_days", &c.RebalanceDays),
		intVar("monte_carlo_trials", &c.MonteCarloTrials),
		intVar("monte_carlo_block_size", &c.MonteCarloBlockSize),
		intVar("walk_forward_train_days", &c.WalkForwardTrainDays),
		intVar("walk_forward_test_days", &c.WalkForwardTestDays),
		{"stop_method", func(v string) error { c.Decision.StopMethod = decision.StopMethod(v); return nil }},
		{"sizing", func(v string) error { c.Decision.Sizing = decision.Sizing(v); return nil }},
		floatVar("min_confidence", &c.Decision.MinConfidence),
		intVar("kelly_min_trades", &c.Decision.KellyMinTrades),
		strVar("journal_type", &c.Journal.Type),
		strVar("journal_path", &c.Journal.Path),
		strVar("log_level", &c.LogLevel),
		strVar("metrics_addr", &c.MetricsAddr),
	}
}

// ApplyEnv overrides fields from TRADER_<KEY> variables, where KEY is the
// upper-cased configuration key. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, o := range c.overrides() {
		name := EnvPrefix + strings.ToUpper(o.key)
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := o.set(strings.TrimSpace(v)); err != nil {
			return errs.Config("config", o.key, v, "bad %s: %v", name, err)
		}
	}
	return nil
}

func strVar(key string, p *string) override {
	return override{key, func(v string) error { *p = v; return nil }}
}

func floatVar(key string, p *float64) override {
	return override{key, func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*p = f
		}
		return err
	}}
}

func intVar(key string, p *int) override {
	return override{key, func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*p = n
		}
		return err
	}}
}

// listVar splits on commas, e.g. TRADER_TRADING_WINDOWS=10:00-11:30,14:30-15:30.
func listVar(key string, p *[]string) override {
	return override{key, func(v string) error {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*p = out
		return nil
	}}
}
