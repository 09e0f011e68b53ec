package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/walkforward"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "SPY", cfg.Symbol)
	assert.Equal(t, 0.01, cfg.RiskPct)
	assert.Equal(t, ensemble.Average, cfg.CombinationMethod)
	assert.Equal(t, 1000, cfg.MonteCarloTrials)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing symbol", func(c *Config) { c.Symbol = "" }, "symbol"},
		{"no strategies", func(c *Config) { c.Strategies = nil }, "strategies"},
		{"unknown strategy", func(c *Config) { c.Strategies[0].Name = "tea_leaves" }, "strategy"},
		{"risk too high", func(c *Config) { c.RiskPct = 0.5 }, "risk_pct"},
		{"two trades per day", func(c *Config) { c.MaxTradesPerDay = 2 }, "max_trades_per_day"},
		{"bad window", func(c *Config) { c.TradingWindows = []string{"11:00-10:00"} }, "trading_windows"},
		{"target below rr", func(c *Config) { c.TargetATR = 1 }, "atr_multiplier_tp"},
		{"unknown method", func(c *Config) { c.CombinationMethod = "astrology" }, "combination_method"},
		{"block size too large", func(c *Config) { c.MonteCarloBlockSize = -1 }, "monte_carlo_block_size"},
		{"journal type", func(c *Config) { c.Journal.Type = "postgres" }, "journal.type"},
		{"journal path", func(c *Config) { c.Journal.Path = "" }, "journal.path"},
		{"no journal", func(c *Config) { c.Journal = JournalConfig{Type: "none"} }, ""},
		{"walk forward days", func(c *Config) {
			c.WalkForward.Strategy = "trend_cross"
			c.WalkForwardTestDays = 0
		}, "walk_forward_test_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errs.IsConfig(err), err.Error())
			assert.Contains(t, err.Error(), tt.param)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategies[0].Params = map[string]float64{"fast_period": 10, "slow_period": 30}
			cfg.WalkForward.Strategy = "trend_cross"
			cfg.WalkForward.Ranges = []walkforward.Range{{Name: "fast_period", Min: 5, Max: 15, Step: 5, Integer: true}}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol: QQQ\nrisk_pct: 0.005\ntrading_windows: [\"09:45-10:45\"]\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "QQQ", cfg.Symbol)
	assert.Equal(t, 0.005, cfg.RiskPct)
	assert.Equal(t, []string{"09:45-10:45"}, cfg.TradingWindows)
	assert.Equal(t, Default().StopATR, cfg.StopATR)
}

func TestLoadInvalidFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk_pct: [\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "tried YAML and JSON")
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"TRADER_SYMBOL":             "IWM",
		"TRADER_RISK_PCT":           "0.02",
		"TRADER_TRADING_WINDOWS":    "10:00-11:00, 13:00-14:00",
		"TRADER_MONTE_CARLO_TRIALS": "250",
		"TRADER_STOP_METHOD":        "hybrid",
		"TRADER_COMBINATION_METHOD": "vote",
		"TRADER_KELLY_MIN_TRADES":   "12",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "IWM", cfg.Symbol)
	assert.Equal(t, 0.02, cfg.RiskPct)
	assert.Equal(t, []string{"10:00-11:00", "13:00-14:00"}, cfg.TradingWindows)
	assert.Equal(t, 250, cfg.MonteCarloTrials)
	assert.Equal(t, decision.Hybrid, cfg.Decision.StopMethod)
	assert.Equal(t, ensemble.Vote, cfg.CombinationMethod)
	assert.Equal(t, 12, cfg.Decision.KellyMinTrades)
	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.DecisionConfig(cal).KellyMinTrades)
	assert.NoError(t, cfg.Validate())

	env["TRADER_CAPITAL"] = "lots"
	err = Default().ApplyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRADER_CAPITAL")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TRADER_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("TRADER_TEST_DOTENV", "")
	os.Unsetenv("TRADER_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("TRADER_TEST_DOTENV"))
}

func TestBuilders(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.RiskPct = 0.001
	cfg.Decision.StopMethod = decision.Structural
	cfg.Ensemble.Weights = map[string]float64{"trend_cross": 2}
	cfg.WalkForward.Strategy = "trend_cross"

	p, err := cfg.Pipeline(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "SPY", p.Symbol)
	assert.Len(t, p.Strategies, 3)
	assert.Equal(t, 0.001, p.Backtest.RiskPct)
	assert.Equal(t, 0.001, p.Decision.RiskPct)
	assert.LessOrEqual(t, p.Decision.MinRiskPct, p.Decision.RiskPct)
	assert.Equal(t, decision.Structural, p.Decision.StopMethod)
	assert.Equal(t, 2.0, p.Ensemble.Weights["trend_cross"])
	require.Len(t, p.Decision.Calendar.Windows, 2)
	assert.NoError(t, p.Decision.Validate())

	wf := cfg.WalkForwardConfig(p.Backtest)
	assert.Equal(t, 60, wf.TrainDays)
	assert.Equal(t, 20, wf.TestDays)

	mc := cfg.MonteCarloConfig()
	assert.Equal(t, cfg.Capital, mc.Capital)
	assert.Equal(t, 5, mc.BlockSize)
}
