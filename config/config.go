package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/montecarlo"
	"github.com/rustyeddy/daytrader/pipeline"
	"github.com/rustyeddy/daytrader/strategies"
	"github.com/rustyeddy/daytrader/walkforward"
)

// Config is the complete run configuration. Percentages are fractions
// (0.01 = 1%).
type Config struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Timeframe string `json:"timeframe" yaml:"timeframe"`
	Data      string `json:"data" yaml:"data"` // CSV bar file

	Capital       float64 `json:"capital" yaml:"capital"`
	RiskPct       float64 `json:"risk_pct" yaml:"risk_pct"`
	CommissionPct float64 `json:"commission_pct" yaml:"commission_pct"`
	SlippagePct   float64 `json:"slippage_pct" yaml:"slippage_pct"`

	Timezone        string   `json:"timezone" yaml:"timezone"`
	TradingWindows  []string `json:"trading_windows" yaml:"trading_windows"`
	ForcedCloseTime string   `json:"forced_close_time" yaml:"forced_close_time"`
	MaxTradesPerDay int      `json:"max_trades_per_day" yaml:"max_trades_per_day"`

	ATRPeriod int     `json:"atr_period" yaml:"atr_period"`
	StopATR   float64 `json:"atr_multiplier_sl" yaml:"atr_multiplier_sl"`
	TargetATR float64 `json:"atr_multiplier_tp" yaml:"atr_multiplier_tp"`
	MinRR     float64 `json:"min_rr_ratio" yaml:"min_rr_ratio"`
	MaxRR     float64 `json:"max_rr_ratio" yaml:"max_rr_ratio"`
	EntryBeta float64 `json:"entry_beta" yaml:"entry_beta"`

	CombinationMethod ensemble.Method `json:"combination_method" yaml:"combination_method"`
	RebalanceDays     int             `json:"rebalance_frequency_days" yaml:"rebalance_frequency_days"`

	MonteCarloTrials    int `json:"monte_carlo_trials" yaml:"monte_carlo_trials"`
	MonteCarloBlockSize int `json:"monte_carlo_block_size" yaml:"monte_carlo_block_size"`

	WalkForwardTrainDays int `json:"walk_forward_train_days" yaml:"walk_forward_train_days"`
	WalkForwardTestDays  int `json:"walk_forward_test_days" yaml:"walk_forward_test_days"`

	Strategies []pipeline.StrategySpec `json:"strategies" yaml:"strategies"`

	Ensemble    EnsembleConfig    `json:"ensemble" yaml:"ensemble"`
	Decision    DecisionConfig    `json:"decision" yaml:"decision"`
	WalkForward WalkForwardConfig `json:"walk_forward" yaml:"walk_forward"`
	MonteCarlo  MonteCarloConfig  `json:"monte_carlo" yaml:"monte_carlo"`
	Journal     JournalConfig     `json:"journal" yaml:"journal"`

	LogLevel    string `json:"log_level" yaml:"log_level"`
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// EnsembleConfig carries the combiner settings beyond the method.
type EnsembleConfig struct {
	TieBreak     ensemble.TieBreak  `json:"tie_break,omitempty" yaml:"tie_break,omitempty"`
	Seed         uint64             `json:"seed,omitempty" yaml:"seed,omitempty"`
	Threshold    float64            `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Weights      map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	MinAgreement float64            `json:"min_agreement,omitempty" yaml:"min_agreement,omitempty"`
	WindowDays   int                `json:"performance_window_days,omitempty" yaml:"performance_window_days,omitempty"`
}

// DecisionConfig carries the decision engine settings not shared with the
// backtest.
type DecisionConfig struct {
	StopMethod          decision.StopMethod `json:"stop_method" yaml:"stop_method"`
	Sizing              decision.Sizing     `json:"sizing" yaml:"sizing"`
	MinConfidence       float64             `json:"min_confidence" yaml:"min_confidence"`
	MinEntryDistancePct float64             `json:"min_entry_distance_pct" yaml:"min_entry_distance_pct"`
	MaxEntryDistancePct float64             `json:"max_entry_distance_pct" yaml:"max_entry_distance_pct"`
	MinStopPct          float64             `json:"min_stop_pct" yaml:"min_stop_pct"`
	MaxStopPct          float64             `json:"max_stop_pct" yaml:"max_stop_pct"`
	KellyFraction       float64             `json:"kelly_fraction" yaml:"kelly_fraction"`
	KellyMinTrades      int                 `json:"kelly_min_trades,omitempty" yaml:"kelly_min_trades,omitempty"`
	UseAdvisory         bool                `json:"use_advisory" yaml:"use_advisory"`
}

type WalkForwardConfig struct {
	Strategy  string              `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Ranges    []walkforward.Range `json:"ranges,omitempty" yaml:"ranges,omitempty"`
	Search    walkforward.Search  `json:"search,omitempty" yaml:"search,omitempty"`
	Trials    int                 `json:"trials,omitempty" yaml:"trials,omitempty"`
	Objective string              `json:"objective,omitempty" yaml:"objective,omitempty"`
	Mode      walkforward.Mode    `json:"mode,omitempty" yaml:"mode,omitempty"`
	StepDays  int                 `json:"walk_forward_step_days,omitempty" yaml:"walk_forward_step_days,omitempty"`
	Seed      uint64              `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type MonteCarloConfig struct {
	Mode          montecarlo.Mode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Seed          uint64          `json:"seed,omitempty" yaml:"seed,omitempty"`
	RuinThreshold float64         `json:"ruin_threshold,omitempty" yaml:"ruin_threshold,omitempty"`
}

// JournalConfig selects the sink. Path is a database file for sqlite and a
// directory for csv.
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON),
// applies environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON
// otherwise).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the top-level fields and then every component config the
// builders produce.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return errs.Config("config", "symbol", c.Symbol, "is required")
	}
	if c.Timeframe == "" {
		return errs.Config("config", "timeframe", c.Timeframe, "is required")
	}
	if len(c.Strategies) == 0 {
		return errs.Config("config", "strategies", nil, "at least one strategy is required")
	}
	for _, spec := range c.Strategies {
		if _, err := strategies.New(spec.Name, spec.Params); err != nil {
			return err
		}
	}
	switch c.Journal.Type {
	case "none", "":
	case "sqlite", "csv":
		if c.Journal.Path == "" {
			return errs.Config("config", "journal.path", c.Journal.Path, "required for %s journals", c.Journal.Type)
		}
	default:
		return errs.Config("config", "journal.type", c.Journal.Type, "want sqlite, csv or none")
	}

	cal, err := c.Calendar()
	if err != nil {
		return err
	}
	bt := c.Backtest(cal)
	if err := bt.Validate(); err != nil {
		return err
	}
	if err := c.DecisionConfig(cal).Validate(); err != nil {
		return err
	}
	if _, err := ensemble.New(c.EnsembleConfig()); err != nil {
		return err
	}
	if err := c.MonteCarloConfig().Validate(); err != nil {
		return err
	}
	if c.WalkForward.Strategy != "" {
		if err := c.WalkForwardConfig(bt).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	mc := montecarlo.DefaultConfig()
	ens := ensemble.DefaultConfig()
	return &Config{
		Symbol:          "SPY",
		Timeframe:       "15m",
		Data:            "./data/SPY_15m.csv",
		Capital:         100_000,
		RiskPct:         0.01,
		CommissionPct:   0.0005,
		SlippagePct:     0.0002,
		Timezone:        "America/New_York",
		TradingWindows:  []string{"10:00-11:30", "14:30-15:30"},
		ForcedCloseTime: "15:55",
		MaxTradesPerDay: 1,
		ATRPeriod:       14,
		StopATR:         1.5,
		TargetATR:       3,
		MinRR:           1.5,
		MaxRR:           5,
		EntryBeta:       0.001,

		CombinationMethod: ens.Method,
		RebalanceDays:     ens.RebalanceDays,

		MonteCarloTrials:    mc.Trials,
		MonteCarloBlockSize: mc.BlockSize,

		WalkForwardTrainDays: 60,
		WalkForwardTestDays:  20,

		Strategies: []pipeline.StrategySpec{
			{Name: strategies.TrendCross},
			{Name: strategies.MomentumRegime},
			{Name: strategies.MeanReversion},
		},
		Decision: DecisionConfig{
			StopMethod:          decision.Volatility,
			Sizing:              decision.Fixed,
			MinConfidence:       0.2,
			MaxEntryDistancePct: 0.01,
			MinStopPct:          0.001,
			MaxStopPct:          0.05,
			KellyFraction:       0.25,
		},
		WalkForward: WalkForwardConfig{
			Search:    walkforward.SearchGrid,
			Objective: "sharpe",
			Mode:      walkforward.Rolling,
		},
		MonteCarlo: MonteCarloConfig{
			Mode:          mc.Mode,
			RuinThreshold: mc.RuinThreshold,
		},
		Journal: JournalConfig{
			Type: "sqlite",
			Path: "./trader.sqlite",
		},
		LogLevel: "info",
	}
}
