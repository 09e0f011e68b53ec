package config

import (
	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/montecarlo"
	"github.com/rustyeddy/daytrader/pipeline"
	"github.com/rustyeddy/daytrader/session"
	"github.com/rustyeddy/daytrader/walkforward"
)

// Calendar parses the session settings.
func (c *Config) Calendar() (session.Calendar, error) {
	return session.NewCalendar(c.Timezone, c.TradingWindows, c.ForcedCloseTime)
}

func (c *Config) Backtest(cal session.Calendar) backtest.Config {
	bt := backtest.DefaultConfig(cal)
	bt.Symbol = c.Symbol
	bt.Capital = c.Capital
	bt.RiskPct = c.RiskPct
	bt.CommissionPct = c.CommissionPct
	bt.SlippagePct = c.SlippagePct
	bt.MaxTradesPerDay = c.MaxTradesPerDay
	bt.ATRPeriod = c.ATRPeriod
	bt.StopATR = c.StopATR
	bt.TargetATR = c.TargetATR
	return bt
}

func (c *Config) DecisionConfig(cal session.Calendar) decision.Config {
	d := decision.DefaultConfig(cal)
	d.Capital = c.Capital
	d.RiskPct = c.RiskPct
	d.MinRiskPct = min(d.MinRiskPct, c.RiskPct)
	d.MaxRiskPct = max(d.MaxRiskPct, c.RiskPct)
	d.EntryBeta = c.EntryBeta
	d.ATRPeriod = c.ATRPeriod
	d.StopATR = c.StopATR
	d.TargetATR = c.TargetATR
	d.MinRR = c.MinRR
	d.MaxRR = c.MaxRR
	d.MaxTradesPerDay = c.MaxTradesPerDay

	dc := c.Decision
	d.StopMethod = dc.StopMethod
	d.Sizing = dc.Sizing
	d.MinConfidence = dc.MinConfidence
	d.MinEntryDistancePct = dc.MinEntryDistancePct
	d.MaxEntryDistancePct = dc.MaxEntryDistancePct
	d.MinStopPct = dc.MinStopPct
	d.MaxStopPct = dc.MaxStopPct
	d.KellyFraction = dc.KellyFraction
	if dc.KellyMinTrades > 0 {
		d.KellyMinTrades = dc.KellyMinTrades
	}
	d.Advisory = dc.UseAdvisory
	return d
}

func (c *Config) EnsembleConfig() ensemble.Config {
	e := ensemble.DefaultConfig()
	e.Method = c.CombinationMethod
	e.RebalanceDays = c.RebalanceDays
	ec := c.Ensemble
	if ec.TieBreak != "" {
		e.TieBreak = ec.TieBreak
	}
	e.Seed = ec.Seed
	e.Threshold = ec.Threshold
	e.Weights = ec.Weights
	if ec.MinAgreement > 0 {
		e.MinAgreement = ec.MinAgreement
	}
	if ec.WindowDays > 0 {
		e.WindowDays = ec.WindowDays
	}
	return e
}

func (c *Config) MonteCarloConfig() montecarlo.Config {
	m := montecarlo.DefaultConfig()
	m.Trials = c.MonteCarloTrials
	m.BlockSize = c.MonteCarloBlockSize
	m.Capital = c.Capital
	if c.MonteCarlo.Mode != "" {
		m.Mode = c.MonteCarlo.Mode
	}
	m.Seed = c.MonteCarlo.Seed
	if c.MonteCarlo.RuinThreshold > 0 {
		m.RuinThreshold = c.MonteCarlo.RuinThreshold
	}
	return m
}

// WalkForwardConfig tunes the walk_forward strategy, holding the parameters
// of its entry in strategies fixed.
func (c *Config) WalkForwardConfig(bt backtest.Config) walkforward.Config {
	wf := c.WalkForward
	cfg := walkforward.Config{
		Strategy:  wf.Strategy,
		Ranges:    wf.Ranges,
		Search:    wf.Search,
		Trials:    wf.Trials,
		Seed:      wf.Seed,
		Objective: wf.Objective,
		TrainDays: c.WalkForwardTrainDays,
		TestDays:  c.WalkForwardTestDays,
		StepDays:  wf.StepDays,
		Mode:      wf.Mode,
		Backtest:  bt,
	}
	for _, s := range c.Strategies {
		if s.Name == wf.Strategy {
			cfg.Fixed = s.Params
			break
		}
	}
	return cfg
}

// Pipeline builds the pipeline configuration, stamping log onto every
// component.
func (c *Config) Pipeline(log zerolog.Logger) (pipeline.Config, error) {
	cal, err := c.Calendar()
	if err != nil {
		return pipeline.Config{}, err
	}
	bt := c.Backtest(cal)
	bt.Log = log
	dec := c.DecisionConfig(cal)
	dec.Log = log
	return pipeline.Config{
		Symbol:     c.Symbol,
		Timeframe:  c.Timeframe,
		Dataset:    c.Data,
		Strategies: c.Strategies,
		Ensemble:   c.EnsembleConfig(),
		Backtest:   bt,
		Decision:   dec,
		Log:        log,
	}, nil
}
