// Package walkforward tunes one strategy's parameters on rolling or anchored
// train windows and scores the winners on the following unseen test window.
package walkforward

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/internal/metrics"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/performance"
	"github.com/rustyeddy/daytrader/strategies"
)

type Search string

const (
	SearchGrid   Search = "grid"
	SearchRandom Search = "random"
)

type Mode string

const (
	Rolling  Mode = "rolling"
	Anchored Mode = "anchored"
)

// Objectives lists the metric names a run may maximise.
var Objectives = []string{"sharpe", "sortino", "calmar", "total_return", "profit_factor", "expectancy"}

type Config struct {
	Strategy  string            `json:"strategy" yaml:"strategy"`
	Fixed     strategies.Params `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Ranges    []Range           `json:"ranges" yaml:"ranges"`
	Search    Search            `json:"search" yaml:"search"`
	Trials    int               `json:"trials" yaml:"trials"` // random search only
	Seed      uint64            `json:"seed" yaml:"seed"`
	Objective string            `json:"objective" yaml:"objective"`

	TrainDays int  `json:"walk_forward_train_days" yaml:"walk_forward_train_days"`
	TestDays  int  `json:"walk_forward_test_days" yaml:"walk_forward_test_days"`
	StepDays  int  `json:"walk_forward_step_days" yaml:"walk_forward_step_days"` // 0 means TestDays
	Mode      Mode `json:"mode" yaml:"mode"`
	Workers   int  `json:"workers" yaml:"workers"` // 0 means GOMAXPROCS

	Backtest backtest.Config `json:"-" yaml:"-"`
	Log      zerolog.Logger  `json:"-" yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.Search == "" {
		c.Search = SearchGrid
	}
	if c.Mode == "" {
		c.Mode = Rolling
	}
	if c.Objective == "" {
		c.Objective = "sharpe"
	}
	if c.StepDays == 0 {
		c.StepDays = c.TestDays
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Search == SearchRandom && c.Trials == 0 {
		c.Trials = 50
	}
	return c
}

// Validate checks the run configuration, including the embedded backtest
// config.
func (c Config) Validate() error {
	c = c.withDefaults()
	if !slices.Contains(Objectives, c.Objective) {
		return errs.Config("walkforward", "objective", c.Objective, "supported: %v", Objectives)
	}
	if c.Search != SearchGrid && c.Search != SearchRandom {
		return errs.Config("walkforward", "search", c.Search, "want grid or random")
	}
	if c.Mode != Rolling && c.Mode != Anchored {
		return errs.Config("walkforward", "mode", c.Mode, "want rolling or anchored")
	}
	if c.TrainDays <= 0 {
		return errs.Config("walkforward", "walk_forward_train_days", c.TrainDays, "must be positive")
	}
	if c.TestDays <= 0 {
		return errs.Config("walkforward", "walk_forward_test_days", c.TestDays, "must be positive")
	}
	if c.StepDays < 0 {
		return errs.Config("walkforward", "walk_forward_step_days", c.StepDays, "must be positive")
	}
	if c.Trials < 0 {
		return errs.Config("walkforward", "trials", c.Trials, "must be positive")
	}
	if err := checkRanges(c.Strategy, c.Ranges); err != nil {
		return err
	}
	return c.Backtest.Validate()
}

// Split is one train/test fold. Times are the first and last bar timestamps
// of each window.
type Split struct {
	Index      int   `json:"index"`
	TrainStart int64 `json:"train_start"`
	TrainEnd   int64 `json:"train_end"`
	TestStart  int64 `json:"test_start"`
	TestEnd    int64 `json:"test_end"`

	Best         strategies.Params   `json:"best_params"`
	Trials       int                 `json:"trials"`
	InSample     performance.Metrics `json:"in_sample"`
	OutOfSample  performance.Metrics `json:"out_of_sample"`
	ISObjective  float64             `json:"is_objective"`
	OOSObjective float64             `json:"oos_objective"`
	OOSTrades    []backtest.Trade    `json:"oos_trades"`
}

type Report struct {
	Strategy  string  `json:"strategy"`
	Objective string  `json:"objective"`
	Splits    []Split `json:"splits"`
	// Efficiency is mean OOS objective over mean IS objective; 0 when the
	// IS mean is 0.
	Efficiency float64 `json:"efficiency"`
	// Consistency is the share of splits with a positive OOS objective.
	Consistency float64 `json:"consistency"`
}

// TradePnLs concatenates the out-of-sample trade PnLs of every split.
func (r *Report) TradePnLs() []float64 {
	var out []float64
	for _, s := range r.Splits {
		for _, t := range s.OOSTrades {
			out = append(out, t.PnL)
		}
	}
	return out
}

// fold holds bar indices: train is [trainLo, trainHi), test [trainHi, testHi).
type fold struct {
	trainLo, trainHi, testHi int
}

// folds cuts bars into walk-forward folds on local trading-day boundaries.
func folds(bars market.Series, cfg Config) []fold {
	cal := cfg.Backtest.Calendar
	var starts []int
	prev := ""
	for i, b := range bars {
		if d := cal.Day(b.Timestamp); d != prev {
			starts = append(starts, i)
			prev = d
		}
	}
	at := func(day int) int {
		if day >= len(starts) {
			return len(bars)
		}
		return starts[day]
	}

	var out []fold
	for s := 0; ; s += cfg.StepDays {
		from, to := s, s+cfg.TrainDays
		if cfg.Mode == Anchored {
			from = 0
		}
		if to+cfg.TestDays > len(starts) {
			break
		}
		out = append(out, fold{trainLo: at(from), trainHi: at(to), testHi: at(to + cfg.TestDays)})
	}
	return out
}

type trial struct {
	params strategies.Params
	score  float64
	res    *backtest.Result
	ok     bool
}

// Run walks forward over bars. On cancellation it returns the splits that
// finished together with the context error.
func Run(ctx context.Context, bars market.Series, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	engine, err := backtest.New(cfg.Backtest)
	if err != nil {
		return nil, err
	}
	fs := folds(bars, cfg)
	if len(fs) == 0 {
		return nil, errs.Data(bars.Symbol(), bars.Timeframe(), -1,
			"insufficient history: need %d trading days", cfg.TrainDays+cfg.TestDays)
	}

	rep := &Report{Strategy: cfg.Strategy, Objective: cfg.Objective}
	log := cfg.Log.With().Str("strategy", cfg.Strategy).Str("symbol", bars.Symbol()).Logger()
	for k, f := range fs {
		if err := ctx.Err(); err != nil {
			return rep.finish(), err
		}
		split, err := runSplit(ctx, engine, bars, f, k, cfg)
		if err != nil {
			return rep.finish(), err
		}
		log.Info().
			Int("split", k).
			Float64("is", split.ISObjective).
			Float64("oos", split.OOSObjective).
			Msg("walk-forward split")
		rep.Splits = append(rep.Splits, split)
	}
	return rep.finish(), nil
}

func runSplit(ctx context.Context, engine *backtest.Engine, bars market.Series, f fold, k int, cfg Config) (Split, error) {
	var candidates []strategies.Params
	switch cfg.Search {
	case SearchRandom:
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(k)))
		candidates = Random(cfg.Fixed, cfg.Ranges, cfg.Trials, rng)
	default:
		candidates = Grid(cfg.Fixed, cfg.Ranges)
	}

	train := bars[f.trainLo:f.trainHi]
	trials := make([]trial, len(candidates))
	counter := metrics.TrialsTotal.WithLabelValues("walkforward")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, p := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := evaluate(engine, cfg.Strategy, p, train, 0)
			counter.Inc()
			if err != nil {
				if errs.IsConfig(err) {
					// Invalid combination, e.g. fast >= slow.
					trials[i] = trial{params: p}
					return nil
				}
				return err
			}
			trials[i] = trial{params: p, res: res, score: objective(res.Metrics, cfg.Objective), ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Split{}, err
	}

	best := -1
	for i, t := range trials {
		if t.ok && (best < 0 || t.score > trials[best].score) {
			best = i
		}
	}
	if best < 0 {
		return Split{}, errs.Config("walkforward", "ranges", nil, "no valid parameter combination for %s", cfg.Strategy)
	}

	window := bars[f.trainLo:f.testHi]
	oos, err := evaluate(engine, cfg.Strategy, trials[best].params, window, f.trainHi-f.trainLo)
	if err != nil {
		return Split{}, err
	}
	return Split{
		Index:        k,
		TrainStart:   bars[f.trainLo].Timestamp,
		TrainEnd:     bars[f.trainHi-1].Timestamp,
		TestStart:    bars[f.trainHi].Timestamp,
		TestEnd:      bars[f.testHi-1].Timestamp,
		Best:         trials[best].params,
		Trials:       len(trials),
		InSample:     trials[best].res.Metrics,
		OutOfSample:  oos.Metrics,
		ISObjective:  trials[best].score,
		OOSObjective: objective(oos.Metrics, cfg.Objective),
		OOSTrades:    oos.Trades,
	}, nil
}

// evaluate backtests params on bars, trading from start onward.
func evaluate(engine *backtest.Engine, name string, params strategies.Params, bars market.Series, start int) (*backtest.Result, error) {
	strat, err := strategies.New(name, params)
	if err != nil {
		return nil, err
	}
	return engine.RunFrom(bars, strategies.Values(strat.Generate(bars)), start)
}

func objective(m performance.Metrics, name string) float64 {
	v, _ := m.Get(name)
	return v
}

func (r *Report) finish() *Report {
	r.Efficiency, r.Consistency = 0, 0
	if len(r.Splits) == 0 {
		return r
	}
	is := make([]float64, len(r.Splits))
	oos := make([]float64, len(r.Splits))
	positive := 0
	for i, s := range r.Splits {
		is[i], oos[i] = s.ISObjective, s.OOSObjective
		if s.OOSObjective > 0 {
			positive++
		}
	}
	if m := stat.Mean(is, nil); m != 0 && !math.IsNaN(m) {
		r.Efficiency = stat.Mean(oos, nil) / m
	}
	r.Consistency = float64(positive) / float64(len(r.Splits))
	return r
}
