// Package montecarlo measures how much of a backtest's result depends on the
// order of its returns. Each trial resamples the series in contiguous blocks,
// rebuilds the equity path and records return, drawdown and Sharpe.
//
// Trial i always draws from a PCG stream seeded by (Seed, i), so a report is
// identical for any worker count.
package montecarlo

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/internal/metrics"
	"github.com/rustyeddy/daytrader/performance"
)

type Mode string

const (
	// Permutation shuffles the order of non-overlapping blocks.
	Permutation Mode = "permutation"
	// Bootstrap draws overlapping blocks with replacement.
	Bootstrap Mode = "bootstrap"
)

// Kind says how the input series builds an equity path.
type Kind string

const (
	// Returns are per-period simple returns compounded from 1.
	Returns Kind = "returns"
	// PnL are trade profits added to Capital.
	PnL Kind = "pnl"
)

type Config struct {
	Trials         int     `json:"monte_carlo_trials" yaml:"monte_carlo_trials"`
	BlockSize      int     `json:"monte_carlo_block_size" yaml:"monte_carlo_block_size"`
	Mode           Mode    `json:"mode" yaml:"mode"`
	Seed           uint64  `json:"seed" yaml:"seed"`
	RuinThreshold  float64 `json:"ruin_threshold" yaml:"ruin_threshold"` // fraction of capital lost
	Capital        float64 `json:"capital" yaml:"capital"`               // PnL series only
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`
	Workers        int     `json:"workers" yaml:"workers"`

	Log zerolog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns 1000 block permutations of size 5.
func DefaultConfig() Config {
	return Config{
		Trials:         1000,
		BlockSize:      5,
		Mode:           Permutation,
		RuinThreshold:  0.5,
		Capital:        100_000,
		PeriodsPerYear: 252,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Trials == 0 {
		c.Trials = d.Trials
	}
	if c.BlockSize == 0 {
		c.BlockSize = d.BlockSize
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.RuinThreshold == 0 {
		c.RuinThreshold = d.RuinThreshold
	}
	if c.Capital == 0 {
		c.Capital = d.Capital
	}
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = d.PeriodsPerYear
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.Trials < 1 || c.Trials > 1_000_000:
		return errs.Config("montecarlo", "monte_carlo_trials", c.Trials, "must be within [1, 1000000]")
	case c.BlockSize < 1:
		return errs.Config("montecarlo", "monte_carlo_block_size", c.BlockSize, "must be positive")
	case c.Mode != Permutation && c.Mode != Bootstrap:
		return errs.Config("montecarlo", "mode", c.Mode, "want permutation or bootstrap")
	case c.RuinThreshold <= 0 || c.RuinThreshold > 1:
		return errs.Config("montecarlo", "ruin_threshold", c.RuinThreshold, "must be within (0, 1]")
	case c.Capital < 0:
		return errs.Config("montecarlo", "capital", c.Capital, "must be positive")
	case c.PeriodsPerYear < 0:
		return errs.Config("montecarlo", "periods_per_year", c.PeriodsPerYear, "must be positive")
	}
	return nil
}

// Interval is a two-sided empirical confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Outcome is what one path produced.
type Outcome struct {
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Sharpe      float64 `json:"sharpe"`
	Ruined      bool    `json:"ruined"`
}

type Report struct {
	Mode      Mode `json:"mode"`
	Kind      Kind `json:"kind"`
	BlockSize int  `json:"block_size"`
	Requested int  `json:"requested_trials"`
	Trials    int  `json:"completed_trials"`

	Observed Outcome `json:"observed"`

	ProbProfit float64 `json:"prob_profit"`
	RiskOfRuin float64 `json:"risk_of_ruin"`

	ExpectedMaxDrawdown float64 `json:"expected_max_drawdown"`
	MedianMaxDrawdown   float64 `json:"median_max_drawdown"`
	WorstMaxDrawdown    float64 `json:"worst_max_drawdown"`

	MeanReturn   float64  `json:"mean_return"`
	MedianReturn float64  `json:"median_return"`
	Return95     Interval `json:"return_ci_95"`
	Return99     Interval `json:"return_ci_99"`
	Sharpe95     Interval `json:"sharpe_ci_95"`
	Sharpe99     Interval `json:"sharpe_ci_99"`
}

// Analyze runs the trials over series. On cancellation it returns statistics
// over the trials that completed together with the context error.
func Analyze(ctx context.Context, series []float64, kind Kind, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if kind != Returns && kind != PnL {
		return nil, errs.Config("montecarlo", "kind", kind, "want returns or pnl")
	}
	if len(series) == 0 {
		return nil, errs.Data("", "", -1, "monte carlo needs a non-empty %s series", kind)
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errs.Data("", "", i, "non-finite %s value", kind)
		}
	}
	if kind == PnL && cfg.Capital <= 0 {
		return nil, errs.Config("montecarlo", "capital", cfg.Capital, "pnl series needs starting capital")
	}

	block := min(cfg.BlockSize, len(series))
	outcomes := make([]Outcome, cfg.Trials)
	done := make([]bool, cfg.Trials)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Trials; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			var path []float64
			switch cfg.Mode {
			case Bootstrap:
				path = bootstrap(series, block, rng)
			default:
				path = permute(series, block, rng)
			}
			outcomes[i] = evaluate(path, kind, cfg)
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	completed := make([]Outcome, 0, cfg.Trials)
	for i, ok := range done {
		if ok {
			completed = append(completed, outcomes[i])
		}
	}
	metrics.TrialsTotal.WithLabelValues("montecarlo").Add(float64(len(completed)))
	rep := summarise(completed)
	rep.Mode, rep.Kind, rep.BlockSize, rep.Requested = cfg.Mode, kind, block, cfg.Trials
	rep.Observed = evaluate(series, kind, cfg)

	cfg.Log.Info().
		Str("mode", string(cfg.Mode)).
		Int("trials", rep.Trials).
		Float64("prob_profit", rep.ProbProfit).
		Float64("risk_of_ruin", rep.RiskOfRuin).
		Msg("monte carlo finished")
	return rep, err
}

// permute cuts series into consecutive blocks and shuffles their order.
func permute(series []float64, block int, rng *rand.Rand) []float64 {
	var blocks [][]float64
	for lo := 0; lo < len(series); lo += block {
		blocks = append(blocks, series[lo:min(lo+block, len(series))])
	}
	rng.Shuffle(len(blocks), func(a, b int) { blocks[a], blocks[b] = blocks[b], blocks[a] })
	out := make([]float64, 0, len(series))
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// bootstrap concatenates randomly started blocks until the series length is
// reached.
func bootstrap(series []float64, block int, rng *rand.Rand) []float64 {
	n := len(series)
	out := make([]float64, 0, n+block)
	for len(out) < n {
		lo := rng.IntN(n - block + 1)
		out = append(out, series[lo:lo+block]...)
	}
	return out[:n]
}

// evaluate builds the equity path of series and measures it.
func evaluate(series []float64, kind Kind, cfg Config) Outcome {
	initial := 1.0
	if kind == PnL {
		initial = cfg.Capital
	}
	floor := initial * (1 - cfg.RuinThreshold)

	equity := make([]float64, len(series))
	rets := make([]float64, len(series))
	eq := initial
	var o Outcome
	for i, v := range series {
		prev := eq
		if kind == PnL {
			eq += v
			if prev > 0 {
				rets[i] = v / prev
			}
		} else {
			eq *= 1 + v
			rets[i] = v
		}
		equity[i] = eq
		if eq <= floor {
			o.Ruined = true
		}
	}

	o.TotalReturn = eq/initial - 1
	o.MaxDrawdown = performance.Drawdowns(initial, equity).Max
	if len(rets) >= 2 {
		if mean, sd := stat.MeanStdDev(rets, nil); sd > 0 {
			o.Sharpe = mean / sd * math.Sqrt(cfg.PeriodsPerYear)
		}
	}
	return o
}

func summarise(outcomes []Outcome) *Report {
	rep := &Report{Trials: len(outcomes)}
	if len(outcomes) == 0 {
		return rep
	}
	n := float64(len(outcomes))
	rets := make([]float64, len(outcomes))
	dds := make([]float64, len(outcomes))
	sharpes := make([]float64, len(outcomes))
	var profit, ruin int
	for i, o := range outcomes {
		rets[i], dds[i], sharpes[i] = o.TotalReturn, o.MaxDrawdown, o.Sharpe
		if o.TotalReturn > 0 {
			profit++
		}
		if o.Ruined {
			ruin++
		}
	}
	rep.ProbProfit = float64(profit) / n
	rep.RiskOfRuin = float64(ruin) / n

	// Means are taken before sorting so the summation order is the trial
	// order.
	rep.MeanReturn = stat.Mean(rets, nil)
	rep.ExpectedMaxDrawdown = stat.Mean(dds, nil)

	sort.Float64s(rets)
	sort.Float64s(dds)
	sort.Float64s(sharpes)
	rep.MedianReturn = quantile(0.5, rets)
	rep.MedianMaxDrawdown = quantile(0.5, dds)
	rep.WorstMaxDrawdown = dds[len(dds)-1]
	rep.Return95 = interval(0.95, rets)
	rep.Return99 = interval(0.99, rets)
	rep.Sharpe95 = interval(0.95, sharpes)
	rep.Sharpe99 = interval(0.99, sharpes)
	return rep
}

func quantile(p float64, sorted []float64) float64 {
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func interval(level float64, sorted []float64) Interval {
	tail := (1 - level) / 2
	return Interval{Lower: quantile(tail, sorted), Upper: quantile(1-tail, sorted)}
}
