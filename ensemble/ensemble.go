// Package ensemble blends per-strategy signal series into one combined
// signal with a confidence score.
package ensemble

import (
	"math"
	"sort"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/strategies"
	"github.com/samber/lo"
)

// Method selects how strategy signals are weighted.
type Method string

const (
	Average     Method = "average"
	Weighted    Method = "weighted"
	Performance Method = "performance"
	Vote        Method = "vote"
	Classifier  Method = "classifier"
)

// TieBreak resolves equal long and short support.
type TieBreak string

const (
	TieFlat   TieBreak = "flat"
	TieHold   TieBreak = "hold"
	TieRandom TieBreak = "random"
)

const dayMillis = int64(24 * 60 * 60 * 1000)

// Config controls a Combiner. Zero values are replaced by DefaultConfig's.
type Config struct {
	Method   Method   `json:"method" yaml:"method"`
	TieBreak TieBreak `json:"tie_break" yaml:"tie_break"`
	Seed     uint64   `json:"seed" yaml:"seed"`

	// Threshold is the dead band around a zero score that reads as flat.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Weighted
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`

	// Vote: minimum fraction of strategies that must agree.
	MinAgreement float64 `json:"min_agreement" yaml:"min_agreement"`

	// Performance
	RebalanceDays  int     `json:"rebalance_frequency_days" yaml:"rebalance_frequency_days"`
	WindowDays     int     `json:"performance_window_days" yaml:"performance_window_days"`
	SharpeClip     float64 `json:"sharpe_clip" yaml:"sharpe_clip"`
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`

	// Classifier
	RetrainDays     int     `json:"retrain_days" yaml:"retrain_days"`
	TrainWindowDays int     `json:"train_window_days" yaml:"train_window_days"`
	MinTrainSamples int     `json:"min_train_samples" yaml:"min_train_samples"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	Epochs          int     `json:"epochs" yaml:"epochs"`
	L2              float64 `json:"l2" yaml:"l2"`
}

// DefaultConfig returns the simple-average combiner with the documented
// schedules for the adaptive methods.
func DefaultConfig() Config {
	return Config{
		Method:          Average,
		TieBreak:        TieFlat,
		MinAgreement:    0.5,
		RebalanceDays:   7,
		WindowDays:      90,
		SharpeClip:      3,
		PeriodsPerYear:  252,
		RetrainDays:     7,
		TrainWindowDays: 90,
		MinTrainSamples: 30,
		LearningRate:    0.1,
		Epochs:          200,
		L2:              0.001,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Method == "" {
		c.Method = d.Method
	}
	if c.TieBreak == "" {
		c.TieBreak = d.TieBreak
	}
	if c.MinAgreement == 0 {
		c.MinAgreement = d.MinAgreement
	}
	if c.RebalanceDays == 0 {
		c.RebalanceDays = d.RebalanceDays
	}
	if c.WindowDays == 0 {
		c.WindowDays = d.WindowDays
	}
	if c.SharpeClip == 0 {
		c.SharpeClip = d.SharpeClip
	}
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = d.PeriodsPerYear
	}
	if c.RetrainDays == 0 {
		c.RetrainDays = d.RetrainDays
	}
	if c.TrainWindowDays == 0 {
		c.TrainWindowDays = d.TrainWindowDays
	}
	if c.MinTrainSamples == 0 {
		c.MinTrainSamples = d.MinTrainSamples
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Epochs == 0 {
		c.Epochs = d.Epochs
	}
	return c
}

// Validate reports the first invalid field as a ConfigError.
func (c Config) Validate() error {
	switch c.Method {
	case Average, Weighted, Performance, Vote, Classifier:
	default:
		return errs.Config("ensemble", "combination_method", c.Method, "unknown method")
	}
	switch c.TieBreak {
	case TieFlat, TieHold, TieRandom:
	default:
		return errs.Config("ensemble", "tie_break", c.TieBreak, "must be flat, hold or random")
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		return errs.Config("ensemble", "threshold", c.Threshold, "must be within [0, 1)")
	}
	if c.MinAgreement <= 0 || c.MinAgreement > 1 {
		return errs.Config("ensemble", "min_agreement", c.MinAgreement, "must be within (0, 1]")
	}
	if c.Method == Weighted {
		if len(c.Weights) == 0 {
			return errs.Config("ensemble", "weights", nil, "weighted method needs weights")
		}
		total := 0.0
		for name, w := range c.Weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return errs.Config("ensemble", "weights."+name, w, "must be finite and non-negative")
			}
			total += w
		}
		if total == 0 {
			return errs.Config("ensemble", "weights", c.Weights, "must not all be zero")
		}
	}
	if c.RebalanceDays < 1 || c.RebalanceDays > 365 {
		return errs.Config("ensemble", "rebalance_frequency_days", c.RebalanceDays, "must be within [1, 365]")
	}
	if c.WindowDays < 1 || c.WindowDays > 3650 {
		return errs.Config("ensemble", "performance_window_days", c.WindowDays, "must be within [1, 3650]")
	}
	if c.SharpeClip <= 0 {
		return errs.Config("ensemble", "sharpe_clip", c.SharpeClip, "must be positive")
	}
	if c.PeriodsPerYear <= 0 {
		return errs.Config("ensemble", "periods_per_year", c.PeriodsPerYear, "must be positive")
	}
	if c.RetrainDays < 1 || c.TrainWindowDays < 1 {
		return errs.Config("ensemble", "retrain_days", c.RetrainDays, "retrain and train window must be at least one day")
	}
	if c.MinTrainSamples < 2 {
		return errs.Config("ensemble", "min_train_samples", c.MinTrainSamples, "must be at least 2")
	}
	if c.LearningRate <= 0 || c.Epochs < 1 || c.L2 < 0 {
		return errs.Config("ensemble", "learning_rate", c.LearningRate, "learning rate and epochs must be positive, l2 non-negative")
	}
	return nil
}

// Combined is the blended view of one bar.
type Combined struct {
	Time       int64              `json:"time"`
	Direction  market.Direction   `json:"direction"`
	Score      float64            `json:"score"`    // net weighted direction in [-1, 1]
	Strength   float64            `json:"strength"` // weighted mean strategy strength
	Confidence float64            `json:"confidence"`
	Weights    map[string]float64 `json:"weights"`
	Method     Method             `json:"method"`
	Tie        bool               `json:"tie,omitempty"`
}

// Value is the signed signal the backtest engine consumes: direction scaled
// by confidence.
func (c Combined) Value() float64 {
	return c.Direction.Float() * c.Confidence
}

// Values projects a combined series for the backtest engine.
func Values(cs []Combined) []float64 {
	return lo.Map(cs, func(c Combined, _ int) float64 { return c.Value() })
}

// Combiner blends signals according to its Config.
type Combiner struct {
	cfg Config
}

// New validates cfg and returns a Combiner.
func New(cfg Config) (*Combiner, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Combiner{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (c *Combiner) Config() Config { return c.cfg }

// Combine blends every strategy series into one combined series aligned to
// bars. Each series must have one signal per bar.
func (c *Combiner) Combine(bars market.Series, signals map[string][]strategies.Signal) ([]Combined, error) {
	if len(signals) == 0 {
		return nil, errs.Config("ensemble", "signals", nil, "no strategy signals to combine")
	}
	names := lo.Keys(signals)
	sort.Strings(names)
	for _, name := range names {
		if len(signals[name]) != len(bars) {
			return nil, errs.Config("ensemble", "signals."+name, len(signals[name]),
				"length must match bars (%d)", len(bars))
		}
	}
	if c.cfg.Method == Weighted {
		for _, name := range names {
			if _, ok := c.cfg.Weights[name]; !ok {
				return nil, errs.Config("ensemble", "weights."+name, nil, "no weight for strategy")
			}
		}
	}

	out := make([]Combined, len(bars))
	var (
		snap  WeightSnapshot
		model ModelState
	)
	equal := EqualWeights(names)
	prev := market.Flat
	for i, b := range bars {
		row := make(map[string]strategies.Signal, len(names))
		for _, name := range names {
			row[name] = signals[name][i]
		}

		var cs Combined
		switch c.cfg.Method {
		case Average:
			cs = c.blend(row, names, equal)
		case Weighted:
			cs = c.blend(row, names, c.cfg.Weights)
		case Performance:
			if !snap.Valid(b.Timestamp) {
				snap = Rebalance(bars, signals, names, i, c.cfg)
			}
			cs = c.blend(row, names, snap.Weights)
		case Vote:
			cs = c.vote(row, names)
		case Classifier:
			if model.Due(b.Timestamp, c.cfg) {
				if m, ok := Retrain(bars, signals, names, i, c.cfg); ok {
					model = m
				}
			}
			if model.Trained() {
				cs = c.classify(row, names, model)
			} else {
				cs = c.blend(row, names, equal)
			}
		}
		cs.Time = b.Timestamp
		cs.Method = c.cfg.Method
		if cs.Tie {
			cs.Direction = c.breakTie(b.Timestamp, prev)
			cs.Confidence = c.tieConfidence(cs, row, names)
		}
		out[i] = cs
		prev = cs.Direction
	}
	return out, nil
}

// blend is the weighted average of directions; average and performance use
// it with their own weights. Equal long and short weight is a tie whatever
// the strengths. Strength carries the weighted mean magnitude.
func (c *Combiner) blend(row map[string]strategies.Signal, names []string, weights map[string]float64) Combined {
	var total, long, short, strength float64
	for _, name := range names {
		w := weights[name]
		if w <= 0 {
			continue
		}
		s := row[name]
		total += w
		strength += w * s.Strength
		switch s.Direction {
		case market.Long:
			long += w
		case market.Short:
			short += w
		}
	}
	cs := Combined{Weights: cloneWeights(weights, names)}
	if total == 0 {
		return cs
	}
	cs.Score = (long - short) / total
	cs.Strength = strength / total

	switch {
	case long > 0 && long == short:
		cs.Tie = true
	case math.Abs(cs.Score) <= c.cfg.Threshold:
		cs.Direction = market.Flat
	default:
		cs.Direction = market.DirectionOf(cs.Score)
	}
	cs.Confidence = agreement(row, names, weights, cs.Direction)
	return cs
}

// vote counts directions with equal weight.
func (c *Combiner) vote(row map[string]strategies.Signal, names []string) Combined {
	var long, short float64
	for _, name := range names {
		switch row[name].Direction {
		case market.Long:
			long++
		case market.Short:
			short++
		}
	}
	n := float64(len(names))
	lf, sf := long/n, short/n
	cs := Combined{Score: lf - sf, Weights: EqualWeights(names)}
	switch {
	case lf >= c.cfg.MinAgreement && lf > sf:
		cs.Direction = market.Long
	case sf >= c.cfg.MinAgreement && sf > lf:
		cs.Direction = market.Short
	case lf == sf && lf >= c.cfg.MinAgreement:
		cs.Tie = true
	}
	cs.Confidence = agreement(row, names, cs.Weights, cs.Direction)
	return cs
}

func (c *Combiner) classify(row map[string]strategies.Signal, names []string, m ModelState) Combined {
	p := m.Predict(featureRow(row, names))
	cs := Combined{Score: 2*p - 1, Weights: cloneWeights(m.Weights, names)}
	switch {
	case p == 0.5:
		cs.Tie = true
	case math.Abs(cs.Score) <= c.cfg.Threshold:
	case p > 0.5:
		cs.Direction = market.Long
	default:
		cs.Direction = market.Short
	}
	cs.Confidence = indicators.Clamp(2*math.Abs(p-0.5), 0, 1)
	return cs
}

func (c *Combiner) breakTie(ts int64, prev market.Direction) market.Direction {
	switch c.cfg.TieBreak {
	case TieHold:
		return prev
	case TieRandom:
		if splitmix64(c.cfg.Seed^uint64(ts))&1 == 0 {
			return market.Long
		}
		return market.Short
	default:
		return market.Flat
	}
}

// tieConfidence measures support for the direction the tie resolved to.
// Classifier weights are model coefficients, so strategies count equally.
func (c *Combiner) tieConfidence(cs Combined, row map[string]strategies.Signal, names []string) float64 {
	w := cs.Weights
	if c.cfg.Method == Classifier {
		w = EqualWeights(names)
	}
	return agreement(row, names, w, cs.Direction)
}

// agreement is the share of weight whose signal matches dir.
func agreement(row map[string]strategies.Signal, names []string, weights map[string]float64, dir market.Direction) float64 {
	var total, agree float64
	for _, name := range names {
		w := weights[name]
		if w <= 0 {
			continue
		}
		total += w
		if row[name].Direction == dir {
			agree += w
		}
	}
	if total == 0 {
		return 0
	}
	return agree / total
}

// EqualWeights gives every name weight 1/n.
func EqualWeights(names []string) map[string]float64 {
	w := make(map[string]float64, len(names))
	for _, n := range names {
		w[n] = 1 / float64(len(names))
	}
	return w
}

func cloneWeights(w map[string]float64, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		out[n] = w[n]
	}
	return out
}

// splitmix64 is a fixed bijective mixer; equal inputs give equal outputs on
// every run.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
