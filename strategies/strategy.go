// Package strategies holds the closed set of atomic signal generators.
//
// A strategy maps a bar series to one Signal per bar. Signal i is a pure
// function of bars[0..i]: appending or changing later bars never changes it.
package strategies

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Signal is one strategy's view of one bar.
type Signal struct {
	Time      int64            `json:"time"`
	Direction market.Direction `json:"direction"`
	// Strength is signed like Direction and lies in [-1, 1]; it is 0 when
	// Direction is flat.
	Strength float64 `json:"strength"`
	Reason   string  `json:"reason,omitempty"`
}

// Strategy is implemented only by the generators in this package.
type Strategy interface {
	Name() string
	Params() Params
	// Warmup is the number of leading bars that can only produce flat
	// signals.
	Warmup() int
	Generate(bars market.Series) []Signal

	sealed()
}

// Params is a named parameter set. Integer parameters are stored as floats
// holding whole numbers.
type Params map[string]float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := lo.Keys(p)
	sort.Strings(keys)
	return keys
}

// ParamSpec documents one tunable parameter.
type ParamSpec struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Integer bool    `json:"integer"`
	Doc     string  `json:"doc"`
}

// Check validates v against the parameter bounds.
func (s ParamSpec) Check(component string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errs.Config(component, s.Name, v, "must be finite")
	}
	if v < s.Min || v > s.Max {
		return errs.Config(component, s.Name, v, "must be within [%g, %g]", s.Min, s.Max)
	}
	if s.Integer && v != math.Trunc(v) {
		return errs.Config(component, s.Name, v, "must be an integer")
	}
	return nil
}

var allowShortSpec = ParamSpec{
	Name: "allow_short", Min: 0, Max: 1, Default: 1, Integer: true,
	Doc: "1 emits short signals, 0 turns them into flat",
}

type definition struct {
	specs []ParamSpec
	build func(base) (Strategy, error)
}

var registry = map[string]definition{
	TrendCross:     {trendCrossSpecs, newTrendCross},
	MomentumRegime: {momentumRegimeSpecs, newMomentumRegime},
	BreakoutTrend:  {breakoutTrendSpecs, newBreakoutTrend},
	DivergenceVol:  {divergenceVolSpecs, newDivergenceVol},
	MeanReversion:  {meanReversionSpecs, newMeanReversion},
	MAAlignment:    {maAlignmentSpecs, newMAAlignment},
}

// Registered strategy names.
const (
	TrendCross     = "trend_cross"
	MomentumRegime = "momentum_regime"
	BreakoutTrend  = "breakout_trend"
	DivergenceVol  = "divergence_vol"
	MeanReversion  = "mean_reversion"
	MAAlignment    = "ma_alignment"
)

// Names lists every registered strategy, sorted.
func Names() []string {
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// Specs returns the parameter specs of the named strategy, allow_short last.
func Specs(name string) ([]ParamSpec, error) {
	def, ok := registry[name]
	if !ok {
		return nil, errs.Config("strategies", "name", name, "unknown strategy (supported: %v)", Names())
	}
	return append(append([]ParamSpec(nil), def.specs...), allowShortSpec), nil
}

// Defaults returns the default parameter set of the named strategy.
func Defaults(name string) (Params, error) {
	specs, err := Specs(name)
	if err != nil {
		return nil, err
	}
	p := make(Params, len(specs))
	for _, s := range specs {
		p[s.Name] = s.Default
	}
	return p, nil
}

// New builds the named strategy. Missing parameters take their defaults;
// unknown or out-of-range ones are a ConfigError.
func New(name string, params Params) (Strategy, error) {
	def, ok := registry[name]
	if !ok {
		return nil, errs.Config("strategies", "name", name, "unknown strategy (supported: %v)", Names())
	}
	specs := append(append([]ParamSpec(nil), def.specs...), allowShortSpec)
	byName := lo.KeyBy(specs, func(s ParamSpec) string { return s.Name })

	resolved := make(Params, len(specs))
	for _, s := range specs {
		resolved[s.Name] = s.Default
	}
	for _, k := range params.Keys() {
		s, ok := byName[k]
		if !ok {
			return nil, errs.Config(name, k, params[k], "unknown parameter")
		}
		if err := s.Check(name, params[k]); err != nil {
			return nil, err
		}
		resolved[k] = params[k]
	}
	return def.build(base{name: name, params: resolved})
}

// MustNew is New for static configurations known to be valid.
func MustNew(name string, params Params) Strategy {
	s, err := New(name, params)
	if err != nil {
		panic(err)
	}
	return s
}

// base carries what every strategy shares.
type base struct {
	name   string
	params Params
}

func (b base) Name() string   { return b.name }
func (b base) Params() Params { return b.params.Clone() }
func (base) sealed()          {}

func (b base) int(key string) int       { return int(b.params[key]) }
func (b base) float(key string) float64 { return b.params[key] }
func (b base) allowShort() bool         { return b.params["allow_short"] != 0 }

// signal builds a Signal with strength clamped to [0, 1] and signed by dir.
// Shorts become flat when allow_short is 0.
func (b base) signal(ts int64, dir market.Direction, strength float64, reason string) Signal {
	if dir == market.Short && !b.allowShort() {
		return Signal{Time: ts, Reason: "short-disabled"}
	}
	if dir == market.Flat || !indicators.IsDefined(strength) {
		return Signal{Time: ts, Reason: reason}
	}
	return Signal{
		Time:      ts,
		Direction: dir,
		Strength:  dir.Float() * indicators.Clamp(math.Abs(strength), 0, 1),
		Reason:    reason,
	}
}

func (b base) flat(ts int64, reason string) Signal {
	return Signal{Time: ts, Reason: reason}
}

// Values projects signals to their signed strengths, the form the backtest
// engine consumes.
func Values(sigs []Signal) []float64 {
	return lo.Map(sigs, func(s Signal, _ int) float64 { return s.Strength })
}

// Directions projects signals to -1/0/1.
func Directions(sigs []Signal) []float64 {
	return lo.Map(sigs, func(s Signal, _ int) float64 { return s.Direction.Float() })
}

// GenerateAll runs every strategy over the same bars in parallel and returns
// the series keyed by strategy name. Duplicate names are a ConfigError.
func GenerateAll(ctx context.Context, bars market.Series, strats []Strategy) (map[string][]Signal, error) {
	seen := make(map[string]bool, len(strats))
	for _, s := range strats {
		if seen[s.Name()] {
			return nil, errs.Config("strategies", "name", s.Name(), "duplicate strategy")
		}
		seen[s.Name()] = true
	}

	out := make([][]Signal, len(strats))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range strats {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = s.Generate(bars)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generate signals: %w", err)
	}

	merged := make(map[string][]Signal, len(strats))
	for i, s := range strats {
		merged[s.Name()] = out[i]
	}
	return merged, nil
}
