package walkforward

import (
	"math"
	"math/rand/v2"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/strategies"
)

// Range is one searched parameter. A zero Step on a grid search means the
// parameter's integer step (1) or five evenly spaced points.
type Range struct {
	Name    string  `json:"name" yaml:"name"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Step    float64 `json:"step" yaml:"step"`
	Integer bool    `json:"integer" yaml:"integer"`
}

// Values lists the grid points of r in ascending order.
func (r Range) Values() []float64 {
	step := r.Step
	if step <= 0 {
		switch {
		case r.Integer:
			step = 1
		case r.Max > r.Min:
			step = (r.Max - r.Min) / 4
		default:
			return []float64{r.Min}
		}
	}
	var out []float64
	// Index-based stepping so float accumulation never skips Max.
	for k := 0; ; k++ {
		v := r.Min + float64(k)*step
		if v > r.Max+step*1e-9 {
			break
		}
		out = append(out, r.snap(math.Min(v, r.Max)))
	}
	return out
}

// Sample draws one value of r from rng.
func (r Range) Sample(rng *rand.Rand) float64 {
	v := r.Min + rng.Float64()*(r.Max-r.Min)
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	}
	return r.snap(math.Min(v, r.Max))
}

func (r Range) snap(v float64) float64 {
	if r.Integer {
		return math.Round(v)
	}
	return v
}

// RangesFor derives search ranges from the strategy's parameter specs,
// skipping allow_short.
func RangesFor(strategy string) ([]Range, error) {
	specs, err := strategies.Specs(strategy)
	if err != nil {
		return nil, err
	}
	var out []Range
	for _, s := range specs {
		if s.Name == "allow_short" {
			continue
		}
		out = append(out, Range{Name: s.Name, Min: s.Min, Max: s.Max, Integer: s.Integer})
	}
	return out, nil
}

func checkRanges(strategy string, ranges []Range) error {
	if len(ranges) == 0 {
		return errs.Config("walkforward", "ranges", nil, "nothing to optimise")
	}
	specs, err := strategies.Specs(strategy)
	if err != nil {
		return err
	}
	byName := make(map[string]strategies.ParamSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	seen := map[string]bool{}
	for _, r := range ranges {
		spec, ok := byName[r.Name]
		if !ok {
			return errs.Config("walkforward", "ranges", r.Name, "%s has no parameter %q", strategy, r.Name)
		}
		if seen[r.Name] {
			return errs.Config("walkforward", "ranges", r.Name, "duplicate range")
		}
		seen[r.Name] = true
		if r.Min > r.Max || r.Min < spec.Min || r.Max > spec.Max || r.Step < 0 {
			return errs.Config("walkforward", "ranges."+r.Name, [2]float64{r.Min, r.Max},
				"must satisfy %g <= min <= max <= %g", spec.Min, spec.Max)
		}
	}
	return nil
}

// Grid is the cartesian product of the ranges; the last range varies
// fastest.
func Grid(fixed strategies.Params, ranges []Range) []strategies.Params {
	return gridFrom(0, fixed.Clone(), ranges)
}

func gridFrom(idx int, current strategies.Params, ranges []Range) []strategies.Params {
	if idx >= len(ranges) {
		return []strategies.Params{current.Clone()}
	}
	var out []strategies.Params
	for _, v := range ranges[idx].Values() {
		next := current.Clone()
		next[ranges[idx].Name] = v
		out = append(out, gridFrom(idx+1, next, ranges)...)
	}
	return out
}

// Random draws n parameter sets from rng.
func Random(fixed strategies.Params, ranges []Range, n int, rng *rand.Rand) []strategies.Params {
	out := make([]strategies.Params, n)
	for i := range out {
		p := fixed.Clone()
		for _, r := range ranges {
			p[r.Name] = r.Sample(rng)
		}
		out[i] = p
	}
	return out
}
