package ensemble

import (
	"math"
	"sort"

	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/strategies"
	"github.com/samber/lo"
)

// ModelState is a trained logistic model over strategy strengths. It is a
// value: Retrain returns a new one and nothing mutates it afterwards.
type ModelState struct {
	Weights    map[string]float64 `json:"weights"`
	Bias       float64            `json:"bias"`
	TrainedAt  int64              `json:"trained_at"`
	TrainStart int64              `json:"train_start"`
	TrainEnd   int64              `json:"train_end"`
	Samples    int                `json:"samples"`
}

// Trained reports whether the model has been fitted.
func (m ModelState) Trained() bool { return m.Samples > 0 }

// Due reports whether a retrain is scheduled at ts.
func (m ModelState) Due(ts int64, cfg Config) bool {
	return !m.Trained() || ts >= m.TrainedAt+int64(cfg.RetrainDays)*dayMillis
}

// Predict returns P(next bar closes up | strengths).
func (m ModelState) Predict(x map[string]float64) float64 {
	names := lo.Keys(m.Weights)
	sort.Strings(names)
	z := m.Bias
	for _, name := range names {
		z += m.Weights[name] * x[name]
	}
	return sigmoid(z)
}

// Retrain fits a model for predicting at bar i.
//
// Sample j pairs the strengths at bar j with whether bar j+1 closed above
// bar j. Only samples whose label was known strictly before bar i are used
// (j+1 < i), drawn from the trailing TrainWindowDays. ok is false when fewer
// than MinTrainSamples qualify.
func Retrain(bars market.Series, signals map[string][]strategies.Signal, names []string, i int, cfg Config) (m ModelState, ok bool) {
	cfg = cfg.withDefaults()
	now := bars[i].Timestamp
	last := i - 2
	if last < 0 {
		return ModelState{}, false
	}
	first := bars.LowerBound(now - int64(cfg.TrainWindowDays)*dayMillis + 1)
	if last-first+1 < cfg.MinTrainSamples {
		return ModelState{}, false
	}

	x := make([][]float64, 0, last-first+1)
	y := make([]float64, 0, last-first+1)
	for j := first; j <= last; j++ {
		row := make([]float64, len(names))
		for k, name := range names {
			row[k] = signals[name][j].Strength
		}
		x = append(x, row)
		label := 0.0
		if bars[j+1].Close > bars[j].Close {
			label = 1
		}
		y = append(y, label)
	}

	coef, bias := Fit(x, y, cfg.LearningRate, cfg.Epochs, cfg.L2)
	weights := make(map[string]float64, len(names))
	for k, name := range names {
		weights[name] = coef[k]
	}
	return ModelState{
		Weights:    weights,
		Bias:       bias,
		TrainedAt:  now,
		TrainStart: bars[first].Timestamp,
		TrainEnd:   bars[last+1].Timestamp,
		Samples:    len(y),
	}, true
}

// Fit runs full-batch gradient descent on the L2-regularised logistic loss.
// Starting from zero and summing in index order keeps it deterministic.
func Fit(x [][]float64, y []float64, lr float64, epochs int, l2 float64) (coef []float64, bias float64) {
	if len(x) == 0 {
		return nil, 0
	}
	dim := len(x[0])
	coef = make([]float64, dim)
	grad := make([]float64, dim)
	n := float64(len(x))
	for e := 0; e < epochs; e++ {
		for k := range grad {
			grad[k] = 0
		}
		gb := 0.0
		for r, row := range x {
			z := bias
			for k, v := range row {
				z += coef[k] * v
			}
			diff := sigmoid(z) - y[r]
			for k, v := range row {
				grad[k] += diff * v
			}
			gb += diff
		}
		for k := range coef {
			coef[k] -= lr * (grad[k]/n + l2*coef[k])
		}
		bias -= lr * gb / n
	}
	return coef, bias
}

func featureRow(row map[string]strategies.Signal, names []string) map[string]float64 {
	x := make(map[string]float64, len(names))
	for _, n := range names {
		x[n] = row[n].Strength
	}
	return x
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
