// Package performance computes risk/return statistics of a finished
// simulation.
//
// Every ratio has a defined zero-denominator convention: the value is 0 and
// the metric name is listed in Metrics.Undefined. No field is ever NaN or Inf.
package performance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	yearMillis = 365.25 * 24 * 60 * 60 * 1000
	// calmarMonths is the trailing period Calmar is measured over.
	calmarMonths = 36
)

// Input is everything Compute needs. Equity, Times and Exposure are aligned;
// Equity holds the account value after each bar, Initial the value before
// the first.
type Input struct {
	Initial        float64
	Equity         []float64
	Times          []int64
	Exposure       []bool
	TradePnLs      []float64
	RiskFreeRate   float64 // annual
	PeriodsPerYear float64
}

// Metrics is the fixed statistics record.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	Calmar      float64 `json:"calmar"`
	MAR         float64 `json:"mar"`
	Omega       float64 `json:"omega"`

	MaxDrawdown      float64 `json:"max_drawdown"` // fraction of peak, positive
	MaxDrawdownStart int     `json:"max_drawdown_start"`
	MaxDrawdownEnd   int     `json:"max_drawdown_end"`
	AvgDrawdown      float64 `json:"avg_drawdown"`
	UlcerIndex       float64 `json:"ulcer_index"`
	RecoveryFactor   float64 `json:"recovery_factor"`

	Trades               int     `json:"trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"`
	ProfitFactor         float64 `json:"profit_factor"`
	Expectancy           float64 `json:"expectancy"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	LargestWin           float64 `json:"largest_win"`
	LargestLoss          float64 `json:"largest_loss"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	TimeInMarket         float64 `json:"time_in_market"`

	// Undefined names the metrics whose denominator was zero.
	Undefined []string `json:"undefined,omitempty"`
}

// IsUndefined reports whether name was reported as undefined.
func (m Metrics) IsUndefined(name string) bool {
	for _, u := range m.Undefined {
		if u == name {
			return true
		}
	}
	return false
}

// Get returns a metric by its JSON name; ok is false for unknown names.
func (m Metrics) Get(name string) (v float64, ok bool) {
	switch name {
	case "total_return":
		return m.TotalReturn, true
	case "cagr":
		return m.CAGR, true
	case "sharpe":
		return m.Sharpe, true
	case "sortino":
		return m.Sortino, true
	case "calmar":
		return m.Calmar, true
	case "mar":
		return m.MAR, true
	case "omega":
		return m.Omega, true
	case "profit_factor":
		return m.ProfitFactor, true
	case "expectancy":
		return m.Expectancy, true
	case "win_rate":
		return m.WinRate, true
	case "recovery_factor":
		return m.RecoveryFactor, true
	case "max_drawdown":
		return -m.MaxDrawdown, true
	}
	return 0, false
}

type calc struct {
	m *Metrics
}

// div returns a/b, or 0 with name recorded when the result is not finite.
func (c calc) div(name string, a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		c.m.Undefined = append(c.m.Undefined, name)
		return 0
	}
	v := a / b
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.m.Undefined = append(c.m.Undefined, name)
		return 0
	}
	return v
}

func (c calc) undefined(name string) float64 {
	c.m.Undefined = append(c.m.Undefined, name)
	return 0
}

// Compute derives Metrics from in.
func Compute(in Input) Metrics {
	var m Metrics
	c := calc{&m}

	ppy := in.PeriodsPerYear
	if ppy <= 0 {
		ppy = 252
	}
	last := in.Initial
	if n := len(in.Equity); n > 0 {
		last = in.Equity[n-1]
	}
	m.TotalReturn = c.div("total_return", last, in.Initial)
	if !m.IsUndefined("total_return") {
		m.TotalReturn--
	}

	rets := Returns(in.Initial, in.Equity)
	rf := in.RiskFreeRate / ppy
	excess := make([]float64, len(rets))
	for i, r := range rets {
		excess[i] = r - rf
	}

	var sd float64
	if len(rets) >= 2 {
		sd = stat.StdDev(rets, nil)
	}
	m.Volatility = sd * math.Sqrt(ppy)
	meanEx := 0.0
	if len(excess) > 0 {
		meanEx = stat.Mean(excess, nil)
	}
	m.Sharpe = c.div("sharpe", meanEx, sd) * math.Sqrt(ppy)
	m.Sortino = c.div("sortino", meanEx, downside(excess)) * math.Sqrt(ppy)
	m.Omega = omega(c, excess)

	dd := Drawdowns(in.Initial, in.Equity)
	m.MaxDrawdown, m.MaxDrawdownStart, m.MaxDrawdownEnd = dd.Max, dd.Start, dd.End
	m.AvgDrawdown = dd.Average
	m.UlcerIndex = dd.Ulcer

	m.CAGR = cagr(c, "cagr", in.Initial, last, in.Times)
	if m.IsUndefined("cagr") {
		m.MAR = c.undefined("mar")
	} else {
		m.MAR = c.div("mar", m.CAGR, m.MaxDrawdown)
	}
	m.Calmar = calmar(c, in)
	m.RecoveryFactor = c.div("recovery_factor", m.TotalReturn, m.MaxDrawdown)

	tradeStats(c, in.TradePnLs)

	exposed := 0
	for _, e := range in.Exposure {
		if e {
			exposed++
		}
	}
	m.TimeInMarket = c.div("time_in_market", float64(exposed), float64(len(in.Exposure)))
	return m
}

// Returns converts an equity curve into simple per-bar returns.
func Returns(initial float64, equity []float64) []float64 {
	out := make([]float64, 0, len(equity))
	prev := initial
	for _, e := range equity {
		r := 0.0
		if prev != 0 {
			r = e/prev - 1
		}
		out = append(out, r)
		prev = e
	}
	return out
}

func downside(excess []float64) float64 {
	if len(excess) == 0 {
		return 0
	}
	ss := 0.0
	for _, r := range excess {
		if r < 0 {
			ss += r * r
		}
	}
	return math.Sqrt(ss / float64(len(excess)))
}

func omega(c calc, excess []float64) float64 {
	var up, down float64
	for _, r := range excess {
		if r > 0 {
			up += r
		} else {
			down -= r
		}
	}
	return c.div("omega", up, down)
}

func cagr(c calc, name string, initial, final float64, times []int64) float64 {
	if len(times) < 2 || initial <= 0 {
		return c.undefined(name)
	}
	years := float64(times[len(times)-1]-times[0]) / yearMillis
	if years <= 0 {
		return c.undefined(name)
	}
	if final <= 0 {
		return -1
	}
	return math.Pow(final/initial, 1/years) - 1
}

// calmar is CAGR over max drawdown, both measured over the trailing 36
// months of the curve.
func calmar(c calc, in Input) float64 {
	n := len(in.Equity)
	if n < 2 || len(in.Times) != n {
		return c.undefined("calmar")
	}
	cutoff := in.Times[n-1] - int64(calmarMonths/12.0*yearMillis)
	from := sort.Search(n, func(i int) bool { return in.Times[i] >= cutoff })
	initial := in.Initial
	if from > 0 {
		initial = in.Equity[from-1]
	}
	eq := in.Equity[from:]
	g := cagr(c, "calmar", initial, eq[len(eq)-1], in.Times[from:])
	if c.m.IsUndefined("calmar") {
		return 0
	}
	return c.div("calmar", g, Drawdowns(initial, eq).Max)
}

func tradeStats(c calc, pnls []float64) {
	m := c.m
	m.Trades = len(pnls)
	var grossWin, grossLoss, sum float64
	var winRun, lossRun int
	for _, p := range pnls {
		sum += p
		switch {
		case p > 0:
			m.Wins++
			grossWin += p
			m.LargestWin = math.Max(m.LargestWin, p)
			winRun++
			lossRun = 0
		case p < 0:
			m.Losses++
			grossLoss -= p
			m.LargestLoss = math.Min(m.LargestLoss, p)
			lossRun++
			winRun = 0
		default:
			winRun, lossRun = 0, 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, winRun)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, lossRun)
	}
	m.WinRate = c.div("win_rate", float64(m.Wins), float64(m.Trades))
	m.Expectancy = c.div("expectancy", sum, float64(m.Trades))
	m.AvgWin = c.div("avg_win", grossWin, float64(m.Wins))
	m.AvgLoss = c.div("avg_loss", grossLoss, float64(m.Losses))
	m.ProfitFactor = c.div("profit_factor", grossWin, grossLoss)
}
