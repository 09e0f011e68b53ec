package performance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n int) []int64 {
	start := time.Date(2022, 1, 3, 21, 0, 0, 0, time.UTC)
	out := make([]int64, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i).UnixMilli()
	}
	return out
}

func assertFinite(t *testing.T, m Metrics) {
	t.Helper()
	for _, v := range []float64{
		m.TotalReturn, m.CAGR, m.Volatility, m.Sharpe, m.Sortino, m.Calmar, m.MAR, m.Omega,
		m.MaxDrawdown, m.AvgDrawdown, m.UlcerIndex, m.RecoveryFactor, m.WinRate, m.ProfitFactor,
		m.Expectancy, m.AvgWin, m.AvgLoss, m.LargestWin, m.LargestLoss, m.TimeInMarket,
	} {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestDrawdowns(t *testing.T) {
	t.Parallel()

	dd := Drawdowns(100, []float64{110, 99, 121, 115, 130})
	assert.InDelta(t, 0.1, dd.Max, 1e-12)
	assert.Equal(t, 0, dd.Start)
	assert.Equal(t, 1, dd.End)
	assert.InDelta(t, (0.1+6.0/121)/2, dd.Average, 1e-12)
	assert.InDelta(t, 6.0/121, dd.Series[3], 1e-12)
	assert.Zero(t, dd.Series[4])
	assert.InDelta(t, math.Sqrt((100+(600.0/121)*(600.0/121))/5), dd.Ulcer, 1e-9)
}

func TestComputeBasic(t *testing.T) {
	t.Parallel()

	eq := []float64{101, 100, 103, 102, 106}
	m := Compute(Input{
		Initial:        100,
		Equity:         eq,
		Times:          days(len(eq)),
		Exposure:       []bool{true, false, true, true, false},
		TradePnLs:      []float64{3, -1, 4, -2, 2},
		PeriodsPerYear: 252,
	})
	assertFinite(t, m)

	assert.InDelta(t, 0.06, m.TotalReturn, 1e-12)
	assert.Equal(t, 5, m.Trades)
	assert.Equal(t, 3, m.Wins)
	assert.Equal(t, 2, m.Losses)
	assert.InDelta(t, 0.6, m.WinRate, 1e-12)
	assert.InDelta(t, 9.0/3.0, m.ProfitFactor, 1e-12)
	assert.InDelta(t, 1.2, m.Expectancy, 1e-12)
	assert.InDelta(t, 3.0, m.AvgWin, 1e-12)
	assert.InDelta(t, 1.5, m.AvgLoss, 1e-12)
	assert.Equal(t, 4.0, m.LargestWin)
	assert.Equal(t, -2.0, m.LargestLoss)
	assert.Equal(t, 1, m.MaxConsecutiveWins)
	assert.Equal(t, 1, m.MaxConsecutiveLosses)
	assert.InDelta(t, 0.6, m.TimeInMarket, 1e-12)
	assert.Greater(t, m.Sharpe, 0.0)
	assert.Greater(t, m.Sortino, m.Sharpe)
	assert.Greater(t, m.Omega, 1.0)
	assert.InDelta(t, 1.0/101.0, m.MaxDrawdown, 1e-12)
	assert.Greater(t, m.CAGR, 0.0)
	assert.InDelta(t, m.CAGR/m.MaxDrawdown, m.MAR, 1e-9)
	assert.InDelta(t, m.MAR, m.Calmar, 1e-9, "short history: trailing window is the whole curve")
	assert.Empty(t, m.Undefined)
}

func TestComputeZeroDenominators(t *testing.T) {
	t.Parallel()

	flat := []float64{100, 100, 100}
	m := Compute(Input{Initial: 100, Equity: flat, Times: days(3)})
	assertFinite(t, m)

	for _, name := range []string{"sharpe", "sortino", "omega", "mar", "calmar", "recovery_factor",
		"win_rate", "expectancy", "profit_factor", "avg_win", "avg_loss", "time_in_market"} {
		assert.True(t, m.IsUndefined(name), name)
	}
	assert.Zero(t, m.Sharpe)
	assert.Zero(t, m.TotalReturn)
	assert.False(t, m.IsUndefined("total_return"))
}

func TestComputeAllWinners(t *testing.T) {
	t.Parallel()

	m := Compute(Input{Initial: 100, Equity: []float64{101, 102}, Times: days(2), TradePnLs: []float64{1, 1}})
	assert.True(t, m.IsUndefined("profit_factor"))
	assert.Zero(t, m.ProfitFactor)
	assert.Equal(t, 2, m.MaxConsecutiveWins)
}

func TestCalmarUsesTrailingThreeYears(t *testing.T) {
	t.Parallel()

	// Five years of daily points: a deep early drawdown then steady growth.
	n := 5 * 365
	times := days(n)
	eq := make([]float64, n)
	v := 100.0
	for i := range eq {
		switch {
		case i < 100:
			v *= 0.995
		default:
			v *= 1.001
		}
		eq[i] = v
	}
	m := Compute(Input{Initial: 100, Equity: eq, Times: times})
	assert.Greater(t, m.MaxDrawdown, 0.35)
	assert.True(t, m.IsUndefined("calmar"), "no drawdown in the trailing window")
	assert.False(t, m.IsUndefined("mar"))
}

func TestMetricByName(t *testing.T) {
	t.Parallel()

	m := Metrics{Sharpe: 1.5, MaxDrawdown: 0.2}
	v, ok := m.Get("sharpe")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
	v, ok = m.Get("max_drawdown")
	assert.True(t, ok)
	assert.Equal(t, -0.2, v)
	_, ok = m.Get("luck")
	assert.False(t, ok)
}
