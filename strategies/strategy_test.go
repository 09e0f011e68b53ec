package strategies

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walk returns a deterministic random walk with slow drift regimes so that
// every strategy fires at least occasionally.
func walk(n int, seed uint64) market.Series {
	r := rand.New(rand.NewPCG(seed, 99))
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	out := make(market.Series, n)
	price := 100.0
	drift := 0.0
	for i := range out {
		if i%60 == 0 {
			drift = (r.Float64() - 0.5) * 0.004
		}
		open := price
		price *= 1 + drift + r.NormFloat64()*0.004
		out[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute).UnixMilli(),
			Open:      open,
			High:      math.Max(open, price) * (1 + r.Float64()*0.002),
			Low:       math.Min(open, price) * (1 - r.Float64()*0.002),
			Close:     price,
			Volume:    1000,
			Symbol:    "SPY",
			Timeframe: "15m",
		}
	}
	return out
}

func flatBars(n int, price float64) market.Series {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	out := make(market.Series, n)
	for i := range out {
		out[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:      price, High: price, Low: price, Close: price,
			Volume: 100, Symbol: "SPY", Timeframe: "1h",
		}
	}
	return out
}

func TestRegistryIsClosed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		BreakoutTrend, DivergenceVol, MAAlignment, MeanReversion, MomentumRegime, TrendCross,
	}, Names())

	_, err := New("nope", nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestEveryStrategyBuildsWithDefaults(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		p, err := Defaults(name)
		require.NoError(t, err)
		assert.Contains(t, p, "allow_short")

		s, err := New(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
		assert.Equal(t, p, s.Params())
		assert.Positive(t, s.Warmup())
	}
}

func TestNewValidatesParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy string
		params   Params
		param    string
	}{
		{"unknown param", TrendCross, Params{"speed": 3}, "speed"},
		{"below min", TrendCross, Params{"fast_period": 1}, "fast_period"},
		{"above max", MomentumRegime, Params{"adx_threshold": 101}, "adx_threshold"},
		{"not integer", BreakoutTrend, Params{"channel_period": 10.5}, "channel_period"},
		{"not finite", MeanReversion, Params{"entry_z": math.NaN()}, "entry_z"},
		{"fast not below slow", TrendCross, Params{"fast_period": 50, "slow_period": 50}, "fast_period"},
		{"unordered ema stack", MAAlignment, Params{"short_period": 40, "medium_period": 30}, "medium_period"},
		{"empty atr band", DivergenceVol, Params{"min_atr_pct": 0.05, "max_atr_pct": 0.01}, "min_atr_pct"},
		{"oversold above overbought", MeanReversion, Params{"oversold": 50, "overbought": 50}, "oversold"},
		{"allow_short range", TrendCross, Params{"allow_short": 2}, "allow_short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.strategy, tt.params)
			require.Error(t, err)
			var ce *errs.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.param, ce.Param)
		})
	}
}

func TestSignalsDoNotLookAhead(t *testing.T) {
	t.Parallel()

	full := walk(600, 5)
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := MustNew(name, nil)
			ref := s.Generate(full)
			require.Len(t, ref, len(full))

			for _, cut := range []int{120, 250, 333, 480} {
				prefix := s.Generate(full[:cut+1])
				assert.Equal(t, ref[:cut+1], prefix, "cut at %d", cut)

				// Rewriting the future must not matter either.
				altered := append(market.Series(nil), full...)
				for j := cut + 1; j < len(altered); j++ {
					altered[j].Close *= 1.5
					altered[j].High *= 1.5
					altered[j].Low *= 0.5
				}
				assert.Equal(t, ref[:cut+1], s.Generate(altered)[:cut+1], "altered after %d", cut)
			}
		})
	}
}

func TestSignalShape(t *testing.T) {
	t.Parallel()

	bars := walk(800, 8)
	for _, name := range Names() {
		s := MustNew(name, nil)
		sigs := s.Generate(bars)
		fired := 0
		for i, sig := range sigs {
			assert.Equal(t, bars[i].Timestamp, sig.Time)
			assert.LessOrEqual(t, math.Abs(sig.Strength), 1.0)
			switch sig.Direction {
			case market.Flat:
				assert.Zero(t, sig.Strength)
			case market.Long:
				assert.Positive(t, sig.Strength)
				fired++
			case market.Short:
				assert.Negative(t, sig.Strength)
				fired++
			}
			if i < s.Warmup() {
				assert.Equal(t, market.Flat, sig.Direction, "%s fired during warm-up at %d", name, i)
			}
		}
		assert.Positive(t, fired, "%s never fired", name)
	}
}

func TestAllowShortZeroSuppressesShorts(t *testing.T) {
	t.Parallel()

	bars := walk(800, 8)
	for _, name := range Names() {
		s := MustNew(name, Params{"allow_short": 0})
		for _, sig := range s.Generate(bars) {
			assert.NotEqual(t, market.Short, sig.Direction, name)
		}
	}
}

func TestTrendCrossFlatOnConstantPrice(t *testing.T) {
	t.Parallel()

	s := MustNew(TrendCross, Params{"fast_period": 5, "slow_period": 20, "min_separation_pct": 0.001})
	for _, sig := range s.Generate(flatBars(100, 50)) {
		assert.Equal(t, market.Flat, sig.Direction)
		assert.Zero(t, sig.Strength)
	}
}

func TestTrendCrossFollowsTrend(t *testing.T) {
	t.Parallel()

	bars := flatBars(80, 100)
	for i := range bars {
		p := 100 * (1 + 0.01*float64(i))
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = p, p, p, p
	}
	s := MustNew(TrendCross, Params{"fast_period": 5, "slow_period": 20})
	sigs := s.Generate(bars)
	assert.Equal(t, market.Flat, sigs[18].Direction)
	assert.Equal(t, market.Long, sigs[79].Direction)
	assert.Equal(t, "fast-above-slow", sigs[79].Reason)
}

func TestGenerateAll(t *testing.T) {
	t.Parallel()

	bars := walk(400, 3)
	var strats []Strategy
	for _, name := range Names() {
		strats = append(strats, MustNew(name, nil))
	}

	got, err := GenerateAll(context.Background(), bars, strats)
	require.NoError(t, err)
	require.Len(t, got, len(strats))
	for _, s := range strats {
		assert.Equal(t, s.Generate(bars), got[s.Name()])
	}

	_, err = GenerateAll(context.Background(), bars, []Strategy{strats[0], strats[0]})
	assert.True(t, errs.IsConfig(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = GenerateAll(ctx, bars, strats)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjections(t *testing.T) {
	t.Parallel()

	sigs := []Signal{
		{Direction: market.Long, Strength: 0.4},
		{},
		{Direction: market.Short, Strength: -1},
	}
	assert.Equal(t, []float64{0.4, 0, -1}, Values(sigs))
	assert.Equal(t, []float64{1, 0, -1}, Directions(sigs))
}
