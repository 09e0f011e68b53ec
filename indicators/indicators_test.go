package indicators

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/rustyeddy/daytrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomBars returns a deterministic random walk of 5-minute bars, 78 bars per
// day starting 14:30 UTC.
func randomBars(n int, seed uint64) market.Series {
	r := rand.New(rand.NewPCG(seed, 7))
	out := make(market.Series, n)
	price := 100.0
	day := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := day.AddDate(0, 0, i/78).Add(time.Duration(i%78) * 5 * time.Minute)
		open := price
		price *= 1 + (r.Float64()-0.5)*0.01
		high := math.Max(open, price) * (1 + r.Float64()*0.002)
		low := math.Min(open, price) * (1 - r.Float64()*0.002)
		out[i] = market.Bar{
			Timestamp: ts.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    1000 + r.Float64()*500,
			Symbol:    "SPY",
			Timeframe: "5m",
		}
	}
	return out
}

func sameSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.Equal(t, want[i], got[i], "index %d", i)
	}
}

func TestSMA(t *testing.T) {
	t.Parallel()

	closes := []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}
	ma := SMA(closes, 5)
	for i := 0; i < 4; i++ {
		assert.False(t, IsDefined(ma[i]))
	}
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma[9], 0.001)
}

func TestEMASeededWithSMA(t *testing.T) {
	t.Parallel()

	closes := []float64{1, 2, 3, 4, 5, 6}
	ema := EMA(closes, 3)
	assert.False(t, IsDefined(ema[1]))
	assert.InDelta(t, 2.0, ema[2], 1e-12)
	// 2 + (4-2)*0.5 = 3
	assert.InDelta(t, 3.0, ema[3], 1e-12)
}

func TestEMAAfterUndefinedPrefix(t *testing.T) {
	t.Parallel()

	x := []float64{Undefined, Undefined, 2, 4, 6, 8}
	ema := EMA(x, 2)
	assert.False(t, IsDefined(ema[2]))
	assert.InDelta(t, 3.0, ema[3], 1e-12)
}

func TestATRDetailed(t *testing.T) {
	t.Parallel()

	bars := market.Series{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}
	atr := ATR(bars, 3)
	assert.False(t, IsDefined(atr[2]))
	assert.InDelta(t, 2.0, atr[3], 1e-12)
	assert.InDelta(t, 2.0, atr[5], 1e-12)
}

func TestTrueRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10.0, trueRange(110, 100, 104))
	assert.Equal(t, 15.0, trueRange(110, 100, 115))
}

func TestRSIFlatIsUndefined(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
	}
	for _, v := range RSI(closes, 14) {
		assert.False(t, IsDefined(v))
	}
}

func TestRSIBounds(t *testing.T) {
	t.Parallel()

	rsi := RSI(randomBars(400, 1).Closes(), 14)
	for i := 14; i < len(rsi); i++ {
		require.True(t, IsDefined(rsi[i]))
		assert.GreaterOrEqual(t, rsi[i], 0.0)
		assert.LessOrEqual(t, rsi[i], 100.0)
	}
}

func TestTalibParity(t *testing.T) {
	t.Parallel()

	bars := randomBars(300, 3)
	closes := bars.Closes()

	check := func(name string, ours, ref []float64, from int) {
		for i := from; i < len(ours); i++ {
			require.True(t, IsDefined(ours[i]), "%s undefined at %d", name, i)
			assert.InDelta(t, ref[i], ours[i], 1e-6, "%s at %d", name, i)
		}
	}

	check("SMA", SMA(closes, 20), talib.Sma(closes, 20), 19)
	check("EMA", EMA(closes, 20), talib.Ema(closes, 20), 19)
	check("RSI", RSI(closes, 14), talib.Rsi(closes, 14), 14)
	check("ATR", ATR(bars, 14), talib.Atr(bars.Highs(), bars.Lows(), closes, 14), 14)
}

func TestIndicatorsDoNotLookAhead(t *testing.T) {
	t.Parallel()

	full := randomBars(400, 11)
	loc := time.UTC

	compute := func(bars market.Series) map[string][]float64 {
		closes := bars.Closes()
		adx := ADX(bars, 14)
		macd := MACD(closes, 12, 26, 9)
		bb := Bollinger(closes, 20, 2)
		tr := TrendStrength(closes, 30)
		rets := Returns(closes)
		return map[string][]float64{
			"sma":     SMA(closes, 10),
			"ema":     EMA(closes, 10),
			"rsi":     RSI(closes, 14),
			"atr":     ATR(bars, 14),
			"adx":     adx.ADX,
			"pdi":     adx.PlusDI,
			"macd":    macd.Signal,
			"bbup":    bb.Upper,
			"r2":      tr.R2,
			"slope":   tr.Slope,
			"sharpe":  RollingSharpe(rets, 20, 252),
			"sortino": RollingSortino(rets, 20, 252),
			"vwap":    IntradayVWAP(bars, loc),
			"pmax":    PriorMax(bars.Highs(), 20),
			"z":       ZScore(closes, 20),
			"volr":    VolatilityRatio(bars, 5, 50),
		}
	}

	ref := compute(full)
	for _, cut := range []int{60, 150, 233, 399} {
		got := compute(full[:cut+1])
		for name, series := range got {
			sameSeries(t, ref[name][:cut+1], series)
		}
	}
}

func TestIntradayVWAPResetsEachDay(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC).UnixMilli()
	bars := market.Series{
		{Timestamp: day1, High: 11, Low: 9, Close: 10, Volume: 100},
		{Timestamp: day1 + 60_000, High: 13, Low: 11, Close: 12, Volume: 300},
		{Timestamp: day2, High: 21, Low: 19, Close: 20, Volume: 50},
	}
	vwap := IntradayVWAP(bars, time.UTC)
	assert.InDelta(t, 10.0, vwap[0], 1e-12)
	assert.InDelta(t, (10*100+12*300)/400.0, vwap[1], 1e-12)
	assert.InDelta(t, 20.0, vwap[2], 1e-12, "new day must not carry yesterday's volume")

	zero := market.Series{{Timestamp: day1, High: 11, Low: 9, Close: 10}}
	assert.False(t, IsDefined(IntradayVWAP(zero, time.UTC)[0]))
}

func TestTrendStrength(t *testing.T) {
	t.Parallel()

	line := make([]float64, 40)
	for i := range line {
		line[i] = 100 + 0.5*float64(i)
	}
	tr := TrendStrength(line, 20)
	assert.False(t, IsDefined(tr.R2[18]))
	assert.InDelta(t, 1.0, tr.R2[39], 1e-9)
	assert.Greater(t, tr.Slope[39], 0.0)

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 7
	}
	assert.False(t, IsDefined(TrendStrength(flat, 20).R2[39]))
}

func TestADXFlatMarketReadsNoTrend(t *testing.T) {
	t.Parallel()

	bars := make(market.Series, 60)
	for i := range bars {
		bars[i] = market.Bar{Open: 10, High: 10, Low: 10, Close: 10}
	}
	adx := ADX(bars, 14)
	assert.False(t, IsDefined(adx.ADX[26]))
	assert.Equal(t, 0.0, adx.ADX[27])
	assert.Equal(t, 0.0, adx.ADX[59])
}

func TestSwingsAreConfirmed(t *testing.T) {
	t.Parallel()

	lows := []float64{10, 9, 8, 9, 10, 11, 10, 9.5, 10, 11}
	bars := make(market.Series, len(lows))
	for i, l := range lows {
		bars[i] = market.Bar{Low: l, High: l + 1}
	}

	// The low at index 2 needs bars 3 and 4 to confirm with strength 2.
	_, got := Swings(bars, 3, 10, 2)
	assert.Empty(t, got)

	_, got = Swings(bars, 4, 10, 2)
	require.Len(t, got, 1)
	assert.Equal(t, 8.0, got[0])

	highs, _ := Swings(bars, 9, 10, 2)
	require.NotEmpty(t, highs)
	assert.Equal(t, 12.0, highs[0])
}

func TestSafeDiv(t *testing.T) {
	t.Parallel()

	assert.False(t, IsDefined(SafeDiv(1, 0)))
	assert.False(t, IsDefined(SafeDiv(Undefined, 2)))
	assert.Equal(t, 2.0, SafeDiv(4, 2))
}
