package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/notify"
	"github.com/rustyeddy/daytrader/session"
	"github.com/rustyeddy/daytrader/strategies"
)

const barsPerDay = 28

type memSource market.Series

func (m memSource) GetBars(_ context.Context, _, _ string, start, end int64) (market.Series, error) {
	return market.Series(m).Between(start, end), nil
}

func waveBars(days int) market.Series {
	day0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	var out market.Series
	prev := 100.0
	for d := 0; d < days; d++ {
		for k := 0; k < barsPerDay; k++ {
			i := float64(len(out))
			c := 100 + 2*math.Sin(i/9) + 0.3*math.Sin(0.7*i)
			out = append(out, market.Bar{
				Timestamp: day0.AddDate(0, 0, d).Add(time.Duration(k) * 15 * time.Minute).UnixMilli(),
				Open:      prev,
				High:      math.Max(prev, c) + 0.2,
				Low:       math.Min(prev, c) - 0.2,
				Close:     c,
				Volume:    1000,
				Symbol:    "SPY",
				Timeframe: "15m",
			})
			prev = c
		}
	}
	return out
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cal, err := session.NewCalendar("UTC", []string{"10:00-11:00", "13:00-14:00"}, "15:00")
	require.NoError(t, err)
	dec := decision.DefaultConfig(cal)
	dec.MinConfidence = 0
	dec.MaxEntryDistancePct = 0.05
	bt := backtest.DefaultConfig(cal)
	bt.ATRPeriod = 5
	return Config{
		Symbol:    "SPY",
		Timeframe: "15m",
		Strategies: []StrategySpec{
			{Name: strategies.TrendCross, Params: strategies.Params{"fast_period": 5, "slow_period": 20, "allow_short": 1}},
		},
		Ensemble: ensemble.DefaultConfig(),
		Backtest: bt,
		Decision: dec,
		Log:      zerolog.Nop(),
	}
}

func TestReplayEmitsOncePerWindow(t *testing.T) {
	t.Parallel()

	sink := journal.NewMemory()
	p, err := New(testConfig(t), memSource(waveBars(5)), sink, nil)
	require.NoError(t, err)

	got, err := p.Replay(context.Background(), 0, 0)
	require.NoError(t, err)

	// The first morning window has too little history for the ATR.
	require.Len(t, got, 9)
	seen := map[string]bool{}
	executed := map[string]int{}
	for _, d := range got {
		key := d.Day + "|" + d.Window
		assert.False(t, seen[key], key)
		seen[key] = true
		assert.NotEmpty(t, d.Window)
		if d.ShouldExecute {
			executed[d.Day]++
		}
	}
	for day, n := range executed {
		assert.LessOrEqual(t, n, 1, day)
	}
	assert.Len(t, sink.Decisions(), 9)

	again, err := p.Replay(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, sink.Decisions(), 9)
}

func TestDecideIsNotRecomputed(t *testing.T) {
	t.Parallel()

	bars := waveBars(3)
	// End inside the 13:00 window of the last day.
	end := bars[2*barsPerDay+17].Timestamp
	var hooked int
	disp := notify.NewDispatcher(context.Background(), 8, zerolog.Nop(), notify.Funcs{
		Decision: func(context.Context, decision.DailyDecision) error {
			hooked++
			return nil
		},
	})
	p, err := New(testConfig(t), memSource(bars), journal.NewMemory(), disp)
	require.NoError(t, err)

	first, fresh, err := p.Decide(context.Background(), 0, end)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, "13:00-14:00", first.Window)

	second, fresh, err := p.Decide(context.Background(), 0, end+int64(15*time.Minute/time.Millisecond))
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, first.ID, second.ID)

	disp.Close()
	assert.Equal(t, 1, hooked)
}

func TestDecideSkipsJournaledDecision(t *testing.T) {
	t.Parallel()

	bars := waveBars(3)
	sink := journal.NewMemory()
	cfg := testConfig(t)

	p1, err := New(cfg, memSource(bars), sink, nil)
	require.NoError(t, err)
	_, fresh, err := p1.Decide(context.Background(), 0, 0)
	require.NoError(t, err)
	require.True(t, fresh)

	// A second process sharing the journal must not emit the same decision.
	p2, err := New(cfg, memSource(bars), sink, nil)
	require.NoError(t, err)
	_, fresh, err = p2.Decide(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Len(t, sink.Decisions(), 1)
}

func TestBacktestRecordsRunAndTrades(t *testing.T) {
	t.Parallel()

	sink := journal.NewMemory()
	var trades int
	disp := notify.NewDispatcher(context.Background(), 1024, zerolog.Nop(), notify.Funcs{
		Trade: func(context.Context, backtest.Trade) error {
			trades++
			return nil
		},
	})
	p, err := New(testConfig(t), memSource(waveBars(10)), sink, disp)
	require.NoError(t, err)

	res, err := p.Backtest(context.Background(), 0, 0)
	require.NoError(t, err)
	disp.Close()

	runs := sink.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, res.ID, runs[0].RunID)
	assert.Equal(t, "trend_cross", runs[0].Strategy)
	assert.Equal(t, "average", runs[0].Method)
	assert.Len(t, sink.Trades(), len(res.Trades))
	assert.Equal(t, len(res.Trades), trades)
	assert.Len(t, runs[0].Equity, len(res.Equity))
}

func kellyConfig(t *testing.T, minTrades int) Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Decision.Sizing = decision.Kelly
	cfg.Decision.KellyMinTrades = minTrades
	return cfg
}

func TestReplaySizesKellyFromEarlierTradesOnly(t *testing.T) {
	t.Parallel()

	for _, minTrades := range []int{1, 2} {
		p, err := New(kellyConfig(t, minTrades), memSource(waveBars(5)), journal.NewMemory(), nil)
		require.NoError(t, err)
		res, err := p.Backtest(context.Background(), 0, 0)
		require.NoError(t, err)
		require.NotEmpty(t, res.Trades)

		got, err := p.Replay(context.Background(), 0, 0)
		require.NoError(t, err)
		require.NotEmpty(t, got)

		var kelly int
		for _, d := range got {
			var before int
			for _, tr := range res.Trades {
				if tr.ExitTime <= d.BarTime {
					before++
				}
			}
			assert.Equal(t, before >= minTrades, d.UsedKelly,
				"min %d: %s %s had %d trades closed", minTrades, d.Day, d.Window, before)
			if d.UsedKelly {
				kelly++
			}
		}
		if minTrades == 1 {
			assert.Positive(t, kelly)
		}
	}
}

func TestDecideSeedsKellyFromJournal(t *testing.T) {
	t.Parallel()

	bars := waveBars(5)
	sink := journal.NewMemory()
	cfg := kellyConfig(t, 1)

	first, err := New(cfg, memSource(bars), sink, nil)
	require.NoError(t, err)
	res, err := first.Backtest(context.Background(), 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	// A separate process reads the journaled run back.
	p, err := New(cfg, memSource(bars), sink, nil)
	require.NoError(t, err)
	d, ok, err := p.Decide(context.Background(), 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, d.UsedKelly)

	empty, err := New(cfg, memSource(bars), journal.NewMemory(), nil)
	require.NoError(t, err)
	d, _, err = empty.Decide(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, d.UsedKelly)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Strategies = []StrategySpec{{Name: "astrology"}}
	_, err := New(cfg, memSource(nil), nil, nil)
	assert.True(t, errs.IsConfig(err))

	cfg.Strategies = nil
	_, err = New(cfg, memSource(nil), nil, nil)
	assert.True(t, errs.IsConfig(err))

	cfg = testConfig(t)
	_, err = New(cfg, nil, nil, nil)
	assert.True(t, errs.IsConfig(err))

	p, err := New(cfg, memSource(nil), nil, nil)
	require.NoError(t, err)
	_, _, err = p.Decide(context.Background(), 0, 0)
	assert.True(t, errs.IsData(err))
}
