package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/market"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func sampleDecision(day, window string) decision.DailyDecision {
	return decision.DailyDecision{
		ID:            "D-" + day + window,
		Symbol:        "SPY",
		Timeframe:     "5m",
		Day:           day,
		Window:        window,
		BarTime:       time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC).UnixMilli(),
		CreatedAt:     time.Date(2024, 3, 4, 15, 0, 1, 0, time.UTC),
		Signal:        market.Long,
		Confidence:    0.75,
		Method:        ensemble.Average,
		LastPrice:     101,
		EntryPrice:    100.9,
		Band:          decision.Band{Mid: 101, MidSource: "vwap", Low: 100.9, High: 101.1},
		StopLoss:      99.4,
		TakeProfit:    103.9,
		StopMethod:    decision.Volatility,
		RewardRisk:    2,
		PositionSize:  666,
		Notional:      67199.4,
		RiskAmount:    999,
		RiskPct:       0.01,
		ShouldExecute: true,
	}
}

func sampleTrade(id string, closeAt time.Time) TradeRecord {
	return TradeRecord{
		TradeID:    id,
		RunID:      "RUN1",
		Symbol:     "SPY",
		Side:       market.Short,
		Quantity:   123.5,
		EntryPrice: 101.25,
		ExitPrice:  100.75,
		StopLoss:   102,
		TakeProfit: 99.75,
		OpenTime:   closeAt.Add(-time.Hour),
		CloseTime:  closeAt,
		Fees:       1.5,
		RealizedPL: 60.25,
		Reason:     "take_profit",
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, name := range []string{"decisions", "trades", "backtest_runs", "equity"} {
		assert.True(t, found[name], name)
	}
}

func TestSQLiteDecisions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	d := sampleDecision("2024-03-04", "14:30-16:00")
	d.Advisory = &decision.Advisory{Regime: decision.Bull, RiskMultiplier: 1.25, Summary: "all long"}
	require.NoError(t, j.RecordDecision(d))

	skipped := sampleDecision("2024-03-05", "")
	skipped.ShouldExecute = false
	skipped.SkipReason = decision.ReasonOutsideWindow
	require.NoError(t, j.RecordDecision(skipped))

	got, err := j.GetDecision("SPY", "2024-03-04", "14:30-16:00")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, market.Long, got.Signal)
	assert.Equal(t, ensemble.Average, got.Method)
	assert.Equal(t, decision.Volatility, got.StopMethod)
	assert.InDelta(t, d.StopLoss, got.StopLoss, 1e-12)
	assert.InDelta(t, d.Band.High, got.Band.High, 1e-12)
	assert.True(t, got.ShouldExecute)
	assert.True(t, got.CreatedAt.Equal(d.CreatedAt))
	require.NotNil(t, got.Advisory)
	assert.Equal(t, decision.Bull, got.Advisory.Regime)

	list, err := j.ListDecisions("SPY", "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, decision.ReasonOutsideWindow, list[1].SkipReason)
	assert.Nil(t, list[1].Advisory)

	_, err = j.GetDecision("SPY", "2024-03-06", "")
	assert.Error(t, err)
}

func TestSQLiteRejectsDuplicateDecision(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	d := sampleDecision("2024-03-04", "14:30-16:00")
	require.NoError(t, j.RecordDecision(d))

	again := d
	again.ID = "other"
	assert.ErrorIs(t, j.RecordDecision(again), ErrDuplicate)

	// Another window on the same day is a separate decision.
	again.Window = "18:00-20:00"
	assert.NoError(t, j.RecordDecision(again))
}

func TestSQLiteTrades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	for i, id := range []string{"T1", "T2", "T3"} {
		require.NoError(t, j.RecordTrade(sampleTrade(id, base.AddDate(0, 0, i))))
	}

	got, err := j.GetTrade("T2")
	require.NoError(t, err)
	assert.Equal(t, market.Short, got.Side)
	assert.InDelta(t, 123.5, got.Quantity, 1e-12)
	assert.True(t, got.CloseTime.Equal(base.AddDate(0, 0, 1)))

	_, err = j.GetTrade("missing")
	assert.Error(t, err)

	between, err := j.ListTradesClosedBetween(base, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "T1", between[0].TradeID)
	assert.Equal(t, "T2", between[1].TradeID)

	byRun, err := j.ListTradesByRunID("RUN1")
	require.NoError(t, err)
	assert.Len(t, byRun, 3)
}

func TestSQLiteLatestRunTrades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	none, err := j.LatestRunTrades("SPY")
	require.NoError(t, err)
	assert.Empty(t, none)

	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	for i, runID := range []string{"01HRUNA", "01HRUNB"} {
		require.NoError(t, j.RecordBacktest(BacktestRun{
			RunID: runID, Created: base.AddDate(0, 0, i), Symbol: "SPY", Start: base, End: base,
		}))
	}
	for i, id := range []string{"T3", "T1", "T2"} {
		tr := sampleTrade(id, base.AddDate(0, 0, 3-i))
		tr.RunID = "01HRUNB"
		require.NoError(t, j.RecordTrade(tr))
	}
	old := sampleTrade("T0", base)
	old.RunID = "01HRUNA"
	require.NoError(t, j.RecordTrade(old))

	got, err := j.LatestRunTrades("SPY")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "T2", got[0].TradeID)
	assert.Equal(t, "T1", got[1].TradeID)
	assert.Equal(t, "T3", got[2].TradeID)

	other, err := j.LatestRunTrades("QQQ")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteBacktestRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	run := BacktestRun{
		RunID:        "RUN1",
		Created:      start.AddDate(0, 1, 0),
		Symbol:       "SPY",
		Timeframe:    "5m",
		Strategy:     "trend_cross,mean_reversion",
		Method:       "average",
		Config:       []byte(`{"capital":100000}`),
		RiskPct:      0.01,
		StopATR:      1.5,
		TargetATR:    3,
		Start:        start,
		End:          start.AddDate(0, 1, 0),
		Trades:       3,
		Wins:         2,
		Losses:       1,
		StartBalance: 100000,
		EndBalance:   101500,
		NetPL:        1500,
		ReturnPct:    1.5,
		WinRate:      2.0 / 3,
		ProfitFactor: 2.5,
		MaxDDPct:     0.8,
		Sharpe:       1.1,
		Equity: []EquitySnapshot{
			{RunID: "RUN1", Time: start, Equity: 100000},
			{RunID: "RUN1", Time: start.Add(time.Hour), Equity: 100500, Exposed: true},
		},
	}
	require.NoError(t, j.RecordBacktest(run))
	require.NoError(t, j.RecordTrade(sampleTrade("T1", start.Add(time.Hour))))

	got, err := j.GetBacktestRun("RUN1")
	require.NoError(t, err)
	assert.Equal(t, run.Strategy, got.Strategy)
	assert.Equal(t, run.Config, got.Config)
	assert.Equal(t, 3, got.Trades)

	eq, err := j.ListEquityByRunID("RUN1")
	require.NoError(t, err)
	require.Len(t, eq, 2)
	assert.True(t, eq[1].Exposed)

	org, err := j.ExportBacktestOrg("RUN1")
	require.NoError(t, err)
	assert.Contains(t, org, "* BACKTEST: trend_cross,mean_reversion SPY 5m")
	assert.Contains(t, org, ":RUN_ID:      RUN1")
	assert.Contains(t, org, "** Trade: SPY SHORT (T1)")

	_, err = j.GetBacktestRun("nope")
	assert.Error(t, err)
}
