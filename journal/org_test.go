package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/performance"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	closeAt := time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC)
	trade := sampleTrade("trade-12345678-abcd", closeAt)

	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "** Trade: SPY SHORT (trade-12)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: trade-12345678-abcd")
	assert.Contains(t, result, ":RUN_ID: RUN1")
	assert.Contains(t, result, ":QUANTITY: 123.5")
	assert.Contains(t, result, ":ENTRY_PRICE: 101.25000")
	assert.Contains(t, result, ":OPEN_TIME: 2024-03-15T13:20:30Z")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":REALIZED_PL: 60.25")
	assert.Contains(t, result, ":REASON: take_profit")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Thesis")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	at := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	out := FormatTradesOrg([]TradeRecord{sampleTrade("a", at), sampleTrade("b", at)})
	assert.Equal(t, 2, strings.Count(out, "** Trade:"))
	assert.Contains(t, out, "- \n\n\n** Trade: SPY SHORT (b)")
}

func TestFormatDecisionOrg(t *testing.T) {
	t.Parallel()

	d := sampleDecision("2024-03-04", "14:30-16:00")
	out := FormatDecisionOrg(d)
	assert.Contains(t, out, "** EXECUTE SPY 2024-03-04 LONG :execute:")
	assert.Contains(t, out, ":WINDOW: 14:30-16:00")
	assert.Contains(t, out, ":RISK_PCT: 1.00")
	assert.NotContains(t, out, ":SKIP_REASON:")

	d.ShouldExecute = false
	d.SkipReason = decision.ReasonDailyLimit
	d.Window = ""
	d.Advisory = &decision.Advisory{Summary: "short LONG, medium FLAT"}
	out = FormatDecisionOrg(d)
	assert.Contains(t, out, "** SKIP SPY 2024-03-04 LONG :skip:")
	assert.Contains(t, out, ":WINDOW: -")
	assert.Contains(t, out, ":SKIP_REASON: daily-limit-reached")
	assert.Contains(t, out, "short LONG, medium FLAT")
}

func TestBacktestRunOrg(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	res := &backtest.Result{
		ID:        "RUN9",
		Symbol:    "SPY",
		Timeframe: "15m",
		Config:    backtest.Config{Capital: 1000, RiskPct: 0.01, StopATR: 1.5, TargetATR: 3},
		Metrics:   performance.Metrics{TotalReturn: 0.05, MaxDrawdown: 0.02, Trades: 2, Wins: 1, Losses: 1, WinRate: 0.5, ProfitFactor: 2},
		Equity: []backtest.EquityPoint{
			{Time: start.UnixMilli(), Equity: 1000},
			{Time: start.Add(time.Hour).UnixMilli(), Equity: 1050, Exposed: true},
		},
		Trades: []backtest.Trade{{ID: "T1", Symbol: "SPY", Side: market.Long, PnL: 50, ExitReason: backtest.TakeProfit}},
		Start:  start.UnixMilli(),
		End:    start.Add(time.Hour).UnixMilli(),
	}
	run := FromResult(res, "trend_cross", "average", "spy.csv")
	assert.InDelta(t, 50, run.NetPL, 1e-9)
	assert.InDelta(t, 5, run.ReturnPct, 1e-9)
	assert.InDelta(t, 2, run.MaxDDPct, 1e-9)
	require.Len(t, run.Equity, 2)
	assert.Equal(t, "RUN9", run.Equity[1].RunID)
	assert.Contains(t, string(run.Config), `"capital":1000`)

	var buf bytes.Buffer
	require.NoError(t, run.WriteOrg(&buf))
	out := buf.String()
	assert.Contains(t, out, "* BACKTEST: trend_cross SPY 15m")
	assert.Contains(t, out, ":DATASET:     spy.csv")
	assert.Contains(t, out, ":START_DATE:  2024-03-04")
	assert.Contains(t, out, ":NET_PL:      50.00")
	assert.Contains(t, out, "- Win Rate:         *50.00%*")
	assert.NotContains(t, out, "** Observations")

	run.OrgPath = filepath.Join(t.TempDir(), "run.org")
	run.Notes = []string{"fewer trades than expected"}
	require.NoError(t, run.WriteBacktestOrg())
	data, err := os.ReadFile(run.OrgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "** Observations\n- fewer trades than expected")

	tr := FromTrade(run.RunID, res.Trades[0])
	assert.Equal(t, "RUN9", tr.RunID)
	assert.Equal(t, "take_profit", tr.Reason)
}
