// Package journal persists decisions, trades and backtest runs. The core
// never depends on it; it is a sink handed records after they are built.
package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/market"
)

// ErrDuplicate is returned when a decision for the same symbol, day and
// window was already recorded. Past decisions are never rewritten.
var ErrDuplicate = errors.New("decision already recorded")

// TradeRecord is a closed trade as stored.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	Side       market.Direction
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	CloseTime  time.Time
	Fees       float64
	RealizedPL float64
	Reason     string
}

// FromTrade converts a backtest trade for run runID.
func FromTrade(runID string, t backtest.Trade) TradeRecord {
	return TradeRecord{
		TradeID:    t.ID,
		RunID:      runID,
		Symbol:     t.Symbol,
		Side:       t.Side,
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		OpenTime:   time.UnixMilli(t.EntryTime).UTC(),
		CloseTime:  time.UnixMilli(t.ExitTime).UTC(),
		Fees:       t.Fees,
		RealizedPL: t.PnL,
		Reason:     string(t.ExitReason),
	}
}

// EquitySnapshot is one point of a run's equity curve.
type EquitySnapshot struct {
	RunID   string
	Time    time.Time
	Equity  float64
	Exposed bool
}

type Journal interface {
	RecordDecision(decision.DailyDecision) error
	RecordTrade(TradeRecord) error
	// RecordBacktest stores the run summary and its equity curve. Trades are
	// recorded separately.
	RecordBacktest(BacktestRun) error
	Close() error
}

// History is implemented by sinks that can read closed trades back.
type History interface {
	// LatestRunTrades returns the trades of the newest backtest run for
	// symbol in close order, or none when no run was recorded.
	LatestRunTrades(symbol string) ([]TradeRecord, error)
}

var (
	_ History = (*SQLite)(nil)
	_ History = (*Memory)(nil)
)

func decisionKey(d decision.DailyDecision) string {
	return d.Symbol + "|" + d.Day + "|" + d.Window
}
