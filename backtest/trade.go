package backtest

import (
	"time"

	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/performance"
)

// ExitReason says why a position was closed.
type ExitReason string

const (
	StopLoss    ExitReason = "stop_loss"
	TakeProfit  ExitReason = "take_profit"
	ForcedClose ExitReason = "forced_close"
	SignalExit  ExitReason = "signal_exit"
	EndOfData   ExitReason = "end_of_data"
)

// Candidate rejection reasons not owned by the session package.
const (
	ReasonSizeBelowMinimum = "size-below-minimum"
	ReasonNoHistory        = "insufficient-history"
)

// Trade is one closed round trip.
type Trade struct {
	ID     string           `json:"id"`
	Symbol string           `json:"symbol"`
	Side   market.Direction `json:"side"`
	Day    string           `json:"day"`
	Window string           `json:"window"`

	EntryIndex int     `json:"entry_index"`
	ExitIndex  int     `json:"exit_index"`
	EntryTime  int64   `json:"entry_time"`
	ExitTime   int64   `json:"exit_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Quantity   float64 `json:"quantity"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`

	Fees       float64    `json:"fees"`
	PnL        float64    `json:"realized_pnl"` // net of fees
	ExitReason ExitReason `json:"exit_reason"`
}

// Return is PnL over entry notional.
func (t Trade) Return() float64 {
	n := t.EntryPrice * t.Quantity
	if n == 0 {
		return 0
	}
	return t.PnL / n
}

// Duration is the time in the trade.
func (t Trade) Duration() time.Duration {
	return time.Duration(t.ExitTime-t.EntryTime) * time.Millisecond
}

// Candidate is an entry the signal asked for, executed or not.
type Candidate struct {
	Time      int64            `json:"time"`
	Index     int              `json:"index"`
	Day       string           `json:"day"`
	Direction market.Direction `json:"direction"`
	Signal    float64          `json:"signal"`
	Executed  bool             `json:"executed"`
	Reason    string           `json:"reason,omitempty"`
}

// EquityPoint is the account value after a bar.
type EquityPoint struct {
	Time    int64   `json:"time"`
	Equity  float64 `json:"equity"`
	Exposed bool    `json:"exposed"`
}

// Result is the immutable outcome of one run.
type Result struct {
	ID             string              `json:"id"`
	Symbol         string              `json:"symbol"`
	Timeframe      string              `json:"timeframe"`
	Config         Config              `json:"config"`
	Metrics        performance.Metrics `json:"metrics"`
	Equity         []EquityPoint       `json:"equity_curve"`
	Trades         []Trade             `json:"trades"`
	Candidates     []Candidate         `json:"candidates"`
	Start          int64               `json:"start"`
	End            int64               `json:"end"`
	PeriodsPerYear float64             `json:"periods_per_year"`
	CreatedAt      time.Time           `json:"created_at"`
}

// FinalEquity is the last equity point, or the starting capital.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.Config.Capital
	}
	return r.Equity[len(r.Equity)-1].Equity
}

// TradePnLs lists realised PnL per trade in order.
func (r *Result) TradePnLs() []float64 {
	out := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = t.PnL
	}
	return out
}

// Returns is the per-bar equity return series.
func (r *Result) Returns() []float64 {
	eq := make([]float64, len(r.Equity))
	for i, p := range r.Equity {
		eq[i] = p.Equity
	}
	return performance.Returns(r.Config.Capital, eq)
}
