package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/journal"
)

// LogHook writes every event as a structured log line.
type LogHook struct {
	Log zerolog.Logger
}

func (h LogHook) OnDecision(_ context.Context, d decision.DailyDecision) error {
	h.Log.Info().
		Str("symbol", d.Symbol).
		Str("day", d.Day).
		Str("window", d.Window).
		Stringer("signal", d.Signal).
		Bool("execute", d.ShouldExecute).
		Str("reason", d.SkipReason).
		Float64("entry", d.EntryPrice).
		Float64("stop", d.StopLoss).
		Float64("target", d.TakeProfit).
		Float64("size", d.PositionSize).
		Msg("decision")
	return nil
}

func (h LogHook) OnTrade(_ context.Context, t backtest.Trade) error {
	h.Log.Info().
		Str("symbol", t.Symbol).
		Str("day", t.Day).
		Stringer("side", t.Side).
		Float64("entry", t.EntryPrice).
		Float64("exit", t.ExitPrice).
		Float64("pnl", t.PnL).
		Str("reason", string(t.ExitReason)).
		Msg("trade closed")
	return nil
}

// OrgHook renders each event as an org-mode entry and hands it to Write.
type OrgHook struct {
	Write func(entry string) error
}

func (h OrgHook) OnDecision(_ context.Context, d decision.DailyDecision) error {
	return h.Write(journal.FormatDecisionOrg(d))
}

func (h OrgHook) OnTrade(_ context.Context, t backtest.Trade) error {
	return h.Write(journal.FormatTradeOrg(journal.FromTrade("", t)))
}

// Funcs adapts plain functions; nil members are skipped.
type Funcs struct {
	Decision func(context.Context, decision.DailyDecision) error
	Trade    func(context.Context, backtest.Trade) error
}

func (f Funcs) OnDecision(ctx context.Context, d decision.DailyDecision) error {
	if f.Decision == nil {
		return nil
	}
	return f.Decision(ctx, d)
}

func (f Funcs) OnTrade(ctx context.Context, t backtest.Trade) error {
	if f.Trade == nil {
		return nil
	}
	return f.Trade(ctx, t)
}
