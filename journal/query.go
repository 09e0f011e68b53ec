package journal

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/market"
)

const tradeColumns = `trade_id, run_id, symbol, side, quantity, entry_price, exit_price, stop_loss, take_profit,
	open_time, close_time, fees, realized_pl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	var side int
	err := s.Scan(
		&rec.TradeID,
		&rec.RunID,
		&rec.Symbol,
		&side,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.StopLoss,
		&rec.TakeProfit,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.Fees,
		&rec.RealizedPL,
		&rec.Reason,
	)
	rec.Side = market.Direction(side)
	return rec, err
}

func (j *SQLite) queryTrades(query string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(`SELECT `+tradeColumns+` FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
}

// ListTradesByRunID returns a run's trades in close order.
func (j *SQLite) ListTradesByRunID(runID string) ([]TradeRecord, error) {
	return j.queryTrades(`SELECT `+tradeColumns+` FROM trades
		WHERE run_id = ?
		ORDER BY close_time ASC, trade_id ASC`, runID)
}

// LatestRunTrades returns the trades of the newest run for symbol. Run IDs
// are ULIDs, so they order runs by creation time.
func (j *SQLite) LatestRunTrades(symbol string) ([]TradeRecord, error) {
	var runID string
	err := j.db.QueryRow(`SELECT run_id FROM backtest_runs
		WHERE symbol = ?
		ORDER BY created DESC, run_id DESC
		LIMIT 1`, symbol).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j.ListTradesByRunID(runID)
}

// ListEquityByRunID returns a run's equity curve in time order.
func (j *SQLite) ListEquityByRunID(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, equity, exposed
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.RunID, &e.Time, &e.Equity, &e.Exposed); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetBacktestRun loads a run summary. Equity is not loaded.
func (j *SQLite) GetBacktestRun(runID string) (BacktestRun, error) {
	var r BacktestRun
	err := j.db.QueryRow(`
		SELECT run_id, created, symbol, timeframe, dataset, strategy, method, config, risk_pct, stop_atr, target_atr,
		       start_time, end_time, trades, wins, losses, start_balance, end_balance, net_pl, return_pct,
		       win_rate, profit_factor, max_dd_pct, sharpe
		FROM backtest_runs
		WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &r.Symbol, &r.Timeframe, &r.Dataset, &r.Strategy, &r.Method, &r.Config,
		&r.RiskPct, &r.StopATR, &r.TargetATR, &r.Start, &r.End, &r.Trades, &r.Wins, &r.Losses,
		&r.StartBalance, &r.EndBalance, &r.NetPL, &r.ReturnPct, &r.WinRate, &r.ProfitFactor, &r.MaxDDPct, &r.Sharpe,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return BacktestRun{}, fmt.Errorf("backtest run %q not found", runID)
	}
	return r, err
}

// ExportBacktestOrg loads a run with its trades and returns the org text.
func (j *SQLite) ExportBacktestOrg(runID string) (string, error) {
	run, err := j.GetBacktestRun(runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(runID)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := run.WriteOrg(&buf); err != nil {
		return "", err
	}
	if len(trades) > 0 {
		buf.WriteString("\n")
		buf.WriteString(FormatTradesOrg(trades))
	}
	return buf.String(), nil
}

const decisionColumns = `id, symbol, timeframe, day, trade_window, bar_time, created_at, signal, confidence, method,
	last_price, entry_price, band_low, band_high, stop_loss, take_profit, stop_method, reward_risk,
	position_size, notional, risk_amount, risk_pct, used_kelly, should_execute, skip_reason, advisory`

func scanDecision(s scanner) (decision.DailyDecision, error) {
	var (
		d      decision.DailyDecision
		signal int
		method string
		stop   string
		adv    string
	)
	err := s.Scan(
		&d.ID, &d.Symbol, &d.Timeframe, &d.Day, &d.Window, &d.BarTime, &d.CreatedAt, &signal, &d.Confidence, &method,
		&d.LastPrice, &d.EntryPrice, &d.Band.Low, &d.Band.High, &d.StopLoss, &d.TakeProfit, &stop, &d.RewardRisk,
		&d.PositionSize, &d.Notional, &d.RiskAmount, &d.RiskPct, &d.UsedKelly, &d.ShouldExecute, &d.SkipReason, &adv,
	)
	if err != nil {
		return d, err
	}
	d.Signal = market.Direction(signal)
	d.Method = ensemble.Method(method)
	d.StopMethod = decision.StopMethod(stop)
	d.Band.Mid = (d.Band.Low + d.Band.High) / 2
	if adv != "{}" && adv != "" {
		d.Advisory = new(decision.Advisory)
		if err := json.Unmarshal([]byte(adv), d.Advisory); err != nil {
			return d, err
		}
	}
	return d, nil
}

// GetDecision returns the decision recorded for symbol, day and window.
func (j *SQLite) GetDecision(symbol, day, window string) (decision.DailyDecision, error) {
	row := j.db.QueryRow(`SELECT `+decisionColumns+` FROM decisions
		WHERE symbol = ? AND day = ? AND trade_window = ?`, symbol, day, window)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("no decision for %s %s %q", symbol, day, window)
	}
	return d, err
}

// ListDecisions returns symbol's decisions with from <= day <= to in day
// order. Days are YYYY-MM-DD so string order is date order.
func (j *SQLite) ListDecisions(symbol, from, to string) ([]decision.DailyDecision, error) {
	rows, err := j.db.Query(`SELECT `+decisionColumns+` FROM decisions
		WHERE symbol = ? AND day >= ? AND day <= ?
		ORDER BY day ASC, bar_time ASC`, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []decision.DailyDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
