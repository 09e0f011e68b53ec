package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/daytrader/decision"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordDecision(d decision.DailyDecision) error {
	adv := []byte("{}")
	if d.Advisory != nil {
		var err error
		if adv, err = json.Marshal(d.Advisory); err != nil {
			return err
		}
	}
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(id, symbol, timeframe, day, trade_window, bar_time, created_at, signal, confidence, method,
		 last_price, entry_price, band_low, band_high, stop_loss, take_profit, stop_method, reward_risk,
		 position_size, notional, risk_amount, risk_pct, used_kelly, should_execute, skip_reason, advisory)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Symbol, d.Timeframe, d.Day, d.Window, d.BarTime, d.CreatedAt, int(d.Signal), d.Confidence, string(d.Method),
		d.LastPrice, d.EntryPrice, d.Band.Low, d.Band.High, d.StopLoss, d.TakeProfit, string(d.StopMethod), d.RewardRisk,
		d.PositionSize, d.Notional, d.RiskAmount, d.RiskPct, d.UsedKelly, d.ShouldExecute, d.SkipReason, string(adv),
	)
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s %s %q", ErrDuplicate, d.Symbol, d.Day, d.Window)
	}
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, symbol, side, quantity, entry_price, exit_price, stop_loss, take_profit,
		 open_time, close_time, fees, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Symbol, int(t.Side), t.Quantity, t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit,
		t.OpenTime, t.CloseTime, t.Fees, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, equity, exposed) VALUES (?, ?, ?, ?)`,
		e.RunID, e.Time, e.Equity, e.Exposed,
	)
	return err
}

// RecordBacktest writes the run row and its equity curve in one transaction.
func (j *SQLite) RecordBacktest(r BacktestRun) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO backtest_runs
		(run_id, created, symbol, timeframe, dataset, strategy, method, config, risk_pct, stop_atr, target_atr,
		 start_time, end_time, trades, wins, losses, start_balance, end_balance, net_pl, return_pct,
		 win_rate, profit_factor, max_dd_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Symbol, r.Timeframe, r.Dataset, r.Strategy, r.Method, r.Config, r.RiskPct, r.StopATR, r.TargetATR,
		r.Start, r.End, r.Trades, r.Wins, r.Losses, r.StartBalance, r.EndBalance, r.NetPL, r.ReturnPct,
		r.WinRate, r.ProfitFactor, r.MaxDDPct, r.Sharpe,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO equity (run_id, time, equity, exposed) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range r.Equity {
		if _, err := stmt.Exec(r.RunID, e.Time, e.Equity, e.Exposed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
