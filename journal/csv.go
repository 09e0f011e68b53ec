package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/daytrader/decision"
)

var (
	decisionHeader = []string{"id", "symbol", "timeframe", "day", "window", "bar_time", "signal", "confidence",
		"method", "entry_price", "band_low", "band_high", "stop_loss", "take_profit", "stop_method",
		"reward_risk", "position_size", "risk_amount", "risk_pct", "should_execute", "skip_reason"}
	tradeHeader = []string{"trade_id", "run_id", "symbol", "side", "quantity", "entry_price", "exit_price",
		"stop_loss", "take_profit", "open_time", "close_time", "fees", "realized_pl", "reason"}
	runHeader = []string{"run_id", "created", "symbol", "timeframe", "strategy", "method", "start", "end",
		"trades", "wins", "losses", "start_balance", "end_balance", "net_pl", "return_pct", "win_rate",
		"profit_factor", "max_dd_pct", "sharpe"}
)

// CSV appends records to decisions.csv, trades.csv and backtests.csv in a
// directory. Files are truncated when the journal is opened.
type CSV struct {
	mu        sync.Mutex
	files     []*os.File
	decisions *csv.Writer
	trades    *csv.Writer
	runs      *csv.Writer
	seen      map[string]bool
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &CSV{seen: make(map[string]bool)}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.decisions, err = open("decisions.csv", decisionHeader); err == nil {
		if j.trades, err = open("trades.csv", tradeHeader); err == nil {
			j.runs, err = open("backtests.csv", runHeader)
		}
	}
	if err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSV) RecordDecision(d decision.DailyDecision) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := decisionKey(d)
	if j.seen[key] {
		return fmt.Errorf("%w: %s %s %q", ErrDuplicate, d.Symbol, d.Day, d.Window)
	}
	j.seen[key] = true
	return write(j.decisions, []string{
		d.ID,
		d.Symbol,
		d.Timeframe,
		d.Day,
		d.Window,
		strconv.FormatInt(d.BarTime, 10),
		d.Signal.String(),
		f(d.Confidence),
		string(d.Method),
		f(d.EntryPrice),
		f(d.Band.Low),
		f(d.Band.High),
		f(d.StopLoss),
		f(d.TakeProfit),
		string(d.StopMethod),
		f(d.RewardRisk),
		f(d.PositionSize),
		f(d.RiskAmount),
		f(d.RiskPct),
		strconv.FormatBool(d.ShouldExecute),
		d.SkipReason,
	})
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return write(j.trades, []string{
		t.TradeID,
		t.RunID,
		t.Symbol,
		t.Side.String(),
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.StopLoss),
		f(t.TakeProfit),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.Fees),
		f(t.RealizedPL),
		t.Reason,
	})
}

// RecordBacktest writes the run summary. The equity curve is not kept in
// CSV form.
func (j *CSV) RecordBacktest(r BacktestRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return write(j.runs, []string{
		r.RunID,
		r.Created.Format(time.RFC3339),
		r.Symbol,
		r.Timeframe,
		r.Strategy,
		r.Method,
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		f(r.StartBalance),
		f(r.EndBalance),
		f(r.NetPL),
		f(r.ReturnPct),
		f(r.WinRate),
		f(r.ProfitFactor),
		f(r.MaxDDPct),
		f(r.Sharpe),
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range []*csv.Writer{j.decisions, j.trades, j.runs} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSV) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
