// Package backtest replays a combined signal series bar by bar with
// intraday rules: entries only inside trading windows, a per-day entry cap,
// ATR stops and targets, and a forced flat at the session close.
package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/performance"
	"github.com/rustyeddy/daytrader/pkg/id"
	"github.com/rustyeddy/daytrader/risk"
	"github.com/rustyeddy/daytrader/session"
)

// Position is the single open position the engine may hold.
type Position struct {
	Open        bool
	Side        market.Direction
	EntryPrice  float64
	Quantity    float64
	Stop        float64
	Take        float64
	EntryFee    float64
	EntryIdx    int
	EntryTime   int64
	Day         string
	Window      string
	ForcedClose int64
}

// Engine runs backtests. It holds no state between runs and is safe for
// concurrent use.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// New validates cfg and returns an engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, log: cfg.Log}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run backtests the whole series. signals[i] in [-1, 1] is the combined
// signal known at the close of bars[i].
func (e *Engine) Run(bars market.Series, signals []float64) (*Result, error) {
	return e.RunFrom(bars, signals, 0)
}

// RunFrom trades only bars[start:]; earlier bars serve as indicator history.
// Metrics, trades and the equity curve cover the traded range only.
func (e *Engine) RunFrom(bars market.Series, signals []float64, start int) (*Result, error) {
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	if err := bars.Require(1); err != nil {
		return nil, err
	}
	if len(signals) != len(bars) {
		return nil, errs.Config("backtest", "signals", len(signals), "have %d signals for %d bars", len(signals), len(bars))
	}
	for i, s := range signals {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < -1 || s > 1 {
			return nil, errs.Config("backtest", "signals", s, "signal %d outside [-1, 1]", i)
		}
	}
	if start < 0 || start >= len(bars) {
		return nil, errs.Config("backtest", "start", start, "outside [0, %d)", len(bars))
	}

	symbol := e.cfg.Symbol
	if symbol == "" {
		symbol = bars.Symbol()
	}
	r := &run{
		cfg:     e.cfg,
		log:     e.log.With().Str("symbol", symbol).Logger(),
		symbol:  symbol,
		bars:    bars,
		signals: signals,
		atr:     indicators.ATR(bars, e.cfg.ATRPeriod),
		cash:    e.cfg.Capital,
		ledger:  session.NewLedger(),
		seen:    make(map[string]bool),
	}
	r.loop(start)

	traded := bars[start:]
	res := &Result{
		ID:             id.New(),
		Symbol:         symbol,
		Timeframe:      bars.Timeframe(),
		Config:         e.cfg,
		Equity:         r.equity,
		Trades:         r.trades,
		Candidates:     r.candidates,
		Start:          traded[0].Timestamp,
		End:            traded.Last().Timestamp,
		PeriodsPerYear: PeriodsPerYear(traded, e.cfg.Calendar),
		CreatedAt:      time.Now().UTC(),
	}
	res.Metrics = performance.Compute(r.metricsInput(res.PeriodsPerYear))

	e.log.Debug().
		Str("symbol", symbol).
		Int("bars", len(traded)).
		Int("trades", len(res.Trades)).
		Float64("total_return", res.Metrics.TotalReturn).
		Msg("backtest finished")
	return res, nil
}

// PeriodsPerYear annualises by 252 trading days times the median number of
// bars per local day.
func PeriodsPerYear(bars market.Series, cal session.Calendar) float64 {
	if len(bars) == 0 {
		return 252
	}
	var counts []int
	day, n := "", 0
	for _, b := range bars {
		d := cal.Day(b.Timestamp)
		if d != day && n > 0 {
			counts = append(counts, n)
			n = 0
		}
		day = d
		n++
	}
	counts = append(counts, n)
	sort.Ints(counts)
	return 252 * float64(counts[len(counts)/2])
}

type run struct {
	cfg     Config
	log     zerolog.Logger
	symbol  string
	bars    market.Series
	signals []float64
	atr     []float64

	cash   float64
	pos    Position
	ledger *session.Ledger
	seen   map[string]bool

	equity     []EquityPoint
	trades     []Trade
	candidates []Candidate
}

func (r *run) loop(start int) {
	cal := r.cfg.Calendar
	for i := start; i < len(r.bars); i++ {
		b := r.bars[i]
		exited := false

		// 1) Manage the open position on this bar.
		if r.pos.Open && i > r.pos.EntryIdx {
			switch {
			case b.Timestamp >= r.pos.ForcedClose:
				r.closePosition(i, r.pos.ForcedClose, r.fill(b.Open, r.pos.Side.Opposite()), ForcedClose)
				exited = true
			default:
				if px, reason, hit := checkExit(r.pos, b); hit {
					r.closePosition(i, b.Timestamp, r.fill(px, r.pos.Side.Opposite()), reason)
					exited = true
				} else if r.cfg.ExitOnOpposite && r.direction(i) == r.pos.Side.Opposite() {
					r.closePosition(i, b.Timestamp, r.fill(b.Close, r.pos.Side.Opposite()), SignalExit)
					exited = true
				}
			}
		}

		// 2) Entries are level-triggered at the close.
		if !r.pos.Open && !exited {
			if dir := r.direction(i); dir != market.Flat {
				r.tryEntry(i, dir)
			}
		}

		// 3) Never carry a position past the session or the data.
		if r.pos.Open {
			switch {
			case i == len(r.bars)-1:
				r.closePosition(i, b.Timestamp, r.fill(b.Close, r.pos.Side.Opposite()), EndOfData)
				exited = true
			case cal.Day(r.bars[i+1].Timestamp) != r.pos.Day:
				r.closePosition(i, r.pos.ForcedClose, r.fill(b.Close, r.pos.Side.Opposite()), ForcedClose)
				exited = true
			}
		}

		eq := r.cash
		if r.pos.Open {
			eq += r.pos.Side.Float() * r.pos.Quantity * (b.Close - r.pos.EntryPrice)
		}
		r.equity = append(r.equity, EquityPoint{Time: b.Timestamp, Equity: eq, Exposed: r.pos.Open || exited})
	}
}

// direction is the signal direction of bar i once the entry threshold is
// applied.
func (r *run) direction(i int) market.Direction {
	s := r.signals[i]
	if math.Abs(s) <= r.cfg.EntryThreshold {
		return market.Flat
	}
	return market.DirectionOf(s)
}

// fill applies slippage against a trade in direction side.
func (r *run) fill(px float64, side market.Direction) float64 {
	return px * (1 + side.Float()*r.cfg.SlippagePct)
}

func (r *run) tryEntry(i int, dir market.Direction) {
	cal := r.cfg.Calendar
	b := r.bars[i]
	day := cal.Day(b.Timestamp)

	w, ok := cal.WindowAt(b.Timestamp)
	switch {
	case !ok:
		r.reject(i, day, dir, session.ReasonOutsideWindow)
		return
	case r.ledger.Count(r.symbol, day) >= r.cfg.MaxTradesPerDay:
		r.reject(i, day, dir, session.ReasonDailyLimit)
		return
	case !indicators.IsDefined(r.atr[i]) || r.atr[i] <= 0:
		r.reject(i, day, dir, ReasonNoHistory)
		return
	}

	entry := r.fill(b.Close, dir)
	stop := entry - dir.Float()*r.cfg.StopATR*r.atr[i]
	take := entry + dir.Float()*r.cfg.TargetATR*r.atr[i]
	size := risk.Calculate(risk.Inputs{
		Capital:      r.cash,
		RiskPct:      r.cfg.RiskPct,
		EntryPrice:   entry,
		StopPrice:    stop,
		QuantityStep: r.cfg.QuantityStep,
		MaxLeverage:  r.cfg.MaxLeverage,
		MinNotional:  r.cfg.MinNotional,
	})
	if size.BelowMinimum || stop <= 0 {
		r.reject(i, day, dir, ReasonSizeBelowMinimum)
		return
	}

	fee := size.Notional * r.cfg.CommissionPct
	r.cash -= fee
	r.pos = Position{
		Open:        true,
		Side:        dir,
		EntryPrice:  entry,
		Quantity:    size.Quantity,
		Stop:        stop,
		Take:        take,
		EntryFee:    fee,
		EntryIdx:    i,
		EntryTime:   b.Timestamp,
		Day:         day,
		Window:      w.String(),
		ForcedClose: cal.ForcedCloseOn(b.Timestamp),
	}
	r.ledger.Record(r.symbol, day)
	r.candidates = append(r.candidates, Candidate{
		Time: b.Timestamp, Index: i, Day: day, Direction: dir, Signal: r.signals[i], Executed: true,
	})
	r.log.Debug().
		Str("day", day).
		Stringer("side", dir).
		Float64("price", entry).
		Float64("qty", size.Quantity).
		Float64("stop", stop).
		Float64("take", take).
		Msg("entry")
}

// reject records a skipped candidate once per day, reason and direction.
func (r *run) reject(i int, day string, dir market.Direction, reason string) {
	k := day + "|" + reason + "|" + dir.String()
	if r.seen[k] {
		return
	}
	r.seen[k] = true
	r.candidates = append(r.candidates, Candidate{
		Time: r.bars[i].Timestamp, Index: i, Day: day, Direction: dir, Signal: r.signals[i], Reason: reason,
	})
	r.log.Debug().Str("day", day).Stringer("side", dir).Str("reason", reason).Msg("entry skipped")
}

func (r *run) closePosition(i int, ts int64, exit float64, reason ExitReason) {
	p := r.pos
	r.pos = Position{}

	exitFee := exit * p.Quantity * r.cfg.CommissionPct
	gross := p.Side.Float() * (exit - p.EntryPrice) * p.Quantity
	r.cash += gross - exitFee

	r.trades = append(r.trades, Trade{
		ID:         id.At(time.UnixMilli(p.EntryTime)),
		Symbol:     r.symbol,
		Side:       p.Side,
		Day:        p.Day,
		Window:     p.Window,
		EntryIndex: p.EntryIdx,
		ExitIndex:  i,
		EntryTime:  p.EntryTime,
		ExitTime:   ts,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exit,
		Quantity:   p.Quantity,
		StopLoss:   p.Stop,
		TakeProfit: p.Take,
		Fees:       p.EntryFee + exitFee,
		PnL:        gross - p.EntryFee - exitFee,
		ExitReason: reason,
	})
	r.log.Debug().
		Str("day", p.Day).
		Stringer("side", p.Side).
		Float64("price", exit).
		Str("reason", string(reason)).
		Float64("pnl", gross-p.EntryFee-exitFee).
		Msg("exit")
}

func (r *run) metricsInput(ppy float64) performance.Input {
	in := performance.Input{
		Initial:        r.cfg.Capital,
		Equity:         make([]float64, len(r.equity)),
		Times:          make([]int64, len(r.equity)),
		Exposure:       make([]bool, len(r.equity)),
		TradePnLs:      make([]float64, len(r.trades)),
		RiskFreeRate:   r.cfg.RiskFreeRate,
		PeriodsPerYear: ppy,
	}
	for i, p := range r.equity {
		in.Equity[i], in.Times[i], in.Exposure[i] = p.Equity, p.Time, p.Exposed
	}
	for i, t := range r.trades {
		in.TradePnLs[i] = t.PnL
	}
	return in
}

// checkExit models stop and target hits within a bar. A gap through a level
// fills at the open. If both levels trade inside the same bar we assume the
// worst case for the trader: stop first.
func checkExit(p Position, b market.Bar) (exitPx float64, reason ExitReason, hit bool) {
	if !p.Open {
		return 0, "", false
	}

	switch p.Side {
	case market.Long:
		switch {
		case b.Open <= p.Stop:
			return b.Open, StopLoss, true
		case b.Open >= p.Take:
			return b.Open, TakeProfit, true
		case b.Low <= p.Stop:
			return p.Stop, StopLoss, true
		case b.High >= p.Take:
			return p.Take, TakeProfit, true
		}
	case market.Short:
		switch {
		case b.Open >= p.Stop:
			return b.Open, StopLoss, true
		case b.Open <= p.Take:
			return b.Open, TakeProfit, true
		case b.High >= p.Stop:
			return p.Stop, StopLoss, true
		case b.Low <= p.Take:
			return p.Take, TakeProfit, true
		}
	}

	return 0, "", false
}
