// Package pipeline wires a bar source through signal generation, the
// ensemble and the backtest or decision engines, then hands the records to a
// journal and the notification hooks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/internal/metrics"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/notify"
	"github.com/rustyeddy/daytrader/session"
	"github.com/rustyeddy/daytrader/strategies"
)

// StrategySpec names a strategy and the parameters overriding its defaults.
type StrategySpec struct {
	Name   string            `json:"name" yaml:"name"`
	Params strategies.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

type Config struct {
	Symbol     string
	Timeframe  string
	Dataset    string
	Strategies []StrategySpec
	Ensemble   ensemble.Config
	Backtest   backtest.Config
	Decision   decision.Config
	Log        zerolog.Logger
}

// Pipeline is safe for sequential use; Decide and Replay share the emitted
// set and the day ledger.
type Pipeline struct {
	cfg    Config
	src    market.BarSource
	sink   journal.Journal
	notify *notify.Dispatcher
	log    zerolog.Logger

	strats []strategies.Strategy
	comb   *ensemble.Combiner
	dec    *decision.Engine

	mu       sync.Mutex
	emitted  map[string]decision.DailyDecision
	executed *session.Ledger
	history  []closed
}

// closed is a finished trade as Kelly sizing sees it.
type closed struct {
	exit int64
	pnl  float64
}

// New builds every component up front so configuration errors surface
// before any bars are read. sink and disp may be nil. When sink implements
// journal.History, the trades of the symbol's latest backtest run seed the
// Kelly history.
func New(cfg Config, src market.BarSource, sink journal.Journal, disp *notify.Dispatcher) (*Pipeline, error) {
	if src == nil {
		return nil, errs.Config("pipeline", "source", nil, "bar source is required")
	}
	if len(cfg.Strategies) == 0 {
		return nil, errs.Config("pipeline", "strategies", nil, "at least one strategy is required")
	}
	p := &Pipeline{
		cfg:      cfg,
		src:      src,
		sink:     sink,
		notify:   disp,
		log:      cfg.Log,
		emitted:  make(map[string]decision.DailyDecision),
		executed: session.NewLedger(),
	}
	for _, spec := range cfg.Strategies {
		s, err := strategies.New(spec.Name, spec.Params)
		if err != nil {
			return nil, err
		}
		p.strats = append(p.strats, s)
	}
	var err error
	if p.comb, err = ensemble.New(cfg.Ensemble); err != nil {
		return nil, err
	}
	if p.dec, err = decision.New(cfg.Decision); err != nil {
		return nil, err
	}
	if err := cfg.Backtest.Validate(); err != nil {
		return nil, err
	}
	if h, ok := sink.(journal.History); ok {
		recs, err := h.LatestRunTrades(cfg.Symbol)
		if err != nil {
			return nil, fmt.Errorf("load trade history: %w", err)
		}
		for _, r := range recs {
			p.history = append(p.history, closed{exit: r.CloseTime.UnixMilli(), pnl: r.RealizedPL})
		}
		sortHistory(p.history)
	}
	return p, nil
}

// StrategyNames lists the configured strategies in configuration order.
func (p *Pipeline) StrategyNames() []string {
	out := make([]string, len(p.strats))
	for i, s := range p.strats {
		out[i] = s.Name()
	}
	return out
}

// Bars loads the configured symbol in [start, end).
func (p *Pipeline) Bars(ctx context.Context, start, end int64) (market.Series, error) {
	bars, err := p.src.GetBars(ctx, p.cfg.Symbol, p.cfg.Timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", p.cfg.Symbol, p.cfg.Timeframe, err)
	}
	if len(bars) == 0 {
		return nil, errs.Data(p.cfg.Symbol, p.cfg.Timeframe, -1, "no bars in range")
	}
	return bars, nil
}

// Signals runs every strategy and combines the results.
func (p *Pipeline) Signals(ctx context.Context, bars market.Series) ([]ensemble.Combined, error) {
	sigs, err := strategies.GenerateAll(ctx, bars, p.strats)
	if err != nil {
		return nil, err
	}
	return p.comb.Combine(bars, sigs)
}

// Backtest runs the combined signal through the backtest engine and records
// the run and its trades.
func (p *Pipeline) Backtest(ctx context.Context, start, end int64) (*backtest.Result, error) {
	bars, err := p.Bars(ctx, start, end)
	if err != nil {
		return nil, err
	}
	combined, err := p.Signals(ctx, bars)
	if err != nil {
		return nil, err
	}
	eng, err := backtest.New(p.cfg.Backtest)
	if err != nil {
		return nil, err
	}
	res, err := eng.Run(bars, ensemble.Values(combined))
	if err != nil {
		return nil, err
	}

	metrics.BacktestsTotal.WithLabelValues(res.Symbol).Inc()
	for _, t := range res.Trades {
		metrics.TradesTotal.WithLabelValues(t.Symbol, string(t.ExitReason)).Inc()
		if p.notify != nil {
			p.notify.Trade(t)
		}
	}

	history := make([]closed, len(res.Trades))
	for i, t := range res.Trades {
		history[i] = closed{exit: t.ExitTime, pnl: t.PnL}
	}
	sortHistory(history)
	p.mu.Lock()
	p.history = history
	p.mu.Unlock()

	if p.sink != nil {
		run := journal.FromResult(res, strings.Join(p.StrategyNames(), ","), string(p.comb.Config().Method), p.cfg.Dataset)
		if err := p.sink.RecordBacktest(run); err != nil {
			return res, fmt.Errorf("record backtest: %w", err)
		}
		for _, t := range res.Trades {
			if err := p.sink.RecordTrade(journal.FromTrade(res.ID, t)); err != nil {
				return res, fmt.Errorf("record trade %s: %w", t.ID, err)
			}
		}
	}
	p.log.Info().
		Str("symbol", res.Symbol).
		Int("trades", len(res.Trades)).
		Float64("total_return", res.Metrics.TotalReturn).
		Msg("backtest complete")
	return res, nil
}

// Decide makes the decision for the last bar in [start, end). A decision
// already emitted for the same day and window is returned unchanged with
// fresh set to false.
func (p *Pipeline) Decide(ctx context.Context, start, end int64) (d decision.DailyDecision, fresh bool, err error) {
	bars, err := p.Bars(ctx, start, end)
	if err != nil {
		return d, false, err
	}
	combined, err := p.Signals(ctx, bars)
	if err != nil {
		return d, false, err
	}
	return p.decideAt(bars, combined, len(bars)-1)
}

// Replay walks [start, end) and decides at the first bar of every trading
// window, as a scheduler would have. Decisions already emitted are skipped.
func (p *Pipeline) Replay(ctx context.Context, start, end int64) ([]decision.DailyDecision, error) {
	bars, err := p.Bars(ctx, start, end)
	if err != nil {
		return nil, err
	}
	// Signals are causal, so one pass over the full range serves every
	// prefix.
	combined, err := p.Signals(ctx, bars)
	if err != nil {
		return nil, err
	}
	cal := p.cfg.Decision.Calendar
	need := p.cfg.Decision.ATRPeriod + 1

	var out []decision.DailyDecision
	for i, b := range bars {
		if i+1 < need {
			continue
		}
		if _, ok := cal.WindowAt(b.Timestamp); !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d, fresh, err := p.decideAt(bars, combined, i)
		if err != nil {
			return out, err
		}
		if fresh {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Pipeline) decideAt(bars market.Series, combined []ensemble.Combined, i int) (decision.DailyDecision, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cal := p.cfg.Decision.Calendar
	ts := bars[i].Timestamp
	day := cal.Day(ts)
	window := ""
	if w, ok := cal.WindowAt(ts); ok {
		window = w.String()
	}
	key := p.cfg.Symbol + "|" + day + "|" + window
	if prev, ok := p.emitted[key]; ok {
		return prev, false, nil
	}

	d, err := p.dec.Decide(decision.Input{
		Bars:          bars[:i+1],
		Signal:        combined[i],
		ExecutedToday: p.executed.Count(bars.Symbol(), day),
		Outcomes:      p.outcomesAt(ts),
	})
	if err != nil {
		return d, false, err
	}
	p.emitted[key] = d
	if d.ShouldExecute {
		p.executed.Record(d.Symbol, d.Day)
	}
	if p.sink != nil {
		err := p.sink.RecordDecision(d)
		switch {
		case errors.Is(err, journal.ErrDuplicate):
			// Journaled by an earlier process; the stored record stands.
			p.log.Debug().Str("symbol", d.Symbol).Str("day", d.Day).Str("window", d.Window).Msg("decision already journaled")
			return d, false, nil
		case err != nil:
			return d, false, fmt.Errorf("record decision: %w", err)
		}
	}
	metrics.DecisionsTotal.WithLabelValues(d.Symbol, metrics.Outcome(d.ShouldExecute, d.SkipReason)).Inc()
	if p.notify != nil {
		p.notify.Decision(d)
	}
	return d, true, nil
}

// outcomesAt returns the PnLs of trades closed by ts, oldest first.
func (p *Pipeline) outcomesAt(ts int64) []float64 {
	n := sort.Search(len(p.history), func(i int) bool { return p.history[i].exit > ts })
	out := make([]float64, n)
	for i, c := range p.history[:n] {
		out[i] = c.pnl
	}
	return out
}

func sortHistory(h []closed) {
	sort.SliceStable(h, func(a, b int) bool { return h[a].exit < h[b].exit })
}
