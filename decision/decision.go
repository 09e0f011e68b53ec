// Package decision turns the latest combined signal into one actionable
// record for a trading day and window: an entry band, protective levels, a
// position size and an execute or skip verdict with a machine-readable
// reason.
package decision

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/ensemble"
	"github.com/rustyeddy/daytrader/errs"
	"github.com/rustyeddy/daytrader/indicators"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/pkg/id"
	"github.com/rustyeddy/daytrader/risk"
	"github.com/rustyeddy/daytrader/session"
)

// Skip reasons in precedence order; the first that applies is reported.
const (
	ReasonNoSignal         = "no-signal"
	ReasonOutsideWindow    = session.ReasonOutsideWindow
	ReasonDailyLimit       = session.ReasonDailyLimit
	ReasonLowConfidence    = "low-confidence"
	ReasonTooFar           = "too-far-from-market"
	ReasonStopOutOfBounds  = "stop-out-of-bounds"
	ReasonSizeBelowMinimum = "size-below-minimum"
)

// ErrInconsistent marks an executable decision whose stop, entry and target
// are out of order. It indicates a bug, never a market condition.
var ErrInconsistent = errors.New("inconsistent decision")

// DailyDecision is the record emitted once per symbol, trading day and
// window. Prices are still reported when the decision is skipped.
type DailyDecision struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Day       string    `json:"day"`
	Window    string    `json:"window"`
	BarTime   int64     `json:"bar_time"`
	CreatedAt time.Time `json:"created_at"`

	Signal     market.Direction `json:"signal"`
	Confidence float64          `json:"confidence"`
	Method     ensemble.Method  `json:"combination_method"`

	LastPrice  float64    `json:"last_price"`
	EntryPrice float64    `json:"entry_price"`
	Band       Band       `json:"entry_band"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	StopMethod StopMethod `json:"stop_method"`
	RewardRisk float64    `json:"reward_risk"`

	PositionSize float64 `json:"position_size"`
	Notional     float64 `json:"notional"`
	RiskAmount   float64 `json:"risk_amount"`
	RiskPct      float64 `json:"risk_pct"`
	UsedKelly    bool    `json:"used_kelly"`

	ShouldExecute bool      `json:"should_execute"`
	SkipReason    string    `json:"skip_reason,omitempty"`
	Advisory      *Advisory `json:"advisory,omitempty"`
}

// Check enforces stop < entry < target for longs and the reverse for shorts
// on executable decisions.
func (d DailyDecision) Check() error {
	if !d.ShouldExecute {
		return nil
	}
	ok := false
	switch d.Signal {
	case market.Long:
		ok = d.StopLoss < d.EntryPrice && d.EntryPrice < d.TakeProfit
	case market.Short:
		ok = d.TakeProfit < d.EntryPrice && d.EntryPrice < d.StopLoss
	}
	if !ok {
		return fmt.Errorf("%w: %s %s stop %.4f entry %.4f target %.4f",
			ErrInconsistent, d.Symbol, d.Signal, d.StopLoss, d.EntryPrice, d.TakeProfit)
	}
	return nil
}

// Input is the state a decision is made from. Bars end at the decision bar;
// Signal is the combined signal of that bar.
type Input struct {
	Bars   market.Series
	Signal ensemble.Combined
	// ExecutedToday counts entries already taken on the bar's trading day.
	ExecutedToday int
	// Outcomes are trailing closed-trade PnLs for Kelly sizing.
	Outcomes []float64
}

type Engine struct {
	cfg Config
	log zerolog.Logger
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, log: cfg.Log}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Decide builds the decision for the last bar of in.Bars.
func (e *Engine) Decide(in Input) (DailyDecision, error) {
	bars := in.Bars
	if err := bars.Require(e.cfg.ATRPeriod + 1); err != nil {
		return DailyDecision{}, err
	}
	if err := bars.Validate(); err != nil {
		return DailyDecision{}, err
	}
	if in.Signal.Time != 0 && in.Signal.Time != bars.Last().Timestamp {
		return DailyDecision{}, errs.Data(bars.Symbol(), bars.Timeframe(), len(bars)-1,
			"signal time %d does not match last bar %d", in.Signal.Time, bars.Last().Timestamp)
	}

	cfg, cal := e.cfg, e.cfg.Calendar
	last := bars.Last()
	dir := in.Signal.Direction
	d := DailyDecision{
		ID:         id.New(),
		Symbol:     bars.Symbol(),
		Timeframe:  bars.Timeframe(),
		Day:        cal.Day(last.Timestamp),
		BarTime:    last.Timestamp,
		CreatedAt:  time.Now().UTC(),
		Signal:     dir,
		Confidence: nanZero(in.Signal.Confidence),
		Method:     in.Signal.Method,
		LastPrice:  last.Close,
		StopMethod: cfg.StopMethod,
		RiskPct:    cfg.RiskPct,
	}
	w, inWindow := cal.WindowAt(last.Timestamp)
	if inWindow {
		d.Window = w.String()
	}

	vwap := indicators.IntradayVWAP(bars, cal.Location)
	d.Band = EntryBand(bars, vwap, cfg.EntryBeta)
	d.EntryPrice = d.Band.Entry(dir)
	distance := math.Abs(d.EntryPrice-last.Close) / last.Close

	if cfg.Sizing == Kelly {
		d.RiskPct, d.UsedKelly = risk.KellyRiskPct(risk.Summarise(in.Outcomes), risk.KellyConfig{
			Fraction:  cfg.KellyFraction,
			MinTrades: cfg.KellyMinTrades,
			MaxRisk:   cfg.MaxRiskPct,
		}, cfg.RiskPct)
	}
	if cfg.Advisory {
		adv := Advise(bars, vwap, dir, cfg.AdvisoryConfig)
		d.Advisory = &adv
		d.RiskPct *= adv.RiskMultiplier
	}
	// A Kelly fraction of zero means no edge and stays zero.
	if d.RiskPct > 0 {
		d.RiskPct = indicators.Clamp(d.RiskPct, cfg.MinRiskPct, cfg.MaxRiskPct)
	}

	var vet risk.Decision
	var size risk.Result
	if dir != market.Flat {
		atr := indicators.Last(indicators.ATR(bars, cfg.ATRPeriod))
		lv := levels(dir, d.EntryPrice, atr, bars, cfg)
		d.StopMethod = lv.Method
		if lv.OK {
			d.StopLoss, d.TakeProfit = lv.Stop, lv.Target
			d.RewardRisk = lv.RR(d.EntryPrice)
		}
		vet = risk.Evaluate(e.policy(), risk.TradeIntent{
			Side: dir, Entry: d.EntryPrice, Stop: d.StopLoss, TakeProfit: d.TakeProfit,
		}, cfg.Capital)

		if vet.Allowed {
			size = risk.Calculate(risk.Inputs{
				Capital:      cfg.Capital,
				RiskPct:      d.RiskPct,
				EntryPrice:   d.EntryPrice,
				StopPrice:    d.StopLoss,
				QuantityStep: cfg.QuantityStep,
				MaxLeverage:  cfg.MaxLeverage,
				MinNotional:  cfg.MinNotional,
			})
			d.PositionSize, d.Notional, d.RiskAmount = size.Quantity, size.Notional, size.ActualRisk
		}
	}

	switch {
	case dir == market.Flat:
		d.SkipReason = ReasonNoSignal
	case !inWindow:
		d.SkipReason = ReasonOutsideWindow
	case in.ExecutedToday >= cfg.MaxTradesPerDay:
		d.SkipReason = ReasonDailyLimit
	case d.Confidence < cfg.MinConfidence:
		d.SkipReason = ReasonLowConfidence
	case distance < cfg.MinEntryDistancePct-1e-12 || distance > cfg.MaxEntryDistancePct+1e-12:
		d.SkipReason = ReasonTooFar
	case !vet.Allowed:
		d.SkipReason = ReasonStopOutOfBounds
	case size.BelowMinimum:
		d.SkipReason = ReasonSizeBelowMinimum
	}
	d.ShouldExecute = d.SkipReason == ""
	if err := d.Check(); err != nil {
		return d, err
	}

	ev := e.log.Info()
	if !d.ShouldExecute {
		ev = e.log.Debug()
	}
	ev.Str("symbol", d.Symbol).
		Str("day", d.Day).
		Str("window", d.Window).
		Stringer("signal", d.Signal).
		Bool("execute", d.ShouldExecute).
		Str("reason", d.SkipReason).
		Float64("entry", d.EntryPrice).
		Float64("stop", d.StopLoss).
		Float64("target", d.TakeProfit).
		Float64("qty", d.PositionSize).
		Msg("daily decision")
	if len(vet.Violations) > 0 {
		e.log.Debug().Str("symbol", d.Symbol).Interface("violations", vet.Violations).Msg("levels rejected")
	}
	return d, nil
}

func (e *Engine) policy() risk.Policy {
	return risk.Policy{
		MinRR:      e.cfg.MinRR,
		MaxRR:      e.cfg.MaxRR,
		MinStopPct: e.cfg.MinStopPct,
		MaxStopPct: e.cfg.MaxStopPct,
	}
}
