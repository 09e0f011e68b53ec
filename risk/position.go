package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// Inputs describe one fixed-fractional sizing request.
type Inputs struct {
	Capital      float64
	RiskPct      float64 // fraction of capital lost if the stop is hit, e.g. 0.01
	EntryPrice   float64
	StopPrice    float64
	QuantityStep float64 // lot size; 0 means whole units
	MaxLeverage  float64 // notional cap as a multiple of capital; 0 means 1
	MinNotional  float64
}

// Result is the sized position. Quantity is always a multiple of the step,
// rounded down.
type Result struct {
	Quantity     float64
	RiskAmount   float64 // capital * risk pct, the budget
	ActualRisk   float64 // quantity * stop distance
	Notional     float64
	StopDistance float64

	// LeverageCapped is set when the leverage cap shrank the quantity.
	LeverageCapped bool
	// BelowMinimum is set when the notional is under MinNotional.
	BelowMinimum bool
}

// Calculate sizes a position so that hitting the stop loses at most
// Capital*RiskPct, then caps notional at Capital*MaxLeverage. Rounding is done
// in decimal so a step of 0.01 never yields 0.30000000000000004.
func Calculate(in Inputs) Result {
	res := Result{
		RiskAmount:   in.Capital * in.RiskPct,
		StopDistance: math.Abs(in.EntryPrice - in.StopPrice),
	}
	if res.StopDistance == 0 || in.EntryPrice <= 0 || res.RiskAmount <= 0 {
		res.BelowMinimum = true
		return res
	}

	step := decimal.NewFromFloat(in.QuantityStep)
	if !step.IsPositive() {
		step = decimal.NewFromInt(1)
	}
	lev := in.MaxLeverage
	if lev <= 0 {
		lev = 1
	}

	qty := decimal.NewFromFloat(res.RiskAmount).Div(decimal.NewFromFloat(res.StopDistance))
	maxQty := decimal.NewFromFloat(in.Capital * lev).Div(decimal.NewFromFloat(in.EntryPrice))
	if qty.GreaterThan(maxQty) {
		qty = maxQty
		res.LeverageCapped = true
	}
	qty = RoundDown(qty, step)

	res.Quantity = qty.InexactFloat64()
	res.Notional = qty.Mul(decimal.NewFromFloat(in.EntryPrice)).InexactFloat64()
	res.ActualRisk = qty.Mul(decimal.NewFromFloat(res.StopDistance)).InexactFloat64()
	res.BelowMinimum = res.Quantity <= 0 || res.Notional < in.MinNotional
	return res
}

// RoundDown truncates q to a multiple of step.
func RoundDown(q, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return q.Floor()
	}
	return q.Div(step).Floor().Mul(step)
}
