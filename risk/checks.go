package risk

import (
	"fmt"

	"github.com/rustyeddy/daytrader/market"
)

// Violation codes.
const (
	CodeNoSide           = "NO_SIDE"
	CodeNoStopOrEntry    = "NO_STOP_OR_ENTRY"
	CodeWrongSide        = "WRONG_SIDE"
	CodeStopOutOfBounds  = "STOP_OUT_OF_BOUNDS"
	CodeRRTooLow         = "RR_TOO_LOW"
	CodeRRTooHigh        = "RR_TOO_HIGH"
	CodeRiskTooHigh      = "RISK_TOO_HIGH"
	CodeLeverageTooHigh  = "LEVERAGE_TOO_HIGH"
	CodeSizeBelowMinimum = "SIZE_BELOW_MINIMUM"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
	StopPct        float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Has reports whether code is among the violations.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Evaluate checks intent against p for an account holding capital. A
// zero quantity skips the sizing checks so that prices can be vetted before
// sizing.
func Evaluate(p Policy, intent TradeIntent, capital float64) Decision {
	d := Decision{Allowed: true}

	if intent.Side == market.Flat {
		d.add(CodeNoSide, "flat intent cannot be traded")
		return d
	}
	if intent.Stop <= 0 || intent.Entry <= 0 {
		d.add(CodeNoStopOrEntry, "entry/stop must be set")
		return d
	}

	// Stop and target must sit on the correct sides of entry.
	long := intent.Side == market.Long
	if long && !(intent.Stop < intent.Entry && intent.Entry < intent.TakeProfit) ||
		!long && !(intent.TakeProfit < intent.Entry && intent.Entry < intent.Stop) {
		d.add(CodeWrongSide, fmt.Sprintf("%s stop %.4f / entry %.4f / target %.4f out of order",
			intent.Side, intent.Stop, intent.Entry, intent.TakeProfit))
	}

	d.StopPct = StopPct(intent.Entry, intent.Stop)
	if d.StopPct < p.MinStopPct || (p.MaxStopPct > 0 && d.StopPct > p.MaxStopPct) {
		d.add(CodeStopOutOfBounds, fmt.Sprintf("stop distance %.3f%% outside [%.3f%%, %.3f%%]",
			100*d.StopPct, 100*p.MinStopPct, 100*p.MaxStopPct))
	}

	d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
	const eps = 1e-9
	if d.PlannedRR < p.MinRR-eps {
		d.add(CodeRRTooLow, fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	if p.MaxRR > 0 && d.PlannedRR > p.MaxRR+eps {
		d.add(CodeRRTooHigh, fmt.Sprintf("RR %.2f above maximum %.2f", d.PlannedRR, p.MaxRR))
	}

	if intent.Quantity == 0 {
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Quantity, intent.Entry, intent.Stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, capital)
	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct+eps {
		d.add(CodeRiskTooHigh, fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
			100*d.PlannedRiskPct, 100*p.MaxRiskPct))
	}

	notional := intent.Quantity * intent.Entry
	if lev := p.MaxLeverage; lev > 0 && capital > 0 && notional > capital*lev*(1+eps) {
		d.add(CodeLeverageTooHigh, fmt.Sprintf("notional %.2f exceeds %.1fx capital %.2f",
			notional, lev, capital))
	}
	if notional < p.MinNotional {
		d.add(CodeSizeBelowMinimum, fmt.Sprintf("notional %.2f below minimum %.2f", notional, p.MinNotional))
	}
	return d
}
