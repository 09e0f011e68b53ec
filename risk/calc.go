package risk

import "math"

// PlannedRisk is the loss in account currency if the stop is hit.
func PlannedRisk(quantity, entry, stop float64) float64 {
	return math.Abs(quantity) * math.Abs(entry-stop)
}

// RR is the reward/risk ratio of a planned trade, 0 when the stop sits on the
// entry.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RiskPct is planned risk as a fraction of equity; +Inf for non-positive
// equity so that any limit check fails.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

// StopPct is the stop distance as a fraction of the entry price.
func StopPct(entry, stop float64) float64 {
	if entry == 0 {
		return math.Inf(1)
	}
	return math.Abs(entry-stop) / entry
}
