package risk

import "github.com/rustyeddy/daytrader/market"

// Policy holds the hard limits a planned trade must respect.
type Policy struct {
	// Risk limits
	MaxRiskPct float64 // 0.02

	// Reward/risk bounds
	MinRR float64 // 1.5
	MaxRR float64 // 5

	// Stop distance as a fraction of entry
	MinStopPct float64 // 0.001
	MaxStopPct float64 // 0.05

	// Exposure
	MaxLeverage float64 // 1
	MinNotional float64 // 10
}

// DefaultPolicy returns conservative limits for a cash account.
func DefaultPolicy() Policy {
	return Policy{
		MaxRiskPct:  0.02,
		MinRR:       1.5,
		MaxRR:       5,
		MinStopPct:  0.001,
		MaxStopPct:  0.05,
		MaxLeverage: 1,
		MinNotional: 10,
	}
}

// TradeIntent is a fully priced trade awaiting approval.
type TradeIntent struct {
	Side       market.Direction
	Quantity   float64
	Entry      float64
	Stop       float64
	TakeProfit float64
}
