package market

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV observation. Timestamp is the bar open time in
// unix milliseconds.
type Bar struct {
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
	Open      float64 `json:"open" yaml:"open"`
	High      float64 `json:"high" yaml:"high"`
	Low       float64 `json:"low" yaml:"low"`
	Close     float64 `json:"close" yaml:"close"`
	Volume    float64 `json:"volume" yaml:"volume"`
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Timeframe string  `json:"timeframe" yaml:"timeframe"`
}

// Time returns the bar open time in UTC.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// Typical returns (H+L+C)/3.
func (b Bar) Typical() float64 {
	return (b.High + b.Low + b.Close) / 3.0
}

// Check returns a non-nil error describing the first OHLCV invariant the bar
// breaks.
func (b Bar) Check() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value")
		}
	}
	if b.Close <= 0 || b.Open <= 0 || b.Low <= 0 {
		return fmt.Errorf("prices must be > 0 (o=%g l=%g c=%g)", b.Open, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("volume must be >= 0, got %g", b.Volume)
	}
	if b.High < math.Max(b.Open, math.Max(b.Close, b.Low)) {
		return fmt.Errorf("high %g below open/close/low", b.High)
	}
	if b.Low > math.Min(b.Open, math.Min(b.Close, b.High)) {
		return fmt.Errorf("low %g above open/close/high", b.Low)
	}
	return nil
}
