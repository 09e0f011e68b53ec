package indicators

import (
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// SessionVWAP is a streaming volume-weighted average price that resets at the
// start of every local trading day. It is fed one closed bar at a time, so a
// value never mixes information across days or from bars not yet seen.
type SessionVWAP struct {
	loc *time.Location

	day   string
	pv    float64
	vol   float64
	count int
}

// NewSessionVWAP creates a VWAP whose day boundaries are taken in loc.
func NewSessionVWAP(loc *time.Location) *SessionVWAP {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionVWAP{loc: loc}
}

func (v *SessionVWAP) Name() string {
	return "VWAP(session)"
}

func (v *SessionVWAP) Reset() {
	v.day = ""
	v.pv = 0
	v.vol = 0
	v.count = 0
}

// Update consumes the next closed bar.
func (v *SessionVWAP) Update(b market.Bar) {
	day := time.UnixMilli(b.Timestamp).In(v.loc).Format(time.DateOnly)
	if day != v.day {
		v.Reset()
		v.day = day
	}
	v.pv += b.Typical() * b.Volume
	v.vol += b.Volume
	v.count++
}

// Ready reports whether the current day has traded volume.
func (v *SessionVWAP) Ready() bool {
	return v.vol > 0
}

// Value returns the VWAP of the current day, or NaN before any volume.
func (v *SessionVWAP) Value() float64 {
	return SafeDiv(v.pv, v.vol)
}

// IntradayVWAP reconstructs the session VWAP bar by bar.
func IntradayVWAP(bars market.Series, loc *time.Location) []float64 {
	out := make([]float64, len(bars))
	v := NewSessionVWAP(loc)
	for i, b := range bars {
		v.Update(b)
		out[i] = v.Value()
	}
	return out
}
