package market

import (
	"sort"

	"github.com/rustyeddy/daytrader/errs"
)

// Series is an ordered run of bars for one symbol/timeframe. The core only
// reads it; callers own the backing array.
type Series []Bar

// Symbol returns the symbol of the first bar, or "" for an empty series.
func (s Series) Symbol() string {
	if len(s) == 0 {
		return ""
	}
	return s[0].Symbol
}

// Timeframe returns the timeframe of the first bar.
func (s Series) Timeframe() string {
	if len(s) == 0 {
		return ""
	}
	return s[0].Timeframe
}

// Last returns the final bar. The series must not be empty.
func (s Series) Last() Bar {
	return s[len(s)-1]
}

func (s Series) Opens() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Open
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

func (s Series) Timestamps() []int64 {
	out := make([]int64, len(s))
	for i, b := range s {
		out[i] = b.Timestamp
	}
	return out
}

// Validate checks every bar and the strict ordering of timestamps. It returns
// an *errs.DataError naming the first offending bar.
func (s Series) Validate() error {
	sym, tf := s.Symbol(), s.Timeframe()
	for i, b := range s {
		if err := b.Check(); err != nil {
			return errs.Data(sym, tf, i, "%v", err)
		}
		if b.Symbol != sym {
			return errs.Data(sym, tf, i, "mixed symbols %q and %q", sym, b.Symbol)
		}
		if i > 0 && b.Timestamp <= s[i-1].Timestamp {
			return errs.Data(sym, tf, i, "timestamp %d not after %d", b.Timestamp, s[i-1].Timestamp)
		}
	}
	return nil
}

// Require returns a DataError when the series holds fewer than n bars.
func (s Series) Require(n int) error {
	if len(s) < n {
		return errs.Data(s.Symbol(), s.Timeframe(), -1, "insufficient history: need %d bars, got %d", n, len(s))
	}
	return nil
}

// LowerBound returns the first index whose timestamp is >= ts.
func (s Series) LowerBound(ts int64) int {
	return sort.Search(len(s), func(i int) bool { return s[i].Timestamp >= ts })
}

// Between returns the half-open sub-series [start, end) by timestamp. A zero
// bound is open.
func (s Series) Between(start, end int64) Series {
	lo := 0
	if start != 0 {
		lo = s.LowerBound(start)
	}
	hi := len(s)
	if end != 0 {
		hi = s.LowerBound(end)
	}
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}
