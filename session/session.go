// Package session holds the trading-calendar rules shared by the backtest and
// the decision engine: local trading windows, the forced-close time and the
// per-day entry ledger.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // calendars must resolve without system zoneinfo

	"github.com/rustyeddy/daytrader/errs"
)

// Rule violation codes. They are expected outcomes, not errors.
const (
	ReasonDailyLimit    = "daily-limit-reached"
	ReasonOutsideWindow = "outside-window"
)

// Clock is a local wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("bad clock %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("bad hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("bad minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("clock %q out of range", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since local midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Window is a half-open local time range [Start, End).
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("bad window %q (want HH:MM-HH:MM)", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return Window{}, err
	}
	if end.Minutes() <= start.Minutes() {
		return Window{}, fmt.Errorf("window %q ends before it starts", s)
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

func (w Window) contains(minutes int) bool {
	return minutes >= w.Start.Minutes() && minutes < w.End.Minutes()
}

// Calendar decides whether a timestamp may open a position and when open
// positions must be closed.
type Calendar struct {
	Location    *time.Location
	Windows     []Window
	ForcedClose Clock
}

// NewCalendar builds a validated calendar. Windows must be disjoint and end
// no later than the forced-close time.
func NewCalendar(timezone string, windows []string, forcedClose string) (Calendar, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return Calendar{}, errs.Config("session", "timezone", timezone, "%v", err)
		}
		loc = l
	}
	if len(windows) == 0 {
		return Calendar{}, errs.Config("session", "trading_windows", windows, "at least one window is required")
	}
	fc, err := ParseClock(forcedClose)
	if err != nil {
		return Calendar{}, errs.Config("session", "forced_close_time", forcedClose, "%v", err)
	}

	cal := Calendar{Location: loc, ForcedClose: fc}
	for _, s := range windows {
		w, err := ParseWindow(s)
		if err != nil {
			return Calendar{}, errs.Config("session", "trading_windows", s, "%v", err)
		}
		if w.End.Minutes() > fc.Minutes() {
			return Calendar{}, errs.Config("session", "trading_windows", s, "window ends after forced close %s", fc)
		}
		for _, prev := range cal.Windows {
			if w.Start.Minutes() < prev.End.Minutes() && prev.Start.Minutes() < w.End.Minutes() {
				return Calendar{}, errs.Config("session", "trading_windows", s, "overlaps %s", prev)
			}
		}
		cal.Windows = append(cal.Windows, w)
	}
	return cal, nil
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Local converts a unix-ms timestamp into calendar local time.
func (c Calendar) Local(ts int64) time.Time {
	return time.UnixMilli(ts).In(c.loc())
}

// Day returns the local trading-day key (YYYY-MM-DD) of ts.
func (c Calendar) Day(ts int64) string {
	return c.Local(ts).Format(time.DateOnly)
}

// WindowAt returns the window containing ts.
func (c Calendar) WindowAt(ts int64) (Window, bool) {
	t := c.Local(ts)
	m := t.Hour()*60 + t.Minute()
	for _, w := range c.Windows {
		if w.contains(m) {
			return w, true
		}
	}
	return Window{}, false
}

// ForcedCloseOn returns the forced-close instant (unix ms) of ts's local day.
func (c Calendar) ForcedCloseOn(ts int64) int64 {
	t := c.Local(ts)
	fc := time.Date(t.Year(), t.Month(), t.Day(), c.ForcedClose.Hour, c.ForcedClose.Minute, 0, 0, c.loc())
	return fc.UnixMilli()
}

// Ledger counts executed entries per symbol and trading day.
type Ledger struct {
	counts map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{counts: make(map[string]int)}
}

func key(symbol, day string) string {
	return symbol + "|" + day
}

// Count returns executed entries for symbol on day.
func (l *Ledger) Count(symbol, day string) int {
	return l.counts[key(symbol, day)]
}

// Record notes one executed entry.
func (l *Ledger) Record(symbol, day string) {
	l.counts[key(symbol, day)]++
}
