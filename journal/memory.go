package journal

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rustyeddy/daytrader/decision"
)

// Memory keeps records in memory. It is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	decisions []decision.DailyDecision
	trades    []TradeRecord
	runs      []BacktestRun
	seen      map[string]bool
	closed    bool
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool)}
}

func (m *Memory) RecordDecision(d decision.DailyDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.open(); err != nil {
		return err
	}
	key := decisionKey(d)
	if m.seen[key] {
		return fmt.Errorf("%w: %s %s %q", ErrDuplicate, d.Symbol, d.Day, d.Window)
	}
	m.seen[key] = true
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.open(); err != nil {
		return err
	}
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordBacktest(r BacktestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.open(); err != nil {
		return err
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) open() error {
	if m.closed {
		return errors.New("journal closed")
	}
	return nil
}

// Decisions returns a copy of the recorded decisions in record order.
func (m *Memory) Decisions() []decision.DailyDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.decisions)
}

func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.trades)
}

func (m *Memory) Runs() []BacktestRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.runs)
}

// LatestRunTrades returns the trades of the last run recorded for symbol.
func (m *Memory) LatestRunTrades(symbol string) ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runID string
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Symbol == symbol {
			runID = m.runs[i].RunID
			break
		}
	}
	if runID == "" {
		return nil, nil
	}
	var out []TradeRecord
	for _, t := range m.trades {
		if t.RunID == runID {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b TradeRecord) int { return a.CloseTime.Compare(b.CloseTime) })
	return out, nil
}
