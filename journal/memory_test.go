package journal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal(t *testing.T) {
	t.Parallel()

	var j Journal = NewMemory()
	m := j.(*Memory)

	var wg sync.WaitGroup
	days := []string{"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07"}
	for _, day := range days {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.RecordDecision(sampleDecision(day, "14:30-16:00")))
		}()
	}
	wg.Wait()
	assert.Len(t, m.Decisions(), len(days))

	assert.ErrorIs(t, j.RecordDecision(sampleDecision(days[0], "14:30-16:00")), ErrDuplicate)
	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "T1"}))
	require.NoError(t, j.RecordBacktest(BacktestRun{RunID: "R1"}))
	assert.Len(t, m.Trades(), 1)
	assert.Len(t, m.Runs(), 1)

	latest, err := m.LatestRunTrades("SPY")
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.NoError(t, j.Close())
	assert.Error(t, j.RecordTrade(TradeRecord{TradeID: "T2"}))
}

func TestMemoryLatestRunTrades(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	base := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, m.RecordBacktest(BacktestRun{RunID: "R1", Symbol: "SPY"}))
	require.NoError(t, m.RecordTrade(TradeRecord{TradeID: "A", RunID: "R1", CloseTime: base}))
	require.NoError(t, m.RecordBacktest(BacktestRun{RunID: "R2", Symbol: "SPY"}))
	require.NoError(t, m.RecordBacktest(BacktestRun{RunID: "Q1", Symbol: "QQQ"}))
	require.NoError(t, m.RecordTrade(TradeRecord{TradeID: "C", RunID: "R2", CloseTime: base.Add(2 * time.Hour)}))
	require.NoError(t, m.RecordTrade(TradeRecord{TradeID: "B", RunID: "R2", CloseTime: base.Add(time.Hour)}))

	got, err := m.LatestRunTrades("SPY")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].TradeID)
	assert.Equal(t, "C", got[1].TradeID)
}
