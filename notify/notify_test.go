package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/market"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) hook() Funcs {
	return Funcs{
		Decision: func(_ context.Context, d decision.DailyDecision) error {
			r.add("decision " + d.Day)
			return nil
		},
		Trade: func(_ context.Context, t backtest.Trade) error {
			r.add("trade " + t.ID)
			return nil
		},
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	t.Parallel()

	var rec recorder
	d := NewDispatcher(context.Background(), 16, zerolog.Nop(), rec.hook())
	assert.True(t, d.Decision(decision.DailyDecision{Day: "2024-03-04"}))
	assert.True(t, d.Trade(backtest.Trade{ID: "T1"}))
	assert.True(t, d.Decision(decision.DailyDecision{Day: "2024-03-05"}))
	d.Close()

	assert.Equal(t, []string{"decision 2024-03-04", "trade T1", "decision 2024-03-05"}, rec.events)
	assert.EqualValues(t, 3, d.Delivered())
	assert.Zero(t, d.Dropped())

	// Closed dispatchers refuse events without panicking.
	assert.False(t, d.Trade(backtest.Trade{ID: "late"}))
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	slow := Funcs{Trade: func(context.Context, backtest.Trade) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}}
	d := NewDispatcher(context.Background(), 2, zerolog.Nop(), slow)

	require.True(t, d.Trade(backtest.Trade{ID: "busy"}))
	<-started
	assert.True(t, d.Trade(backtest.Trade{ID: "q1"}))
	assert.True(t, d.Trade(backtest.Trade{ID: "q2"}))
	assert.False(t, d.Trade(backtest.Trade{ID: "dropped"}))
	assert.EqualValues(t, 1, d.Dropped())

	close(release)
	d.Close()
	assert.EqualValues(t, 3, d.Delivered())
}

func TestDispatcherCountsHookErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	failing := Funcs{Decision: func(context.Context, decision.DailyDecision) error {
		return errors.New("webhook down")
	}}
	var rec recorder
	d := NewDispatcher(context.Background(), 4, zerolog.New(&buf), failing, rec.hook())
	d.Decision(decision.DailyDecision{Day: "2024-03-04"})
	d.Close()

	assert.EqualValues(t, 1, d.Failed())
	assert.EqualValues(t, 1, d.Delivered())
	assert.Len(t, rec.events, 1)
	assert.Contains(t, buf.String(), "webhook down")
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(ctx, 1, zerolog.Nop())
	cancel()
	d.Close()
}

func TestLogAndOrgHooks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := LogHook{Log: zerolog.New(&buf)}
	dd := decision.DailyDecision{Symbol: "SPY", Day: "2024-03-04", Signal: market.Short, SkipReason: "low-confidence"}
	require.NoError(t, h.OnDecision(context.Background(), dd))
	require.NoError(t, h.OnTrade(context.Background(), backtest.Trade{Symbol: "SPY", ExitReason: backtest.ForcedClose}))
	out := buf.String()
	assert.Contains(t, out, `"signal":"SHORT"`)
	assert.Contains(t, out, `"reason":"low-confidence"`)
	assert.Contains(t, out, `"reason":"forced_close"`)

	var entries []string
	org := OrgHook{Write: func(s string) error {
		entries = append(entries, s)
		return nil
	}}
	require.NoError(t, org.OnDecision(context.Background(), dd))
	require.NoError(t, org.OnTrade(context.Background(), backtest.Trade{ID: "T1", Symbol: "SPY", Side: market.Long}))
	require.Len(t, entries, 2)
	assert.True(t, strings.HasPrefix(entries[0], "** SKIP SPY 2024-03-04 SHORT"))
	assert.True(t, strings.HasPrefix(entries[1], "** Trade: SPY LONG (T1)"))
}
