package metrics

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve("127.0.0.1:0", zerolog.Nop())
	defer srv.Close()

	DecisionsTotal.WithLabelValues("SPY", Outcome(false, "no-signal")).Inc()
	before := Value(TrialsTotal.WithLabelValues("walkforward"))
	TrialsTotal.WithLabelValues("walkforward").Add(3)
	assert.GreaterOrEqual(t, Value(TrialsTotal.WithLabelValues("walkforward"))-before, 3.0)

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	assert.True(t, found["daytrader_decisions_total"])
	assert.True(t, found["daytrader_trials_total"])
}

func TestServeLogsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	logs := &syncBuffer{}
	srv := Serve(ln.Addr().String(), zerolog.New(logs))
	defer srv.Close()

	assert.Eventually(t, func() bool {
		return logs.Contains("metrics server failed")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "execute", Outcome(true, ""))
	assert.Equal(t, "daily-limit-reached", Outcome(false, "daily-limit-reached"))
}
