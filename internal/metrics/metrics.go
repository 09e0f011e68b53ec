package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "daytrader_decisions_total", Help: "Daily decisions emitted"},
		[]string{"symbol", "outcome"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "daytrader_trades_total", Help: "Closed trades by exit reason"},
		[]string{"symbol", "exit_reason"},
	)
	BacktestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "daytrader_backtests_total", Help: "Completed backtest runs"},
		[]string{"symbol"},
	)
	TrialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "daytrader_trials_total", Help: "Optimizer and Monte Carlo trials run"},
		[]string{"kind"},
	)
	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "daytrader_notifications_dropped_total", Help: "Hook events dropped on a full queue"},
	)
)

func init() {
	prometheus.MustRegister(DecisionsTotal, TradesTotal, BacktestsTotal, TrialsTotal, NotificationsDropped)
}

// Outcome is the decisions_total label for a verdict: "execute" or the skip
// reason.
func Outcome(execute bool, reason string) string {
	if execute {
		return "execute"
	}
	return reason
}

// Value reads a counter's current total.
func Value(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Serve exposes /metrics on addr in the background. Listen failures other
// than a clean shutdown are logged.
func Serve(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}
