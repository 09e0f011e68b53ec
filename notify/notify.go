// Package notify delivers decisions and closed trades to external hooks
// without ever blocking the caller.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/internal/metrics"
)

// Hook receives events. Calls come from a single goroutine, in order.
type Hook interface {
	OnDecision(ctx context.Context, d decision.DailyDecision) error
	OnTrade(ctx context.Context, t backtest.Trade) error
}

// Event carries exactly one of Decision or Trade.
type Event struct {
	Decision *decision.DailyDecision
	Trade    *backtest.Trade
}

// Dispatcher queues events for its hooks and drops them when the queue is
// full.
type Dispatcher struct {
	hooks []Hook
	log   zerolog.Logger
	ch    chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher starts a dispatcher with a queue of size events. It stops
// when ctx is cancelled or Close is called.
func NewDispatcher(ctx context.Context, size int, log zerolog.Logger, hooks ...Hook) *Dispatcher {
	if size < 1 {
		size = 1
	}
	d := &Dispatcher{
		hooks: hooks,
		log:   log,
		ch:    make(chan Event, size),
		done:  make(chan struct{}),
	}
	go d.run(ctx)
	return d
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.ch:
			if !ok {
				return
			}
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, h := range d.hooks {
		var err error
		switch {
		case ev.Decision != nil:
			err = h.OnDecision(ctx, *ev.Decision)
		case ev.Trade != nil:
			err = h.OnTrade(ctx, *ev.Trade)
		}
		if err != nil {
			d.failed.Add(1)
			d.log.Warn().Err(err).Msg("notification hook failed")
			continue
		}
		d.delivered.Add(1)
	}
}

// Decision queues dd and reports whether it was accepted.
func (d *Dispatcher) Decision(dd decision.DailyDecision) bool {
	return d.send(Event{Decision: &dd})
}

// Trade queues t and reports whether it was accepted.
func (d *Dispatcher) Trade(t backtest.Trade) bool {
	return d.send(Event{Trade: &t})
}

func (d *Dispatcher) send(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.ch <- ev:
		return true
	default:
		d.dropped.Add(1)
		metrics.NotificationsDropped.Inc()
		d.log.Debug().Msg("notification queue full, event dropped")
		return false
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}

// Dropped counts events rejected on a full queue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Delivered counts successful hook calls.
func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }

// Failed counts hook calls that returned an error.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }
