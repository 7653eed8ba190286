// Package stream consumes the brokerage trade-update stream. The consumer
// goroutine owns the ledger's write side; everything downstream sees events
// only through the ledger's read view or the optional sinks wired here.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"rsibot/internal/fanout"
	"rsibot/internal/journal"
	"rsibot/internal/ledger"
	"rsibot/internal/metrics"
)

// ErrDisconnected marks a dropped stream connection. The consumer reconnects
// with backoff; events missed during the outage are not backfilled.
var ErrDisconnected = errors.New("trade stream disconnected")

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Streamer is the long-lived trade-update capability of the broker.
type Streamer interface {
	StreamTradeUpdates(ctx context.Context, handler func(alpaca.TradeUpdate)) error
}

type Consumer struct {
	streamer    Streamer
	ledger      *ledger.Ledger
	journal     *journal.Writer   // optional
	publisher   *fanout.Publisher // optional
	notify      func(ledger.TradeUpdate)
	metrics     *metrics.Metrics
	baseBackoff time.Duration
}

func NewConsumer(streamer Streamer, l *ledger.Ledger) *Consumer {
	return &Consumer{streamer: streamer, ledger: l, baseBackoff: initialBackoff}
}

// WithJournal persists each update to the sqlite journal.
func (c *Consumer) WithJournal(w *journal.Writer) *Consumer {
	c.journal = w
	return c
}

// WithPublisher fans each update out over Redis pub/sub.
func (c *Consumer) WithPublisher(p *fanout.Publisher) *Consumer {
	c.publisher = p
	return c
}

// WithNotify invokes fn for each update, after the ledger append.
func (c *Consumer) WithNotify(fn func(ledger.TradeUpdate)) *Consumer {
	c.notify = fn
	return c
}

func (c *Consumer) WithMetrics(m *metrics.Metrics) *Consumer {
	c.metrics = m
	return c
}

// Run blocks consuming the stream until ctx is cancelled, reconnecting with
// capped exponential backoff whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.baseBackoff
	for {
		start := time.Now()
		err := c.streamer.StreamTradeUpdates(ctx, c.handle)
		if ctx.Err() != nil {
			slog.Info("trade stream stopped")
			return
		}
		if err == nil {
			err = ErrDisconnected
		}
		slog.Warn("trade stream disconnected, reconnecting", "error", err, "backoff", backoff)
		if c.metrics != nil {
			c.metrics.StreamReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		// A connection that survived a while earns a fresh backoff.
		if time.Since(start) > maxBackoff {
			backoff = c.baseBackoff
		} else if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Consumer) handle(u alpaca.TradeUpdate) {
	event := convert(u)
	c.ledger.Append(event)
	if c.metrics != nil {
		c.metrics.TradeUpdates.Inc()
	}
	slog.Info("trade update", "event", event.Event, "symbol", event.Symbol, "qty", event.Qty, "avg_price", event.AvgPrice)

	if c.journal != nil {
		if err := c.journal.Record(event); err != nil {
			slog.Error("journal record failed", "error", err)
		}
	}
	if c.publisher != nil {
		c.publisher.Publish(context.Background(), event)
	}
	if c.notify != nil {
		c.notify(event)
	}
}

// convert narrows an SDK trade update to the ledger's event shape. The
// update-level qty/price fields are only present on fill events; the order
// totals are the fallback.
func convert(u alpaca.TradeUpdate) ledger.TradeUpdate {
	event := ledger.TradeUpdate{
		Event:  u.Event,
		Symbol: u.Order.Symbol,
		Qty:    u.Order.FilledQty,
		At:     u.At,
	}
	if u.Order.FilledAvgPrice != nil {
		event.AvgPrice = *u.Order.FilledAvgPrice
	}
	if u.Qty != nil {
		event.Qty = *u.Qty
	}
	if u.Price != nil {
		event.AvgPrice = *u.Price
	}
	if u.Timestamp != nil {
		event.At = *u.Timestamp
	}
	return event
}
