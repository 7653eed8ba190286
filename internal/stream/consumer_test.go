package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"rsibot/internal/ledger"
)

type fakeStreamer struct {
	updates  []alpaca.TradeUpdate
	failures int
	attempts int
}

func (f *fakeStreamer) StreamTradeUpdates(ctx context.Context, handler func(alpaca.TradeUpdate)) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("connection reset")
	}
	for _, u := range f.updates {
		handler(u)
	}
	<-ctx.Done()
	return ctx.Err()
}

func fillUpdate(symbol string, qty, price float64) alpaca.TradeUpdate {
	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(price)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return alpaca.TradeUpdate{
		At:        ts,
		Event:     "fill",
		Qty:       &q,
		Price:     &p,
		Timestamp: &ts,
		Order:     alpaca.Order{Symbol: symbol},
	}
}

func TestConsumerAppendsDeliveredUpdates(t *testing.T) {
	l := ledger.New(16)
	streamer := &fakeStreamer{updates: []alpaca.TradeUpdate{
		fillUpdate("BTC/USD", 0.001, 65000),
		fillUpdate("BTC/USD", 0.002, 65100),
	}}
	consumer := NewConsumer(streamer, l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return l.Len() == 2 })
	cancel()
	<-done

	got := l.Recent(2)
	if got[0].Event != "fill" || got[0].Symbol != "BTC/USD" {
		t.Fatalf("unexpected event %+v", got[0])
	}
	if !got[0].Qty.Equal(decimal.NewFromFloat(0.001)) {
		t.Fatalf("expected qty 0.001, got %s", got[0].Qty)
	}
	if !got[1].AvgPrice.Equal(decimal.NewFromFloat(65100)) {
		t.Fatalf("expected price 65100, got %s", got[1].AvgPrice)
	}
}

func TestConsumerReconnectsAfterDisconnect(t *testing.T) {
	l := ledger.New(16)
	streamer := &fakeStreamer{
		failures: 2,
		updates:  []alpaca.TradeUpdate{fillUpdate("BTC/USD", 0.001, 65000)},
	}
	consumer := NewConsumer(streamer, l)
	consumer.baseBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return l.Len() == 1 })
	cancel()
	<-done

	if streamer.attempts != 3 {
		t.Fatalf("expected 3 connection attempts, got %d", streamer.attempts)
	}
}

func TestConsumerStopsOnCancel(t *testing.T) {
	l := ledger.New(16)
	consumer := NewConsumer(&fakeStreamer{}, l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("consumer did not stop on cancel")
	}
}

func TestConvertFallsBackToOrderTotals(t *testing.T) {
	avg := decimal.NewFromFloat(64900)
	u := alpaca.TradeUpdate{
		At:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Event: "partial_fill",
		Order: alpaca.Order{
			Symbol:         "BTCUSD",
			FilledQty:      decimal.NewFromFloat(0.0005),
			FilledAvgPrice: &avg,
		},
	}
	event := convert(u)
	if !event.Qty.Equal(decimal.NewFromFloat(0.0005)) {
		t.Fatalf("expected order filled qty, got %s", event.Qty)
	}
	if !event.AvgPrice.Equal(avg) {
		t.Fatalf("expected order avg price, got %s", event.AvgPrice)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	waitUpTo(t, 2*time.Second, cond)
}

func waitUpTo(t *testing.T, limit time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", limit)
}
