// Package fanout publishes trade updates to Redis pub/sub so external
// dashboards can subscribe without touching the trading process.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"rsibot/internal/ledger"
	"rsibot/internal/position"
)

type Publisher struct {
	rdb     *goredis.Client
	channel string
}

// NewPublisher connects to Redis at addr and publishes to
// pub:trades:<symbol> (separator stripped).
func NewPublisher(addr, symbol string) *Publisher {
	return &Publisher{
		rdb:     goredis.NewClient(&goredis.Options{Addr: addr}),
		channel: fmt.Sprintf("pub:trades:%s", position.Normalize(symbol)),
	}
}

// Publish sends one trade update. Delivery is best-effort: a failed publish
// is logged and dropped, never blocking the stream consumer.
func (p *Publisher) Publish(ctx context.Context, u ledger.TradeUpdate) {
	payload, err := json.Marshal(u)
	if err != nil {
		slog.Error("fanout marshal failed", "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		slog.Warn("fanout publish failed", "channel", p.channel, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
