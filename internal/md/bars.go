// Package md wraps the Alpaca crypto market data API behind the narrow
// bar-history capability the decision engine consumes.
package md

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// ErrDataUnavailable marks price history that could not be retrieved or is
// too short to act on. Cycles fail fast on it and retry on the next tick.
var ErrDataUnavailable = errors.New("market data unavailable")

// Bar is a single OHLC sample at one-minute granularity.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

type Client struct {
	data *marketdata.Client
}

// New builds a crypto bar client. timeout bounds every request so a cycle
// can never block indefinitely on history retrieval.
func New(apiKey, apiSecret string, timeout time.Duration) *Client {
	return &Client{
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			HTTPClient: &http.Client{Timeout: timeout},
		}),
	}
}

// RecentBars returns the trailing lookback of one-minute bars for symbol,
// oldest first.
func (c *Client) RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]Bar, error) {
	end := time.Now().UTC()
	start := end.Add(-lookback)

	raw, err := c.data.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: marketdata.OneMin,
		Start:     start,
		End:       end,
	})
	if err != nil {
		slog.Error("fetch bars failed", "symbol", symbol, "lookback", lookback, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
		})
	}
	slog.Debug("bars fetched", "symbol", symbol, "count", len(bars))
	return bars, nil
}

// Closes extracts the close series from bars, preserving order.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
