// Package broker wraps the Alpaca trading API: positions, order submission
// and the trade-update stream.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// ErrOrderRejected marks an order the broker declined. It is surfaced as the
// cycle outcome and never retried within the same tick.
var ErrOrderRejected = errors.New("order rejected")

// OrderRequest is constructed once per signal and submitted best-effort.
type OrderRequest struct {
	Symbol        string
	Side          alpaca.Side
	Qty           decimal.Decimal
	TimeInForce   alpaca.TimeInForce
	ClientOrderID string
}

type OrderReceipt struct {
	ID            string
	ClientOrderID string
	Status        string
	FilledQty     decimal.Decimal
}

type Position struct {
	Symbol       string
	Qty          decimal.Decimal
	UnrealizedPL decimal.Decimal
	MarketValue  decimal.Decimal
}

type Client struct {
	client *alpaca.Client
}

func New(apiKey, apiSecret, baseURL string, timeout time.Duration) *Client {
	return &Client{client: alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	})}
}

// OpenPositions fetches every open position on the account. Callers match
// the traded symbol themselves; failures must propagate so the engine never
// mistakes an unreachable account for a flat one.
func (c *Client) OpenPositions(ctx context.Context) ([]Position, error) {
	raw, err := c.client.GetPositions()
	if err != nil {
		slog.Error("fetch positions failed", "error", err)
		return nil, err
	}

	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		pos := Position{Symbol: p.Symbol, Qty: p.Qty}
		if p.UnrealizedPL != nil {
			pos.UnrealizedPL = *p.UnrealizedPL
		}
		if p.MarketValue != nil {
			pos.MarketValue = *p.MarketValue
		}
		positions = append(positions, pos)
	}
	slog.Debug("positions fetched", "count", len(positions))
	return positions, nil
}

// SubmitOrder places a market order and returns the broker's receipt.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderReceipt, error) {
	qty := req.Qty
	order, err := c.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          req.Side,
		Type:          alpaca.Market,
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "error", err)
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			return OrderReceipt{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		return OrderReceipt{}, err
	}

	slog.Info("place order success",
		"order_id", order.ID, "side", req.Side, "symbol", req.Symbol,
		"qty", req.Qty, "filled_qty", order.FilledQty, "status", order.Status)
	return OrderReceipt{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
		FilledQty:     order.FilledQty,
	}, nil
}

// StreamTradeUpdates blocks delivering account trade updates to handler until
// ctx is cancelled or the connection drops.
func (c *Client) StreamTradeUpdates(ctx context.Context, handler func(alpaca.TradeUpdate)) error {
	return c.client.StreamTradeUpdates(ctx, handler, alpaca.StreamTradeUpdatesRequest{})
}
