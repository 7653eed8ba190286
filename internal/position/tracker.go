// Package position reconciles the agent's "currently holding" view against
// the brokerage account. The account is authoritative: state is re-fetched on
// every query and never cached across cycles.
package position

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rsibot/internal/broker"
)

// ErrPositionUnknown marks a failed account query. The engine must treat it
// as "state unknown" and submit nothing, not as "not holding".
var ErrPositionUnknown = errors.New("position state unknown")

// Source is the account capability the tracker consumes.
type Source interface {
	OpenPositions(ctx context.Context) ([]broker.Position, error)
}

// Tracker answers holding queries for a single traded symbol.
type Tracker struct {
	source Source
	symbol string
}

func NewTracker(source Source, symbol string) *Tracker {
	return &Tracker{source: source, symbol: symbol}
}

// Normalize strips the pair separator so "BTC/USD" and "BTCUSD" compare
// equal. The account feed reports crypto positions in either form.
func Normalize(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// SameSymbol reports whether two symbols name the same instrument under
// normalization.
func SameSymbol(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Get returns the open position for the tracked symbol, or nil when flat.
func (t *Tracker) Get(ctx context.Context) (*broker.Position, error) {
	positions, err := t.source.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPositionUnknown, err)
	}
	for i := range positions {
		if SameSymbol(positions[i].Symbol, t.symbol) {
			return &positions[i], nil
		}
	}
	return nil, nil
}

// IsHolding reports whether the account holds a nonzero quantity of the
// tracked symbol.
func (t *Tracker) IsHolding(ctx context.Context) (bool, error) {
	pos, err := t.Get(ctx)
	if err != nil {
		return false, err
	}
	return pos != nil && pos.Qty.IsPositive(), nil
}
