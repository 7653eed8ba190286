package position

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"rsibot/internal/broker"
)

type fakeSource struct {
	positions []broker.Position
	err       error
	calls     int
}

func (f *fakeSource) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	f.calls++
	return f.positions, f.err
}

func TestNormalizeStripsSeparator(t *testing.T) {
	if got := Normalize("BTC/USD"); got != "BTCUSD" {
		t.Fatalf("expected BTCUSD, got %q", got)
	}
	if got := Normalize("BTCUSD"); got != "BTCUSD" {
		t.Fatalf("expected BTCUSD, got %q", got)
	}
}

func TestSameSymbolMatchesBothForms(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"BTC/USD", "BTCUSD", true},
		{"BTCUSD", "BTC/USD", true},
		{"BTC/USD", "BTC/USD", true},
		{"BTC/USD", "ETHUSD", false},
	}
	for _, tc := range cases {
		if got := SameSymbol(tc.a, tc.b); got != tc.want {
			t.Fatalf("SameSymbol(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIsHoldingMatchesSeparatorlessFeed(t *testing.T) {
	source := &fakeSource{positions: []broker.Position{
		{Symbol: "ETHUSD", Qty: decimal.NewFromFloat(1)},
		{Symbol: "BTCUSD", Qty: decimal.NewFromFloat(0.002)},
	}}
	tracker := NewTracker(source, "BTC/USD")

	holding, err := tracker.IsHolding(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !holding {
		t.Fatalf("expected holding=true for separatorless account symbol")
	}
}

func TestIsHoldingFalseWhenFlat(t *testing.T) {
	tracker := NewTracker(&fakeSource{}, "BTC/USD")
	holding, err := tracker.IsHolding(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if holding {
		t.Fatalf("expected holding=false with no positions")
	}
}

func TestIsHoldingFalseForZeroQuantity(t *testing.T) {
	source := &fakeSource{positions: []broker.Position{
		{Symbol: "BTC/USD", Qty: decimal.Zero},
	}}
	tracker := NewTracker(source, "BTC/USD")
	holding, err := tracker.IsHolding(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if holding {
		t.Fatalf("expected holding=false for zero quantity")
	}
}

func TestFetchFailurePropagatesAsPositionUnknown(t *testing.T) {
	source := &fakeSource{err: errors.New("401 unauthorized")}
	tracker := NewTracker(source, "BTC/USD")

	_, err := tracker.IsHolding(context.Background())
	if !errors.Is(err, ErrPositionUnknown) {
		t.Fatalf("expected ErrPositionUnknown, got %v", err)
	}
}

func TestGetReturnsMatchedPosition(t *testing.T) {
	source := &fakeSource{positions: []broker.Position{
		{Symbol: "BTCUSD", Qty: decimal.NewFromFloat(0.001), MarketValue: decimal.NewFromInt(65)},
	}}
	tracker := NewTracker(source, "BTC/USD")

	pos, err := tracker.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos == nil || !pos.Qty.Equal(decimal.NewFromFloat(0.001)) {
		t.Fatalf("expected matched position, got %+v", pos)
	}
}
