package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rsibot/internal/ledger"
)

func TestRecordAndRecentRoundTrip(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		err := w.Record(ledger.TradeUpdate{
			Event:    "fill",
			Symbol:   "BTC/USD",
			Qty:      decimal.New(int64(i), -3),
			AvgPrice: decimal.NewFromInt(65000),
			At:       at.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := w.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got))
	}
	// Oldest first within the returned window.
	if !got[0].Qty.Equal(decimal.New(2, -3)) || !got[1].Qty.Equal(decimal.New(3, -3)) {
		t.Fatalf("unexpected order: %s then %s", got[0].Qty, got[1].Qty)
	}
	if !got[1].At.Equal(at.Add(3 * time.Minute)) {
		t.Fatalf("unexpected timestamp %s", got[1].At)
	}
}

func TestRecentOnEmptyJournal(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	got, err := w.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
}
