// Package ledger is an append-only log of trade updates delivered by the
// account stream. It is an observability surface, not a source of truth for
// position state.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TradeUpdate is one event from the brokerage stream, immutable after append.
type TradeUpdate struct {
	Event    string          `json:"event"`
	Symbol   string          `json:"symbol"`
	Qty      decimal.Decimal `json:"qty"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	At       time.Time       `json:"at"`
}

// Ledger is a fixed-capacity circular log. One writer (the stream consumer)
// appends; any number of readers take consistent recent-window snapshots.
// Oldest entries are evicted first when full.
type Ledger struct {
	mu   sync.RWMutex
	buf  []TradeUpdate
	cap  int
	pos  int // next write position
	full bool
}

func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ledger{
		buf: make([]TradeUpdate, capacity),
		cap: capacity,
	}
}

// Append records an event. Atomic with respect to any concurrent Recent call.
func (l *Ledger) Append(u TradeUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.pos] = u
	l.pos = (l.pos + 1) % l.cap
	if l.pos == 0 && !l.full {
		l.full = true
	}
}

// Recent returns up to n most recent events in append order, oldest first.
// The returned slice is a copy; callers may retain it freely.
func (l *Ledger) Recent(n int) []TradeUpdate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := l.len()
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil
	}

	result := make([]TradeUpdate, 0, n)
	for i := count - n; i < count; i++ {
		result = append(result, l.buf[l.index(i)])
	}
	return result
}

// Len returns the number of events currently retained.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.len()
}

func (l *Ledger) len() int {
	if l.full {
		return l.cap
	}
	return l.pos
}

// index converts a logical index (0 = oldest retained) to a buffer index.
func (l *Ledger) index(logical int) int {
	if l.full {
		return (l.pos + logical) % l.cap
	}
	return logical
}
