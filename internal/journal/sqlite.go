// Package journal persists trade updates to an embedded sqlite database so
// fills survive process restarts. The in-memory ledger remains the hot path;
// the journal is written by the same single stream-consumer goroutine.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"rsibot/internal/ledger"
)

type Writer struct {
	db *sql.DB
}

// Open creates or opens the journal database at path in WAL mode.
func Open(path string) (*Writer, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer, so one connection is enough.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trade_updates (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			event     TEXT    NOT NULL,
			symbol    TEXT    NOT NULL,
			qty       TEXT    NOT NULL,
			avg_price TEXT    NOT NULL,
			at        INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("journal opened", "path", path)
	return &Writer{db: db}, nil
}

// Record appends a trade update to the journal.
func (w *Writer) Record(u ledger.TradeUpdate) error {
	_, err := w.db.Exec(
		`INSERT INTO trade_updates (event, symbol, qty, avg_price, at) VALUES (?, ?, ?, ?, ?)`,
		u.Event, u.Symbol, u.Qty.String(), u.AvgPrice.String(), u.At.Unix(),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to n most recent journaled updates, oldest first.
func (w *Writer) Recent(n int) ([]ledger.TradeUpdate, error) {
	rows, err := w.db.Query(
		`SELECT event, symbol, qty, avg_price, at FROM trade_updates ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var updates []ledger.TradeUpdate
	for rows.Next() {
		var u ledger.TradeUpdate
		var qty, avgPrice string
		var at int64
		if err := rows.Scan(&u.Event, &u.Symbol, &qty, &avgPrice, &at); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		if u.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("journal qty: %w", err)
		}
		if u.AvgPrice, err = decimal.NewFromString(avgPrice); err != nil {
			return nil, fmt.Errorf("journal avg_price: %w", err)
		}
		u.At = time.Unix(at, 0).UTC()
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into append order.
	for i, j := 0, len(updates)-1; i < j; i, j = i+1, j-1 {
		updates[i], updates[j] = updates[j], updates[i]
	}
	return updates, nil
}

func (w *Writer) Close() error {
	return w.db.Close()
}
