// Package journal persists an append-only audit trail of terminal order
// results to sqlite. It is write-behind and never read back for recovery;
// the execution core stays an in-memory coordination layer.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id              TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL,
	asset_id        TEXT NOT NULL,
	side            TEXT NOT NULL,
	status          TEXT NOT NULL,
	requested       REAL NOT NULL,
	executed_amount REAL NOT NULL,
	executed_price  REAL NOT NULL,
	fees            REAL NOT NULL,
	slippage        REAL NOT NULL,
	latency_ms      INTEGER NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_order ON executions(order_id);
CREATE INDEX IF NOT EXISTS idx_executions_asset ON executions(asset_id);
`

// Store owns the sqlite handle for the execution journal.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// sqlite tolerates exactly one writer; the batch writer is it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Row is one journaled terminal execution.
type Row struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	AssetID        string    `json:"asset_id"`
	Side           string    `json:"side"`
	Status         string    `json:"status"`
	Requested      float64   `json:"requested"`
	ExecutedAmount float64   `json:"executed_amount"`
	ExecutedPrice  float64   `json:"executed_price"`
	Fees           float64   `json:"fees"`
	Slippage       float64   `json:"slippage"`
	LatencyMs      int64     `json:"latency_ms"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recent returns the most recently journaled executions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, asset_id, side, status, requested,
		       executed_amount, executed_price, fees, slippage, latency_ms, error, created_at
		FROM executions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.ID, &r.OrderID, &r.AssetID, &r.Side, &r.Status, &r.Requested,
			&r.ExecutedAmount, &r.ExecutedPrice, &r.Fees, &r.Slippage, &r.LatencyMs, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
