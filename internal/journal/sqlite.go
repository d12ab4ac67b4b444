package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = NewID(ev.Time)
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
		(id, run_id, time, kind, symbol, order_id, qty, entry, trigger_price, limit_price, step, price, pnl, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Time.UTC(), string(ev.Kind), ev.Symbol, ev.OrderID, ev.Qty,
		ev.Entry, ev.Trigger, ev.Limit, ev.Step, ev.Price, ev.PnL, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", ev.Kind, err)
	}
	return nil
}

// Recent returns the newest events first.
func (j *SQLite) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, time, kind, symbol, order_id, qty, entry, trigger_price, limit_price, step, price, pnl, detail
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Time, &kind, &ev.Symbol, &ev.OrderID, &ev.Qty,
			&ev.Entry, &ev.Trigger, &ev.Limit, &ev.Step, &ev.Price, &ev.PnL, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = Kind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
