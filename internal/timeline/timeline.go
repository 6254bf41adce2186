// Package timeline maintains the append-only per-order event log consumed by
// operators for support and dispute resolution. Entries are never mutated or
// deleted.
package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx so entries can be written
// inside the same transaction as the state change they record.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Entry is one row of the order timeline.
type Entry struct {
	ID        int64          `json:"id"`
	OrderID   int64          `json:"order_id"`
	Event     string         `json:"event"`
	ActorID   *int64         `json:"actor_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Append writes one entry. The caller decides whether db is a pool or an open
// transaction.
func Append(ctx context.Context, db DB, entry Entry) error {
	if entry.OrderID == 0 || entry.Event == "" {
		return errors.New("timeline: entry requires order_id and event")
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx,
		`INSERT INTO order_timeline (order_id, event, actor_id, details, created_at) VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`,
		entry.OrderID, entry.Event, entry.ActorID, details, nullableTime(entry.CreatedAt))
	return err
}

// List returns the timeline for an order, oldest first.
func List(ctx context.Context, pool *pgxpool.Pool, orderID int64) ([]Entry, error) {
	rows, err := pool.Query(ctx,
		`SELECT id, order_id, event, actor_id, details, created_at FROM order_timeline WHERE order_id = $1 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Event, &e.ActorID, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
