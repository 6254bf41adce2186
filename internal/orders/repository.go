package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadline/roadline/internal/platform/db"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/timeline"
)

// ErrStatusConflict indicates a concurrent status change won the race.
var ErrStatusConflict = errors.New("orders: status changed concurrently")

// RepositoryPort defines data access for orders.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Order, error)
	Create(ctx context.Context, input CreateOrderInput) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
	// SetStatus swaps the status from→to and appends the timeline entry in
	// one transaction. Returns ErrStatusConflict when the order is no longer
	// in the expected from status.
	SetStatus(ctx context.Context, id int64, from, to Status, actorID *int64, reason string) error
	InsertLocation(ctx context.Context, orderID int64, lat, lng float64, actorID *int64) (*Location, error)
	ListLocations(ctx context.Context, orderID int64) ([]Location, error)
	ListTimeline(ctx context.Context, orderID int64) ([]timeline.Entry, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, client_id, vehicle_id, category, status, priority, description, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ClientID, &o.VehicleID, &o.Category, &o.Status, &o.Priority, &o.Description, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodeOrderNotFound, "order not found")
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *Repository) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	now := time.Now()
	return scanOrder(r.pool.QueryRow(ctx,
		`INSERT INTO orders (client_id, vehicle_id, category, status, priority, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING `+orderColumns,
		input.ClientID, input.VehicleID, input.Category, StatusNew, input.Priority, input.Description, now))
}

func (r *Repository) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM orders WHERE 1=1`
	args := []any{}
	n := 0
	appendCond := func(cond string, v any) {
		n++
		args = append(args, v)
		query += cond
		countQuery += cond
	}
	if req.ClientID != 0 {
		appendCond(` AND client_id = $`+itoa(n+1), req.ClientID)
	}
	if req.Status != nil {
		appendCond(` AND status = $`+itoa(n+1), *req.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + itoa(n+1) + ` OFFSET $` + itoa(n+2)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (r *Repository) SetStatus(ctx context.Context, id int64, from, to Status, actorID *int64, reason string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			to, id, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStatusConflict
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: id,
			Event:   "status_changed",
			ActorID: actorID,
			Details: map[string]any{"from": from, "to": to, "reason": reason},
		})
	})
}

func (r *Repository) InsertLocation(ctx context.Context, orderID int64, lat, lng float64, actorID *int64) (*Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx,
		`INSERT INTO order_locations (order_id, latitude, longitude, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING id, order_id, latitude, longitude, actor_id, created_at`,
		orderID, lat, lng, actorID).
		Scan(&loc.ID, &loc.OrderID, &loc.Latitude, &loc.Longitude, &loc.ActorID, &loc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *Repository) ListLocations(ctx context.Context, orderID int64) ([]Location, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, latitude, longitude, actor_id, created_at FROM order_locations WHERE order_id = $1 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.OrderID, &loc.Latitude, &loc.Longitude, &loc.ActorID, &loc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (r *Repository) ListTimeline(ctx context.Context, orderID int64) ([]timeline.Entry, error) {
	return timeline.List(ctx, r.pool, orderID)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
