package towing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadline/roadline/internal/platform/db"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/timeline"
)

// RepositoryPort defines data access for tow requests.
type RepositoryPort interface {
	GetByOrder(ctx context.Context, orderID int64) (*TowRequest, error)
	// UpsertQuote replaces the order's tow request with a fresh REQUESTED
	// quote and appends a timeline entry in one transaction.
	UpsertQuote(ctx context.Context, orderID int64, from, to LatLng, quote Quote) (*TowRequest, error)
	SetStatus(ctx context.Context, orderID int64, status Status, partnerID *int64, actorID *int64) (*TowRequest, error)
	GetPartner(ctx context.Context, id int64) (*Partner, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const towColumns = `id, order_id, from_lat, from_lng, to_lat, to_lng, distance_km, price, eta_minutes, status, partner_id, created_at, updated_at`

func scanTow(row pgx.Row) (*TowRequest, error) {
	var t TowRequest
	err := row.Scan(&t.ID, &t.OrderID, &t.FromLat, &t.FromLng, &t.ToLat, &t.ToLng,
		&t.DistanceKm, &t.Price, &t.EtaMinutes, &t.Status, &t.PartnerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodeOrderNotFound, "tow request not found")
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetByOrder(ctx context.Context, orderID int64) (*TowRequest, error) {
	return scanTow(r.pool.QueryRow(ctx, `SELECT `+towColumns+` FROM tow_requests WHERE order_id = $1`, orderID))
}

func (r *Repository) UpsertQuote(ctx context.Context, orderID int64, from, to LatLng, quote Quote) (*TowRequest, error) {
	var out *TowRequest
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO tow_requests (order_id, from_lat, from_lng, to_lat, to_lng, distance_km, price, eta_minutes, status, partner_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, NOW(), NOW())
			 ON CONFLICT (order_id) DO UPDATE SET
			   from_lat = EXCLUDED.from_lat,
			   from_lng = EXCLUDED.from_lng,
			   to_lat = EXCLUDED.to_lat,
			   to_lng = EXCLUDED.to_lng,
			   distance_km = EXCLUDED.distance_km,
			   price = EXCLUDED.price,
			   eta_minutes = EXCLUDED.eta_minutes,
			   status = EXCLUDED.status,
			   partner_id = NULL,
			   updated_at = NOW()
			 RETURNING `+towColumns,
			orderID, from.Lat, from.Lng, to.Lat, to.Lng, quote.DistanceKm, quote.Price, quote.EtaMinutes, StatusRequested)
		saved, err := scanTow(row)
		if err != nil {
			return err
		}
		out = saved
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: orderID,
			Event:   "tow_quoted",
			Details: map[string]any{"distance_km": quote.DistanceKm, "price": quote.Price, "eta_minutes": quote.EtaMinutes},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SetStatus(ctx context.Context, orderID int64, status Status, partnerID *int64, actorID *int64) (*TowRequest, error) {
	var out *TowRequest
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var row pgx.Row
		if partnerID != nil {
			row = tx.QueryRow(ctx,
				`UPDATE tow_requests SET status = $1, partner_id = $2, updated_at = NOW() WHERE order_id = $3 RETURNING `+towColumns,
				status, *partnerID, orderID)
		} else {
			row = tx.QueryRow(ctx,
				`UPDATE tow_requests SET status = $1, updated_at = NOW() WHERE order_id = $2 RETURNING `+towColumns,
				status, orderID)
		}
		saved, err := scanTow(row)
		if err != nil {
			return err
		}
		out = saved
		details := map[string]any{"status": status}
		if partnerID != nil {
			details["partner_id"] = *partnerID
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: orderID,
			Event:   "tow_status_changed",
			ActorID: actorID,
			Details: details,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) GetPartner(ctx context.Context, id int64) (*Partner, error) {
	var p Partner
	err := r.pool.QueryRow(ctx, `SELECT id, name, active FROM tow_partners WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodePartnerNotFound, "tow partner not found")
		}
		return nil, err
	}
	return &p, nil
}
