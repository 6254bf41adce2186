package insurance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadline/roadline/internal/platform/db"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/timeline"
)

// RepositoryPort defines data access for insurance offers.
type RepositoryPort interface {
	OfferContext(ctx context.Context, orderID int64, now time.Time) (*OfferContext, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Offer, error)
	Get(ctx context.Context, offerID int64) (*Offer, error)
	// InsertMissing creates only the specs whose code is absent for the
	// order, so regeneration never duplicates rows.
	InsertMissing(ctx context.Context, orderID int64, specs []OfferSpec, expiresAt time.Time) (int, error)
	// Accept marks the offer ACCEPTED and declines every sibling OFFERED
	// offer of the same order in one transaction.
	Accept(ctx context.Context, offerID int64, at time.Time, actorID *int64) (*Offer, error)
	Decline(ctx context.Context, offerID int64, actorID *int64) (*Offer, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const offerColumns = `id, order_id, code, title, description, price, status, accepted_at, expires_at, created_at, updated_at`

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.OrderID, &o.Code, &o.Title, &o.Description, &o.Price,
		&o.Status, &o.AcceptedAt, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodeOfferNotFound, "insurance offer not found")
		}
		return nil, err
	}
	return &o, nil
}

// OfferContext derives rule engine input from the order, its vehicle and the
// vehicle's service history.
func (r *Repository) OfferContext(ctx context.Context, orderID int64, now time.Time) (*OfferContext, error) {
	var octx OfferContext
	var vehicleID int64
	var year int
	err := r.pool.QueryRow(ctx,
		`SELECT o.category, o.description, o.vehicle_id, v.year, v.mileage_km
		 FROM orders o JOIN vehicles v ON v.id = o.vehicle_id
		 WHERE o.id = $1`, orderID).
		Scan(&octx.Category, &octx.Description, &vehicleID, &year, &octx.MileageKm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodeOrderNotFound, "order not found")
		}
		return nil, err
	}
	octx.VehicleAgeYears = now.Year() - year
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE vehicle_id = $1 AND category = $2 AND id <> $3`,
		vehicleID, octx.Category, orderID).
		Scan(&octx.RepeatIssueCount)
	if err != nil {
		return nil, err
	}
	return &octx, nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]Offer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+offerColumns+` FROM insurance_offers WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func (r *Repository) Get(ctx context.Context, offerID int64) (*Offer, error) {
	return scanOffer(r.pool.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM insurance_offers WHERE id = $1`, offerID))
}

func (r *Repository) InsertMissing(ctx context.Context, orderID int64, specs []OfferSpec, expiresAt time.Time) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		inserted = 0
		codes := make([]string, 0, len(specs))
		for _, spec := range specs {
			// The unique (order_id, code) constraint is the real gate;
			// DO NOTHING makes concurrent regeneration safe.
			tag, err := tx.Exec(ctx,
				`INSERT INTO insurance_offers (order_id, code, title, description, price, status, expires_at, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
				 ON CONFLICT (order_id, code) DO NOTHING`,
				orderID, spec.Code, spec.Title, spec.Description, spec.Price, StatusOffered, expiresAt)
			if err != nil {
				return err
			}
			if tag.RowsAffected() > 0 {
				inserted++
				codes = append(codes, spec.Code)
			}
		}
		if inserted == 0 {
			return nil
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: orderID,
			Event:   "insurance_offers_generated",
			Details: map[string]any{"codes": codes},
		})
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *Repository) Accept(ctx context.Context, offerID int64, at time.Time, actorID *int64) (*Offer, error) {
	var out *Offer
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// The status guard plus the one-ACCEPTED-per-order partial unique
		// index make concurrent accepts settle on exactly one winner.
		row := tx.QueryRow(ctx,
			`UPDATE insurance_offers SET status = $1, accepted_at = $2, updated_at = NOW()
			 WHERE id = $3 AND status = $4 RETURNING `+offerColumns,
			StatusAccepted, at, offerID, StatusOffered)
		saved, err := scanOffer(row)
		if err != nil {
			if shared.CodeOf(err) != shared.CodeOfferNotFound {
				return err
			}
			current, getErr := scanOffer(tx.QueryRow(ctx,
				`SELECT `+offerColumns+` FROM insurance_offers WHERE id = $1`, offerID))
			if getErr != nil {
				return getErr
			}
			if current.Status == StatusAccepted {
				out = current
				return nil
			}
			return shared.NewError(shared.CodeOfferAlreadyAccepted, "a sibling offer was already accepted")
		}
		out = saved
		if _, err := tx.Exec(ctx,
			`UPDATE insurance_offers SET status = $1, updated_at = NOW()
			 WHERE order_id = $2 AND id <> $3 AND status = $4`,
			StatusDeclined, saved.OrderID, offerID, StatusOffered); err != nil {
			return err
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: saved.OrderID,
			Event:   "insurance_offer_accepted",
			ActorID: actorID,
			Details: map[string]any{"code": saved.Code, "price": saved.Price},
		})
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the race against a concurrent accept on a sibling.
			return nil, shared.NewError(shared.CodeOfferAlreadyAccepted, "a sibling offer was already accepted")
		}
		return nil, err
	}
	return out, nil
}

func (r *Repository) Decline(ctx context.Context, offerID int64, actorID *int64) (*Offer, error) {
	var out *Offer
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE insurance_offers SET status = $1, updated_at = NOW()
			 WHERE id = $2 RETURNING `+offerColumns,
			StatusDeclined, offerID)
		saved, err := scanOffer(row)
		if err != nil {
			return err
		}
		out = saved
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: saved.OrderID,
			Event:   "insurance_offer_declined",
			ActorID: actorID,
			Details: map[string]any{"code": saved.Code},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
