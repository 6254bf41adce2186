package estimates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadline/roadline/internal/platform/db"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/timeline"
)

// RepositoryPort defines data access for estimates.
type RepositoryPort interface {
	GetByOrder(ctx context.Context, orderID int64) (*Estimate, error)
	// Upsert replaces the order's single estimate and appends a timeline
	// entry in one transaction.
	Upsert(ctx context.Context, est Estimate) (*Estimate, error)
	SetApproval(ctx context.Context, orderID int64, approved bool, at *time.Time, reason string, actorID *int64) error
	ResolveProfile(ctx context.Context, code string) (*Profile, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const estimateColumns = `id, order_id, profile, parts, labor, parts_subtotal, labor_subtotal,
discount_percent, discount_amount, total, currency, summary, approved, approved_at,
reject_reason, valid_until, created_at, updated_at`

func scanEstimate(row pgx.Row) (*Estimate, error) {
	var e Estimate
	var parts, labor []byte
	err := row.Scan(&e.ID, &e.OrderID, &e.Profile, &parts, &labor, &e.PartsSubtotal, &e.LaborSubtotal,
		&e.DiscountPercent, &e.DiscountAmount, &e.Total, &e.Currency, &e.Summary, &e.Approved, &e.ApprovedAt,
		&e.RejectReason, &e.ValidUntil, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodeEstimateNotFound, "estimate not found")
		}
		return nil, err
	}
	if err := json.Unmarshal(parts, &e.Parts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(labor, &e.Labor); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) GetByOrder(ctx context.Context, orderID int64) (*Estimate, error) {
	return scanEstimate(r.pool.QueryRow(ctx,
		`SELECT `+estimateColumns+` FROM estimates WHERE order_id = $1`, orderID))
}

func (r *Repository) Upsert(ctx context.Context, est Estimate) (*Estimate, error) {
	parts, err := json.Marshal(est.Parts)
	if err != nil {
		return nil, err
	}
	labor, err := json.Marshal(est.Labor)
	if err != nil {
		return nil, err
	}

	var out *Estimate
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO estimates (order_id, profile, parts, labor, parts_subtotal, labor_subtotal,
			   discount_percent, discount_amount, total, currency, summary, approved, approved_at,
			   reject_reason, valid_until, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, NULL, '', $12, NOW(), NOW())
			 ON CONFLICT (order_id) DO UPDATE SET
			   profile = EXCLUDED.profile,
			   parts = EXCLUDED.parts,
			   labor = EXCLUDED.labor,
			   parts_subtotal = EXCLUDED.parts_subtotal,
			   labor_subtotal = EXCLUDED.labor_subtotal,
			   discount_percent = EXCLUDED.discount_percent,
			   discount_amount = EXCLUDED.discount_amount,
			   total = EXCLUDED.total,
			   currency = EXCLUDED.currency,
			   summary = EXCLUDED.summary,
			   approved = FALSE,
			   approved_at = NULL,
			   reject_reason = '',
			   valid_until = EXCLUDED.valid_until,
			   updated_at = NOW()
			 RETURNING `+estimateColumns,
			est.OrderID, est.Profile, parts, labor, est.PartsSubtotal, est.LaborSubtotal,
			est.DiscountPercent, est.DiscountAmount, est.Total, est.Currency, est.Summary, est.ValidUntil)
		saved, err := scanEstimate(row)
		if err != nil {
			return err
		}
		out = saved
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: est.OrderID,
			Event:   "estimate_calculated",
			Details: map[string]any{"total": saved.Total, "profile": saved.Profile},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SetApproval(ctx context.Context, orderID int64, approved bool, at *time.Time, reason string, actorID *int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE estimates SET approved = $1, approved_at = $2, reject_reason = $3, updated_at = NOW() WHERE order_id = $4`,
			approved, at, reason, orderID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NewError(shared.CodeEstimateNotFound, "estimate not found")
		}
		event := "estimate_rejected"
		details := map[string]any{"reason": reason}
		if approved {
			event = "estimate_approved"
			details = nil
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: orderID,
			Event:   event,
			ActorID: actorID,
			Details: details,
		})
	})
}

func (r *Repository) ResolveProfile(ctx context.Context, code string) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx,
		`SELECT code, parts_coeff, labor_coeff FROM pricing_profiles WHERE code = $1`, code).
		Scan(&p.Code, &p.PartsCoeff, &p.LaborCoeff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewErrorf(shared.CodeValidation, "unknown pricing profile %s", code)
		}
		return nil, err
	}
	return &p, nil
}
