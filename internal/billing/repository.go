package billing

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

// RepositoryPort defines data access for payments and the webhook ledger.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Payment, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Payment, error)
	// FindReusable returns the newest PENDING payment with the fingerprint
	// created at or after since, or nil when there is none.
	FindReusable(ctx context.Context, fingerprint string, since time.Time) (*Payment, error)
	Insert(ctx context.Context, p Payment) (*Payment, error)
	FindPendingByProviderRef(ctx context.Context, ref string) (*Payment, error)
	// FindByProviderRef matches regardless of status, for redeliveries of
	// an event whose first delivery died after the status flip.
	FindByProviderRef(ctx context.Context, ref string) (*Payment, error)
	FindPendingByOrder(ctx context.Context, orderID int64) (*Payment, error)
	// MarkCompleted flips a PENDING payment to COMPLETED and appends the
	// timeline entry in one transaction. Returns false without error when
	// the payment is already COMPLETED.
	MarkCompleted(ctx context.Context, paymentID int64, at time.Time, txHash *string) (bool, error)
	// MarkFinal flips a PENDING payment to FAILED or CANCELED. Returns
	// false without error when the payment already carries that status.
	MarkFinal(ctx context.Context, paymentID int64, status PaymentStatus) (bool, error)
	// InsertEvent writes a webhook ledger row. Returns false when the
	// provider event id is already present.
	InsertEvent(ctx context.Context, ev WebhookEvent) (bool, error)
	IsEventHandled(ctx context.Context, id string) (bool, error)
	MarkEventHandled(ctx context.Context, id string) error
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, order_id, amount, currency, purpose, provider, method, status, fingerprint, provider_ref, tx_hash, completed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Currency, &p.Purpose, &p.Provider, &p.Method,
		&p.Status, &p.Fingerprint, &p.ProviderRef, &p.TxHash, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.CodePaymentNotFound, "payment not found")
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *Repository) FindReusable(ctx context.Context, fingerprint string, since time.Time) (*Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE fingerprint = $1 AND status = $2 AND created_at >= $3
		 ORDER BY created_at DESC LIMIT 1`,
		fingerprint, PaymentPending, since))
	if err != nil {
		if shared.CodeOf(err) == shared.CodePaymentNotFound {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) Insert(ctx context.Context, p Payment) (*Payment, error) {
	var out *Payment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO payments (order_id, amount, currency, purpose, provider, method, status, fingerprint, provider_ref, tx_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, NOW(), NOW())
			 RETURNING `+paymentColumns,
			p.OrderID, p.Amount, p.Currency, p.Purpose, p.Provider, p.Method, PaymentPending, p.Fingerprint, p.ProviderRef)
		saved, err := scanPayment(row)
		if err != nil {
			return err
		}
		out = saved
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: p.OrderID,
			Event:   "invoice_created",
			Details: map[string]any{"payment_id": saved.ID, "amount": saved.Amount, "currency": saved.Currency, "purpose": saved.Purpose},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) FindPendingByProviderRef(ctx context.Context, ref string) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE provider_ref = $1 AND status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		ref, PaymentPending))
}

func (r *Repository) FindByProviderRef(ctx context.Context, ref string) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE provider_ref = $1
		 ORDER BY created_at DESC LIMIT 1`,
		ref))
}

func (r *Repository) FindPendingByOrder(ctx context.Context, orderID int64) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE order_id = $1 AND status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		orderID, PaymentPending))
}

func (r *Repository) MarkCompleted(ctx context.Context, paymentID int64, at time.Time, txHash *string) (bool, error) {
	changed := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		changed = false
		row := tx.QueryRow(ctx,
			`UPDATE payments
			 SET status = $1, completed_at = $2, tx_hash = COALESCE($3, tx_hash),
			     method = CASE WHEN $3::text IS NULL THEN method ELSE 'chain' END,
			     updated_at = NOW()
			 WHERE id = $4 AND status = $5
			 RETURNING `+paymentColumns,
			PaymentCompleted, at, txHash, paymentID, PaymentPending)
		saved, err := scanPayment(row)
		if err != nil {
			if shared.CodeOf(err) != shared.CodePaymentNotFound {
				return err
			}
			// Either the payment does not exist or it is no longer
			// PENDING; only the former is an error.
			current, getErr := scanPayment(tx.QueryRow(ctx,
				`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
			if getErr != nil {
				return getErr
			}
			if current.Status == PaymentCompleted {
				return nil
			}
			return shared.NewErrorf(shared.CodeInvalidState, "payment %d is %s", paymentID, current.Status)
		}
		changed = true
		details := map[string]any{"payment_id": saved.ID, "amount": saved.Amount, "purpose": saved.Purpose}
		if txHash != nil {
			details["tx_hash"] = *txHash
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: saved.OrderID,
			Event:   "payment_completed",
			Details: details,
		})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (r *Repository) MarkFinal(ctx context.Context, paymentID int64, status PaymentStatus) (bool, error) {
	changed := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		changed = false
		row := tx.QueryRow(ctx,
			`UPDATE payments SET status = $1, updated_at = NOW()
			 WHERE id = $2 AND status = $3
			 RETURNING `+paymentColumns,
			status, paymentID, PaymentPending)
		saved, err := scanPayment(row)
		if err != nil {
			if shared.CodeOf(err) != shared.CodePaymentNotFound {
				return err
			}
			current, getErr := scanPayment(tx.QueryRow(ctx,
				`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
			if getErr != nil {
				return getErr
			}
			if current.Status == status {
				return nil
			}
			return shared.NewErrorf(shared.CodeInvalidState, "payment %d is %s", paymentID, current.Status)
		}
		changed = true
		event := "payment_failed"
		if status == PaymentCanceled {
			event = "payment_canceled"
		}
		return timeline.Append(ctx, tx, timeline.Entry{
			OrderID: saved.OrderID,
			Event:   event,
			Details: map[string]any{"payment_id": saved.ID, "amount": saved.Amount, "purpose": saved.Purpose},
		})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (r *Repository) InsertEvent(ctx context.Context, ev WebhookEvent) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_events (id, type, payload, handled, received_at) VALUES ($1, $2, $3, FALSE, NOW())`,
		ev.ID, ev.Type, ev.Payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) IsEventHandled(ctx context.Context, id string) (bool, error) {
	var handled bool
	err := r.pool.QueryRow(ctx, `SELECT handled FROM webhook_events WHERE id = $1`, id).Scan(&handled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return handled, nil
}

func (r *Repository) MarkEventHandled(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE webhook_events SET handled = TRUE WHERE id = $1`, id)
	return err
}

// DeleteEventsBefore trims the dedup ledger. The cutoff must stay beyond the
// provider's redelivery window or dedup breaks.
func (r *Repository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhook_events WHERE received_at < $1 AND handled`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
