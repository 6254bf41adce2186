package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notifications handles outbound notification tasks. Delivery is a log line
// for now; the SMTP/in-app transport plugs in behind dispatch. Handlers are
// repeat-safe: redelivering a task sends the same message again at worst.
type Notifications struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewNotifications constructs the notification handlers.
func NewNotifications(pool *pgxpool.Pool, logger *slog.Logger) *Notifications {
	return &Notifications{pool: pool, logger: logger}
}

// HandlePaymentCompleted processes TaskPaymentCompleted tasks.
func (n *Notifications) HandlePaymentCompleted(ctx context.Context, t *asynq.Task) error {
	return n.dispatch(ctx, t, "payment_completed")
}

// HandleEstimateLocked processes TaskEstimateLocked tasks.
func (n *Notifications) HandleEstimateLocked(ctx context.Context, t *asynq.Task) error {
	return n.dispatch(ctx, t, "estimate_locked")
}

// HandleOrderClosed processes TaskOrderClosed tasks.
func (n *Notifications) HandleOrderClosed(ctx context.Context, t *asynq.Task) error {
	return n.dispatch(ctx, t, "order_closed")
}

func (n *Notifications) dispatch(ctx context.Context, t *asynq.Task, kind string) error {
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	enabled, err := n.clientOptedIn(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if !enabled {
		n.logger.Info("notification suppressed by preference",
			slog.String("kind", kind), slog.Int64("order_id", payload.OrderID))
		return nil
	}

	n.logger.Info("notification dispatched",
		slog.String("kind", kind),
		slog.Int64("order_id", payload.OrderID),
		slog.Int64("payment_id", payload.PaymentID),
		slog.Int64("estimate_id", payload.EstimateID))
	return nil
}

// clientOptedIn consults the order owner's notification preference. Clients
// without a row are opted in.
func (n *Notifications) clientOptedIn(ctx context.Context, orderID int64) (bool, error) {
	if n.pool == nil {
		return true, nil
	}
	var enabled bool
	err := n.pool.QueryRow(ctx,
		`SELECT COALESCE(np.enabled, TRUE)
		 FROM orders o
		 LEFT JOIN notification_preferences np ON np.client_id = o.client_id
		 WHERE o.id = $1`, orderID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Order is gone; nothing to notify about.
			return false, nil
		}
		return false, err
	}
	return enabled, nil
}
