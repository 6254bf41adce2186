package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// LedgerCleaner trims handled webhook ledger rows. Retention must stay beyond
// the provider's redelivery window or deduplication breaks.
type LedgerCleaner struct {
	billing   LedgerPort
	retention time.Duration
	logger    *slog.Logger
}

// LedgerPort is the slice of the billing service the cleanup job needs.
type LedgerPort interface {
	CleanupEventLedger(ctx context.Context, retention time.Duration) (int64, error)
}

// NewLedgerCleaner constructs the cleanup handler.
func NewLedgerCleaner(billing LedgerPort, retention time.Duration, logger *slog.Logger) *LedgerCleaner {
	return &LedgerCleaner{billing: billing, retention: retention, logger: logger}
}

// HandleLedgerCleanup processes TaskLedgerCleanup tasks.
func (c *LedgerCleaner) HandleLedgerCleanup(ctx context.Context, t *asynq.Task) error {
	var payload LedgerCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	deleted, err := c.billing.CleanupEventLedger(ctx, c.retention)
	if err != nil {
		return err
	}
	c.logger.Info("webhook ledger trimmed",
		slog.Int64("deleted", deleted),
		slog.String("retention", c.retention.String()))
	return nil
}
