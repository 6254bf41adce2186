package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Enqueuer submits notification and receipt tasks from the domain services.
// Enqueueing is fire-and-forget: a failed enqueue is logged, never surfaced,
// so side-effect hiccups cannot roll back committed financial state.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewEnqueuer constructs an Enqueuer over the shared Redis connection.
func NewEnqueuer(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpts), logger: logger}
}

// Close releases client resources.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// PaymentCompleted queues the payment-completed notification.
func (e *Enqueuer) PaymentCompleted(ctx context.Context, orderID, paymentID int64) {
	task, err := NewPaymentCompletedTask(orderID, paymentID)
	e.submit(ctx, task, err, TaskPaymentCompleted)
}

// ReceiptRequested queues receipt generation for a completed payment.
func (e *Enqueuer) ReceiptRequested(ctx context.Context, paymentID int64) {
	task, err := NewGenerateReceiptTask(paymentID)
	e.submit(ctx, task, err, TaskGenerateReceipt)
}

// EstimateLocked queues the estimate-approved notification.
func (e *Enqueuer) EstimateLocked(ctx context.Context, orderID, estimateID int64) {
	task, err := NewEstimateLockedTask(orderID, estimateID)
	e.submit(ctx, task, err, TaskEstimateLocked)
}

// OrderClosed queues the order-closed notification.
func (e *Enqueuer) OrderClosed(ctx context.Context, orderID int64) {
	task, err := NewOrderClosedTask(orderID)
	e.submit(ctx, task, err, TaskOrderClosed)
}

func (e *Enqueuer) submit(ctx context.Context, task *asynq.Task, err error, taskType string) {
	if err != nil {
		e.logger.Error("build task", slog.String("type", taskType), slog.Any("error", err))
		return
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		e.logger.Error("enqueue task", slog.String("type", taskType), slog.Any("error", err))
	}
}
