package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskPaymentCompleted notifies the client that a payment settled.
	TaskPaymentCompleted = "notify:payment_completed"
	// TaskEstimateLocked notifies the client that their estimate was approved.
	TaskEstimateLocked = "notify:estimate_locked"
	// TaskOrderClosed notifies the client that their order closed.
	TaskOrderClosed = "notify:order_closed"
	// TaskGenerateReceipt renders a receipt document for a completed payment.
	TaskGenerateReceipt = "receipt:generate"
	// TaskLedgerCleanup trims handled webhook ledger rows past retention.
	TaskLedgerCleanup = "billing:ledger_cleanup"
)

// NotificationPayload identifies what happened and to which order. All
// notification tasks share it; optional ids are zero when absent.
type NotificationPayload struct {
	OrderID    int64 `json:"order_id"`
	PaymentID  int64 `json:"payment_id,omitempty"`
	EstimateID int64 `json:"estimate_id,omitempty"`
}

// ReceiptPayload identifies the payment to render a receipt for.
type ReceiptPayload struct {
	PaymentID int64 `json:"payment_id"`
}

// LedgerCleanupPayload carries scheduling metadata.
type LedgerCleanupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewPaymentCompletedTask constructs a payment-completed notification task.
func NewPaymentCompletedTask(orderID, paymentID int64) (*asynq.Task, error) {
	return newJSONTask(TaskPaymentCompleted, NotificationPayload{OrderID: orderID, PaymentID: paymentID})
}

// NewEstimateLockedTask constructs an estimate-locked notification task.
func NewEstimateLockedTask(orderID, estimateID int64) (*asynq.Task, error) {
	return newJSONTask(TaskEstimateLocked, NotificationPayload{OrderID: orderID, EstimateID: estimateID})
}

// NewOrderClosedTask constructs an order-closed notification task.
func NewOrderClosedTask(orderID int64) (*asynq.Task, error) {
	return newJSONTask(TaskOrderClosed, NotificationPayload{OrderID: orderID})
}

// NewGenerateReceiptTask constructs a receipt-generation task.
func NewGenerateReceiptTask(paymentID int64) (*asynq.Task, error) {
	return newJSONTask(TaskGenerateReceipt, ReceiptPayload{PaymentID: paymentID})
}

// NewLedgerCleanupTask constructs a ledger-cleanup task.
func NewLedgerCleanupTask(at time.Time) (*asynq.Task, error) {
	return newJSONTask(TaskLedgerCleanup, LedgerCleanupPayload{ScheduledFor: at})
}

func newJSONTask(taskType string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}
