package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	retention time.Duration
	deleted   int64
	calls     int
}

func (s *stubLedger) CleanupEventLedger(ctx context.Context, retention time.Duration) (int64, error) {
	s.calls++
	s.retention = retention
	return s.deleted, nil
}

func TestHandleLedgerCleanup(t *testing.T) {
	ledger := &stubLedger{deleted: 42}
	cleaner := NewLedgerCleaner(ledger, 30*24*time.Hour, slog.Default())

	task, err := NewLedgerCleanupTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, cleaner.HandleLedgerCleanup(context.Background(), task))
	require.Equal(t, 1, ledger.calls)
	require.Equal(t, 30*24*time.Hour, ledger.retention)
}

func TestHandleLedgerCleanupMalformedPayload(t *testing.T) {
	cleaner := NewLedgerCleaner(&stubLedger{}, time.Hour, slog.Default())
	err := cleaner.HandleLedgerCleanup(context.Background(), asynq.NewTask(TaskLedgerCleanup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotificationTaskPayloads(t *testing.T) {
	task, err := NewPaymentCompletedTask(7, 12)
	require.NoError(t, err)
	require.Equal(t, TaskPaymentCompleted, task.Type())

	var payload NotificationPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.EqualValues(t, 7, payload.OrderID)
	require.EqualValues(t, 12, payload.PaymentID)

	task, err = NewGenerateReceiptTask(12)
	require.NoError(t, err)
	var receipt ReceiptPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &receipt))
	require.EqualValues(t, 12, receipt.PaymentID)
}

func TestNotificationsDispatchWithoutStore(t *testing.T) {
	n := NewNotifications(nil, slog.Default())
	task, err := NewOrderClosedTask(7)
	require.NoError(t, err)
	require.NoError(t, n.HandleOrderClosed(context.Background(), task))
}
