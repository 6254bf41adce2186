package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadline/roadline/report"
)

// ReceiptRenderer converts receipt HTML into a PDF document.
type ReceiptRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Receipts renders receipt records for completed payments. Generation is
// content-addressed by payment id, so a redelivered task is a no-op.
type Receipts struct {
	pool       *pgxpool.Pool
	renderer   ReceiptRenderer
	storageDir string
	logger     *slog.Logger
}

// NewReceipts constructs the receipt handler. renderer may be nil, in which
// case only the receipt row is written and no PDF is produced.
func NewReceipts(pool *pgxpool.Pool, renderer ReceiptRenderer, storageDir string, logger *slog.Logger) *Receipts {
	return &Receipts{pool: pool, renderer: renderer, storageDir: storageDir, logger: logger}
}

// HandleGenerateReceipt processes TaskGenerateReceipt tasks.
func (r *Receipts) HandleGenerateReceipt(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var orderID int64
	var amount float64
	var currency, purpose string
	err := r.pool.QueryRow(ctx,
		`SELECT order_id, amount, currency, purpose FROM payments WHERE id = $1 AND status = 'COMPLETED'`,
		payload.PaymentID).Scan(&orderID, &amount, &currency, &purpose)
	if err != nil {
		// The payment may still be settling when the task lands; retry.
		return fmt.Errorf("receipt source payment %d: %w", payload.PaymentID, err)
	}

	number := fmt.Sprintf("RCPT-%06d", payload.PaymentID)
	generatedAt := time.Now().UTC()

	pdfPath := ""
	if r.renderer != nil {
		path, err := r.renderPDF(ctx, report.ReceiptDocument{
			Number:      number,
			OrderID:     orderID,
			PaymentID:   payload.PaymentID,
			Amount:      amount,
			Currency:    currency,
			Purpose:     purpose,
			GeneratedAt: generatedAt,
		})
		if err != nil {
			return fmt.Errorf("render receipt %s: %w", number, err)
		}
		pdfPath = path
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO receipts (payment_id, order_id, number, amount, currency, pdf_path, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (payment_id) DO NOTHING`,
		payload.PaymentID, orderID, number, amount, currency, pdfPath, generatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		r.logger.Info("receipt already generated", slog.Int64("payment_id", payload.PaymentID))
		return nil
	}
	r.logger.Info("receipt generated",
		slog.Int64("payment_id", payload.PaymentID), slog.String("number", number))
	return nil
}

func (r *Receipts) renderPDF(ctx context.Context, doc report.ReceiptDocument) (string, error) {
	html, err := report.ReceiptHTML(doc)
	if err != nil {
		return "", err
	}
	pdf, err := r.renderer.RenderHTML(ctx, html)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.storageDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.storageDir, doc.Number+".pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
