package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReceiptHTML(t *testing.T) {
	html, err := ReceiptHTML(ReceiptDocument{
		Number:      "RCPT-000042",
		OrderID:     7,
		PaymentID:   42,
		Amount:      1530.5,
		Currency:    "UAH",
		Purpose:     "REPAIR",
		GeneratedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Contains(t, html, "RCPT-000042")
	require.Contains(t, html, "1530.50 UAH")
	require.Contains(t, html, "#7")
	require.Contains(t, html, "REPAIR")
}
