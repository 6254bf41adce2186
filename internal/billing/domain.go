package billing

import (
	"encoding/json"
	"time"

	"github.com/roadline/roadline/internal/orders"
)

// Purpose is what the payment settles. It decides how far the order moves
// when the payment completes.
type Purpose string

const (
	PurposeAdvance   Purpose = "ADVANCE"
	PurposeRepair    Purpose = "REPAIR"
	PurposeInsurance Purpose = "INSURANCE"
)

// ValidPurpose reports whether p is a known purpose.
func ValidPurpose(p Purpose) bool {
	switch p {
	case PurposeAdvance, PurposeRepair, PurposeInsurance:
		return true
	}
	return false
}

// purposeTargets maps a completed payment's purpose to the order status it
// drives toward. INSURANCE payments settle a policy, not the repair flow, so
// they have no entry and leave the order alone.
var purposeTargets = map[Purpose]orders.Status{
	PurposeAdvance: orders.StatusScheduled,
	PurposeRepair:  orders.StatusReady,
}

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCanceled  PaymentStatus = "CANCELED"
)

// Payment methods. A payment starts as a provider checkout and switches to
// chain when it settles through an on-chain transaction.
const (
	MethodCheckout = "checkout"
	MethodChain    = "chain"
)

// Payment is one invoice against an order. Fingerprint deduplicates
// financially-equivalent submissions inside the replay window.
type Payment struct {
	ID          int64         `json:"id"`
	OrderID     int64         `json:"order_id"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Purpose     Purpose       `json:"purpose"`
	Provider    string        `json:"provider"`
	Method      string        `json:"method"`
	Status      PaymentStatus `json:"status"`
	Fingerprint string        `json:"-"`
	ProviderRef *string       `json:"provider_ref,omitempty"`
	TxHash      *string       `json:"tx_hash,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// WebhookEvent is one row of the dedup ledger. The provider-assigned id is
// the primary key; inserting it is the at-most-once gate.
type WebhookEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Handled    bool            `json:"handled"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ProviderEvent is a parsed inbound webhook delivery.
type ProviderEvent struct {
	ID          string
	Type        string
	Action      string
	ProviderRef string
	OrderID     int64
	Raw         json.RawMessage
}

// InvoiceInput carries the attributes for invoice creation.
type InvoiceInput struct {
	OrderID  int64
	Amount   float64
	Currency string
	Purpose  Purpose
}
