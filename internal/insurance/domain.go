package insurance

import (
	"time"

	"github.com/roadline/roadline/internal/orders"
)

// OfferStatus enumerates insurance offer states.
type OfferStatus string

const (
	StatusOffered  OfferStatus = "OFFERED"
	StatusAccepted OfferStatus = "ACCEPTED"
	StatusDeclined OfferStatus = "DECLINED"
)

// Offer is a priced insurance product proposed against one order. Code is
// unique per order, so regeneration never duplicates rows.
type Offer struct {
	ID          int64       `json:"id"`
	OrderID     int64       `json:"order_id"`
	Code        string      `json:"code"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Status      OfferStatus `json:"status"`
	AcceptedAt  *time.Time  `json:"accepted_at,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OfferContext is the order-derived input to the rule engine.
type OfferContext struct {
	Category         orders.Category
	Description      string
	VehicleAgeYears  int
	MileageKm        int
	RepeatIssueCount int
}

// OfferSpec is a rule engine output: one offer to propose.
type OfferSpec struct {
	Code        string
	Title       string
	Description string
	Price       float64
}
