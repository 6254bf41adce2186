package estimates

import "time"

// PartLine is one priced part on an estimate.
type PartLine struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// LaborLine is one priced labor task on an estimate.
type LaborLine struct {
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
	Rate  float64 `json:"rate"`
	Total float64 `json:"total"`
}

// Estimate is the single costed quote attached to an order. Recomputation
// replaces it (upsert); it is never deleted once an order reaches a terminal
// state.
type Estimate struct {
	ID              int64       `json:"id"`
	OrderID         int64       `json:"order_id"`
	Profile         string      `json:"profile"`
	Parts           []PartLine  `json:"parts"`
	Labor           []LaborLine `json:"labor"`
	PartsSubtotal   float64     `json:"parts_subtotal"`
	LaborSubtotal   float64     `json:"labor_subtotal"`
	DiscountPercent float64     `json:"discount_percent"`
	DiscountAmount  float64     `json:"discount_amount"`
	Total           float64     `json:"total"`
	Currency        string      `json:"currency"`
	Summary         string      `json:"summary,omitempty"`
	Approved        bool        `json:"approved"`
	ApprovedAt      *time.Time  `json:"approved_at,omitempty"`
	RejectReason    string      `json:"reject_reason,omitempty"`
	ValidUntil      time.Time   `json:"valid_until"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Input drives one calculator run.
type Input struct {
	Profile         string
	Night           bool
	Urgent          bool
	SUV             bool
	DiscountPercent float64
	Summary         string
}

// Profile carries the pricing coefficients applied to template base prices.
type Profile struct {
	Code       string  `json:"code"`
	PartsCoeff float64 `json:"parts_coeff"`
	LaborCoeff float64 `json:"labor_coeff"`
}
