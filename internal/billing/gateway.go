package billing

import (
	"context"
	"encoding/json"
)

// CheckoutRequest is what the provider needs to open a checkout session.
type CheckoutRequest struct {
	OrderID     int64
	Amount      float64
	Currency    string
	Purpose     Purpose
	Description string
}

// CheckoutResult is the provider's reference for the created session.
type CheckoutResult struct {
	ProviderRef string
	Status      string
	Raw         json.RawMessage
}

// Gateway creates checkout sessions at the external payment provider.
type Gateway interface {
	// Name identifies the provider and is recorded on every payment it opens.
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}
