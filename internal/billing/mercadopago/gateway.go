// Package mercadopago adapts the Mercado Pago SDK to the billing gateway
// interface.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"

	"github.com/roadline/roadline/internal/billing"
)

// ErrMissingAccessToken is returned when the provider token is not configured.
var ErrMissingAccessToken = errors.New("missing payment provider access token")

// Gateway implements billing.Gateway on top of the Mercado Pago payments API.
type Gateway struct {
	client payment.Client
	logger *slog.Logger
}

// New builds a gateway from the provider access token.
func New(accessToken string, logger *slog.Logger) (*Gateway, error) {
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &Gateway{client: payment.NewClient(cfg), logger: logger}, nil
}

func (g *Gateway) Name() string { return "mercadopago" }

func (g *Gateway) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutResult, error) {
	resp, err := g.client.Create(ctx, payment.Request{
		TransactionAmount: req.Amount,
		Description:       req.Description,
		ExternalReference: fmt.Sprintf("order-%d-%s", req.OrderID, req.Purpose),
	})
	if err != nil {
		g.logger.Error("provider checkout create", slog.Int64("order_id", req.OrderID), slog.Any("error", err))
		return nil, err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	g.logger.Info("provider checkout created",
		slog.Int64("order_id", req.OrderID),
		slog.Int("provider_ref", resp.ID),
		slog.String("status", resp.Status))

	return &billing.CheckoutResult{
		ProviderRef: fmt.Sprintf("%d", resp.ID),
		Status:      resp.Status,
		Raw:         raw,
	}, nil
}
