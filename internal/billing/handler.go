package billing

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/platform/httpx"
	"github.com/roadline/roadline/internal/shared"
)

// InvoiceRequest creates one payment against an order.
type InvoiceRequest struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
	Purpose  string  `json:"purpose" validate:"required"`
}

// ChainConfirmRequest submits an on-chain transaction hash for a payment.
type ChainConfirmRequest struct {
	TxHash string `json:"tx_hash" validate:"required,len=66,startswith=0x"`
}

// InvoiceResponse wraps a payment with the replay marker.
type InvoiceResponse struct {
	Payment *Payment `json:"payment"`
	Reused  bool     `json:"reused"`
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/payments", h.CreateInvoice)
	r.Get("/orders/{id}/payments", h.ListByOrder)
	r.Get("/payments/{paymentID}", h.Get)
	r.Post("/payments/{paymentID}/chain-confirm", h.ChainConfirm)
}

// MountWebhook registers the provider callback. It is mounted separately so
// the router can rate limit it without touching the authenticated API.
func (h *Handler) MountWebhook(r chi.Router) {
	r.Post("/webhooks/payments", h.Webhook)
}

func paymentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewError(shared.CodeValidation, "payment id must be a positive integer")
	}
	return id, nil
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req InvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	payment, reused, err := h.service.CreateInvoice(r.Context(), InvoiceInput{
		OrderID:  id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Purpose:  Purpose(req.Purpose),
	}, actor)
	if err != nil {
		h.logger.Error("create invoice", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	httpx.JSON(w, status, InvoiceResponse{Payment: payment, Reused: reused})
}

func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.ListByOrder(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := paymentID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) ChainConfirm(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := paymentID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ChainConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	payment, err := h.service.ConfirmChainPayment(r.Context(), id, req.TxHash, actor)
	if err != nil {
		h.logger.Error("chain confirm", slog.Int64("payment_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

// webhookPayload is the provider's notification shape. The event id arrives
// as a number or a string depending on the notification topic.
type webhookPayload struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
	OrderID int64 `json:"order_id"`
}

// Webhook always answers 200 to processed or duplicate deliveries; the
// provider retries anything else.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "unreadable request body"))
		return
	}
	var payload webhookPayload
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&payload); err != nil || payload.ID.String() == "" {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed webhook payload"))
		return
	}

	err = h.service.HandleProviderEvent(r.Context(), ProviderEvent{
		ID:          payload.ID.String(),
		Type:        payload.Type,
		Action:      payload.Action,
		ProviderRef: payload.Data.ID,
		OrderID:     payload.OrderID,
		Raw:         raw,
	})
	if err != nil {
		h.logger.Error("webhook", slog.String("event_id", payload.ID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
