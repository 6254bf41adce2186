package estimates

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/platform/httpx"
	"github.com/roadline/roadline/internal/shared"
)

// CalculateRequest drives one estimate computation.
type CalculateRequest struct {
	Profile         string  `json:"profile" validate:"omitempty,max=32"`
	Night           bool    `json:"night"`
	Urgent          bool    `json:"urgent"`
	SUV             bool    `json:"suv"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	Summary         string  `json:"summary" validate:"max=2000"`
}

// RejectRequest records why the estimate was declined.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
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
	r.Post("/orders/{id}/estimate", h.Calculate)
	r.Get("/orders/{id}/estimate", h.Get)
	r.Post("/orders/{id}/estimate/approve", h.Approve)
	r.Post("/orders/{id}/estimate/reject", h.Reject)
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CalculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	est, err := h.service.Calculate(r.Context(), id, Input{
		Profile:         req.Profile,
		Night:           req.Night,
		Urgent:          req.Urgent,
		SUV:             req.SUV,
		DiscountPercent: req.DiscountPercent,
		Summary:         req.Summary,
	}, actor)
	if err != nil {
		h.logger.Error("calculate estimate", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.Approve(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	est, err := h.service.Reject(r.Context(), id, req.Reason, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}
