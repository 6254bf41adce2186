package towing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/platform/httpx"
	"github.com/roadline/roadline/internal/shared"
)

// QuoteRequest carries a pickup and drop-off pair.
type QuoteRequest struct {
	FromLat float64 `json:"from_lat" validate:"gte=-90,lte=90"`
	FromLng float64 `json:"from_lng" validate:"gte=-180,lte=180"`
	ToLat   float64 `json:"to_lat" validate:"gte=-90,lte=90"`
	ToLng   float64 `json:"to_lng" validate:"gte=-180,lte=180"`
}

// AssignRequest dispatches a partner.
type AssignRequest struct {
	PartnerID int64 `json:"partner_id" validate:"required,gt=0"`
}

// StatusRequest moves the tow along its chain.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
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
	r.Post("/orders/{id}/tow/quote", h.Quote)
	r.Get("/orders/{id}/tow", h.Get)
	r.Post("/orders/{id}/tow/assign", h.Assign)
	r.Post("/orders/{id}/tow/status", h.UpdateStatus)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	tow, err := h.service.QuoteForOrder(r.Context(), id,
		LatLng{Lat: req.FromLat, Lng: req.FromLng}, LatLng{Lat: req.ToLat, Lng: req.ToLng}, actor)
	if err != nil {
		h.logger.Error("tow quote", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tow)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tow, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tow)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req AssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	tow, err := h.service.Assign(r.Context(), id, req.PartnerID, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tow)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, err.Error()))
		return
	}
	tow, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tow)
}
