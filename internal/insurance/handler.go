package insurance

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/platform/httpx"
	"github.com/roadline/roadline/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/insurance/generate", h.Generate)
	r.Get("/orders/{id}/insurance", h.List)
	r.Post("/orders/{id}/insurance/{offerID}/accept", h.Accept)
	r.Post("/orders/{id}/insurance/{offerID}/decline", h.Decline)
}

func offerID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "offerID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewError(shared.CodeValidation, "offer id must be a positive integer")
	}
	return id, nil
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offers, err := h.service.Generate(r.Context(), id, actor)
	if err != nil {
		h.logger.Error("generate offers", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offers)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offers, err := h.service.List(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offers)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	oid, err := offerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offer, err := h.service.Accept(r.Context(), id, oid, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := orders.OrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	oid, err := offerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offer, err := h.service.Decline(r.Context(), id, oid, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}
