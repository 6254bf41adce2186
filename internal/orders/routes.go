package orders

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Post("/orders/{id}/status", h.Transition)
	r.Post("/orders/{id}/locations", h.AddLocation)
	r.Get("/orders/{id}/locations", h.ListLocations)
	r.Get("/orders/{id}/timeline", h.Timeline)
}
