package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers snapshot and returns routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Post("/preview", h.HandlePreview)
		r.Post("/", h.HandleStore)
	})
	r.Post("/returns", h.HandleComputeReturns)

	r.Get("/users/{userID}/snapshots", h.HandleListSnapshots)
	r.Get("/users/{userID}/returns", h.HandleUserReturns)
}
