package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.HandleSignup)
	r.Post("/users/{userID}/buy", h.HandleBuy)
	r.Post("/users/{userID}/sell", h.HandleSell)
	r.Get("/users/{userID}/portfolio", h.HandleGetPortfolio)
}
