// Package handlers provides HTTP handlers for accounts and trading.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles account HTTP requests
type Handler struct {
	service *portfolio.AccountService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.AccountService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// SignupRequest is the body of POST /users
type SignupRequest struct {
	Username string `json:"username"`
}

// TradeRequest is the body of buy and sell requests
type TradeRequest struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
}

// HandleSignup creates a user with the starting cash balance
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.service.Signup(r.Context(), req.Username)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, user)
}

// HandleBuy buys shares for the user in the path
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, portfolio.SideBuy)
}

// HandleSell sells shares for the user in the path
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, portfolio.SideSell)
}

func (h *Handler) handleTrade(w http.ResponseWriter, r *http.Request, side portfolio.TradeSide) {
	userID := chi.URLParam(r, "userID")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		trade *portfolio.Trade
		err   error
	)
	switch side {
	case portfolio.SideBuy:
		trade, err = h.service.Buy(r.Context(), userID, req.Ticker, req.Quantity)
	default:
		trade, err = h.service.Sell(r.Context(), userID, req.Ticker, req.Quantity)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, trade)
}

// HandleGetPortfolio returns the user's cash and priced holdings
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps err to its kind and status
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := kind.HTTPStatus()

	if status >= http.StatusInternalServerError && !errors.Is(err, domain.ErrPriceUnavailable) {
		h.log.Error().Err(err).Msg("Request failed")
	} else {
		h.log.Debug().Err(err).Str("kind", string(kind)).Msg("Request rejected")
	}

	h.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
