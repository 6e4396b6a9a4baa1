// Package handlers provides HTTP handlers for snapshots and returns.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// SnapshotRequest is the body of preview and store requests. An empty
// portfolio means "the user's current holdings".
type SnapshotRequest struct {
	UserID    string             `json:"user_id"`
	Portfolio map[string]float64 `json:"portfolio"`
}

// ReturnsRequest is the body of POST /returns
type ReturnsRequest struct {
	SnapshotOld snapshots.Snapshot `json:"snapshot_old"`
	SnapshotNew snapshots.Snapshot `json:"snapshot_new"`
	Portfolio   map[string]float64 `json:"portfolio"`
}

// ReturnsResponse wraps computed returns
type ReturnsResponse struct {
	Returns *snapshots.Returns `json:"returns"`
}

// HandlePreview captures a snapshot without storing it
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSnapshotRequest(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Preview(r.Context(), req.UserID, req.Portfolio)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// HandleStore captures and stores a snapshot
func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSnapshotRequest(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Store(r.Context(), req.UserID, req.Portfolio, snapshots.SourceAPI)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) decodeSnapshotRequest(w http.ResponseWriter, r *http.Request) (*SnapshotRequest, bool) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return nil, false
	}
	return &req, true
}

// HandleListSnapshots returns the stored snapshots of a user
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.List(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

// HandleComputeReturns computes returns between two request-provided
// snapshots, weighted by a {ticker: quantity} portfolio at current prices
func (h *Handler) HandleComputeReturns(w http.ResponseWriter, r *http.Request) {
	var req ReturnsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	returns, err := h.service.ComputeReturns(r.Context(), req.SnapshotOld.Prices, req.SnapshotNew.Prices, req.Portfolio)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ReturnsResponse{Returns: returns})
}

// HandleUserReturns computes returns between two stored snapshots of a user
func (h *Handler) HandleUserReturns(w http.ResponseWriter, r *http.Request) {
	from, ok := h.parseDateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := h.parseDateParam(w, r, "to")
	if !ok {
		return
	}

	returns, err := h.service.ReturnsBetween(r.Context(), chi.URLParam(r, "userID"), from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ReturnsResponse{Returns: returns})
}

func (h *Handler) parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		h.writeError(w, http.StatusBadRequest, name+" is required")
		return time.Time{}, false
	}
	date, err := snapshots.ParseDate(value)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return date, true
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

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, kind.HTTPStatus(), map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
