package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"` // "healthy" or "unhealthy"
	Service   string            `json:"service"`
	Databases map[string]string `json:"databases"`
}

// handleHealth checks every database and reports 503 if any fails
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Service:   "papertrade",
		Databases: make(map[string]string),
	}

	for _, db := range s.container.Databases() {
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			response.Databases[db.Name()] = err.Error()
			response.Status = "unhealthy"
			continue
		}
		response.Databases[db.Name()] = "ok"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
