package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/letter4ceo/morning-letter/pkg/ai"
	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// envelope is the common API response shape
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderSuccess sends a success envelope
func renderSuccess(w http.ResponseWriter, r *http.Request, code int, data any) {
	renderJSON(w, r, code, envelope{Success: true, Data: data})
}

// renderMessage sends a success envelope with a human-readable message
func renderMessage(w http.ResponseWriter, r *http.Request, code int, data any, message string) {
	renderJSON(w, r, code, envelope{Success: true, Data: data, Message: message})
}

// renderError maps a domain error to status and code: validation errors to
// 400, unknown entities to 404, an exhausted AI provider chain to 503 with its
// message intact, everything else to an opaque 500
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		renderJSON(w, r, http.StatusBadRequest, envelope{Success: false, Error: err.Error(), Code: "VALIDATION_ERROR"})
	case domain.IsNotFound(err):
		renderJSON(w, r, http.StatusNotFound, envelope{Success: false, Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, ai.ErrUnavailable):
		renderJSON(w, r, http.StatusServiceUnavailable, envelope{Success: false, Error: err.Error(), Code: "AI_UNAVAILABLE"})
	default:
		log.Printf("[ERROR] internal error: %v", err)
		renderJSON(w, r, http.StatusInternalServerError,
			envelope{Success: false, Error: "internal server error", Code: "INTERNAL_ERROR"})
	}
}

// renderBadRequest sends a validation failure for malformed request input
func renderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	renderJSON(w, r, http.StatusBadRequest, envelope{Success: false, Error: msg, Code: "VALIDATION_ERROR"})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
		"jobs":    s.scheduler.JobNames(),
	}
	renderSuccess(w, r, http.StatusOK, status)
}

// schedulerTickHandler runs one scheduler pass immediately, same semantics as
// the periodic tick
func (s *Server) schedulerTickHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	s.scheduler.Tick(r.Context(), now)
	renderMessage(w, r, http.StatusOK, map[string]any{"ticked_at": now.UTC()}, "scheduler tick completed")
}
