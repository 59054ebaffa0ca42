package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// newsletterRequest carries the editable letter fields
type newsletterRequest struct {
	Title         string `json:"title"`
	LetterBody    string `json:"letter_body"`
	CuratorNote   string `json:"curator_note"`
	PublishedDate string `json:"published_date"`
}

// listNewslettersHandler returns letters, optionally filtered by status
func (s *Server) listNewslettersHandler(w http.ResponseWriter, r *http.Request) {
	filter := domain.NewsletterFilter{
		Status: domain.NewsletterStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	letters, err := s.letters.List(r.Context(), filter)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusOK, letters)
}

// createNewsletterHandler stores a new draft letter
func (s *Server) createNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}

	n := &domain.Newsletter{
		Title:         req.Title,
		LetterBody:    req.LetterBody,
		CuratorNote:   req.CuratorNote,
		PublishedDate: req.PublishedDate,
	}
	if err := s.letters.Create(r.Context(), n); err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusCreated, n)
}

// getNewsletterHandler returns one letter
func (s *Server) getNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.letters.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusOK, n)
}

// updateNewsletterHandler modifies a letter's editable fields
func (s *Server) updateNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req newsletterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}

	n := &domain.Newsletter{
		ID:            id,
		Title:         req.Title,
		LetterBody:    req.LetterBody,
		CuratorNote:   req.CuratorNote,
		PublishedDate: req.PublishedDate,
	}
	if err := s.letters.Update(r.Context(), n); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, http.StatusOK, n, "newsletter updated")
}

// deleteNewsletterHandler removes a letter and detaches its items
func (s *Server) deleteNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.letters.Delete(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, http.StatusOK, nil, "newsletter deleted")
}

// scheduleNewsletterHandler sets a future dispatch time
func (s *Server) scheduleNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}
	if req.ScheduledAt.IsZero() {
		renderBadRequest(w, r, "scheduled_at is required")
		return
	}

	if err := s.letters.Schedule(r.Context(), id, req.ScheduledAt); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, http.StatusOK, nil, "newsletter scheduled")
}

// cancelScheduleHandler returns a scheduled letter to draft
func (s *Server) cancelScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.letters.CancelSchedule(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, http.StatusOK, nil, "schedule cancelled")
}

// sendNewsletterHandler dispatches a letter immediately
func (s *Server) sendNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := s.dispatcher.Send(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusOK, result)
}

// sendTestHandler delivers a rendered letter to one address without a state
// change, returning the HTML when no auto-email endpoint is configured
func (s *Server) sendTestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}
	if req.Email == "" {
		renderBadRequest(w, r, "email is required")
		return
	}

	html, delivered, err := s.dispatcher.SendTest(r.Context(), id, req.Email)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if delivered {
		renderMessage(w, r, http.StatusOK, nil, "test email sent")
		return
	}
	renderMessage(w, r, http.StatusOK, map[string]string{"html": html}, "auto email not configured, returning preview")
}

// previewNewsletterHandler returns the rendered HTML email
func (s *Server) previewNewsletterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	html, err := s.dispatcher.Preview(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// newsletterStatsHandler returns per-status letter counts
func (s *Server) newsletterStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.letters.Stats(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusOK, stats)
}
