package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// fetchNewsHandler triggers feed ingestion, optionally for one category
func (s *Server) fetchNewsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Category string `json:"category"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderBadRequest(w, r, "invalid request body")
			return
		}
	}

	if req.Category != "" {
		result, err := s.fetcher.FetchCategory(ctx, req.Category)
		if err != nil {
			renderError(w, r, err)
			return
		}
		renderSuccess(w, r, http.StatusOK, result)
		return
	}

	renderSuccess(w, r, http.StatusOK, s.fetcher.FetchAll(ctx))
}

// listNewsHandler returns news items with filters and pagination
func (s *Server) listNewsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := domain.NewsFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("newsletter_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			renderBadRequest(w, r, "invalid newsletter_id")
			return
		}
		filter.NewsletterID = &id
	}
	if r.URL.Query().Get("selected") == "true" {
		filter.SelectedOnly = true
	}

	items, err := s.news.ListNews(ctx, filter)
	if err != nil {
		renderError(w, r, err)
		return
	}
	total, err := s.news.CountNews(ctx, filter)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderSuccess(w, r, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// deleteNewsHandler removes a news item
func (s *Server) deleteNewsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.news.DeleteNews(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, http.StatusOK, nil, "news item deleted")
}

// selectNewsHandler assigns or clears a news item's newsletter membership
func (s *Server) selectNewsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		NewsletterID int64 `json:"newsletter_id"`
		DisplayOrder int   `json:"display_order"`
		Deselect     bool  `json:"deselect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}

	if req.Deselect {
		if err := s.letters.DeselectItem(r.Context(), id); err != nil {
			renderError(w, r, err)
			return
		}
		renderMessage(w, r, http.StatusOK, nil, "news item deselected")
		return
	}

	if req.NewsletterID == 0 {
		renderBadRequest(w, r, "newsletter_id is required")
		return
	}
	if err := s.letters.SelectItem(r.Context(), req.NewsletterID, id, req.DisplayOrder); err != nil {
		renderError(w, r, err)
		return
	}
	renderMessage(w, r, http.StatusOK, nil, "news item selected")
}

// summarizeNewsHandler generates and stores an AI summary for one item
func (s *Server) summarizeNewsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := s.news.GetNews(ctx, id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	summary := s.generator.Summarize(ctx, item.Title, item.OriginalSummary)
	if err := s.news.UpdateAISummary(ctx, id, summary); err != nil {
		renderError(w, r, err)
		return
	}

	renderSuccess(w, r, http.StatusOK, map[string]string{"ai_summary": summary})
}

// generateLetterHandler drafts letter content through the AI provider chain
func (s *Server) generateLetterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Titles      []string `json:"titles"`
		Instruction string   `json:"instruction"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderBadRequest(w, r, "invalid request body")
			return
		}
	}

	draft, err := s.generator.GenerateLetter(r.Context(), req.Titles, req.Instruction)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusOK, draft)
}

// pathID parses the {id} path segment, rendering the validation failure itself
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderBadRequest(w, r, "invalid id")
		return 0, false
	}
	return id, true
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
