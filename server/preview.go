package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// previewClient is shared across preview requests, the short timeout keeps a
// slow target site from pinning the handler
var previewClient = &http.Client{Timeout: 10 * time.Second}

// linkPreviewHandler fetches an arbitrary article URL and extracts its
// OpenGraph metadata, falling back to plain title and description tags
func (s *Server) linkPreviewHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}

	target, err := url.Parse(req.URL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		renderBadRequest(w, r, "valid http(s) url is required")
		return
	}

	preview, err := fetchLinkPreview(r, target.String())
	if err != nil {
		renderError(w, r, domain.NewValidationError("failed to load url: %v", err))
		return
	}
	renderSuccess(w, r, http.StatusOK, preview)
}

// fetchLinkPreview retrieves the page and pulls metadata out of its head
func fetchLinkPreview(r *http.Request, target string) (*domain.LinkPreview, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; MorningLetterBot/1.0)")

	resp, err := previewClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	preview := &domain.LinkPreview{
		URL:         target,
		Title:       metaContent(doc, "og:title"),
		Description: metaContent(doc, "og:description"),
		Image:       metaContent(doc, "og:image"),
		SiteName:    metaContent(doc, "og:site_name"),
	}
	if preview.Title == "" {
		preview.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if preview.Description == "" {
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			preview.Description = strings.TrimSpace(desc)
		}
	}
	return preview, nil
}

// metaContent reads one OpenGraph property from the document head
func metaContent(doc *goquery.Document, property string) string {
	if content, ok := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
