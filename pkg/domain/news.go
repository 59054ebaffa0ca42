package domain

import "time"

// NewsItem represents a single ingested news entry. SourceURL is unique after
// normalization (query string stripped) and serves as the dedup key.
type NewsItem struct {
	ID              int64     `json:"id"`
	SourceURL       string    `json:"source_url"`
	SourceName      string    `json:"source_name"`
	Title           string    `json:"title"`
	OriginalSummary string    `json:"original_summary,omitempty"`
	AISummary       string    `json:"ai_summary,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	Category        string    `json:"category"`
	PublishedAt     time.Time `json:"published_at"`
	NewsletterID    *int64    `json:"newsletter_id,omitempty"`
	IsSelected      bool      `json:"is_selected"`
	DisplayOrder    int       `json:"display_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewsFilter represents filtering criteria for news listing
type NewsFilter struct {
	Category     string
	NewsletterID *int64
	SelectedOnly bool
	Limit        int
	Offset       int
}

// CategoryError records a per-category ingestion failure
type CategoryError struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}

// FetchResult aggregates the outcome of one ingestion run across all categories
type FetchResult struct {
	TotalFetched int             `json:"total_fetched"`
	Errors       []CategoryError `json:"errors"`
}

// LinkPreview holds metadata extracted from an arbitrary article URL
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}
