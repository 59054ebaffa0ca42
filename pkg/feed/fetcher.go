package feed

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/letter4ceo/morning-letter/pkg/config"
	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// Store is the persistence surface the fetcher needs
type Store interface {
	NewsExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)
	CreateNews(ctx context.Context, item *domain.NewsItem) error
}

// Fetcher retrieves configured feeds and persists new items. Categories are
// processed sequentially, a failing category never aborts the others.
type Fetcher struct {
	client *http.Client
	cfg    config.IngestConfig
	store  Store
}

// NewFetcher creates a feed fetcher
func NewFetcher(cfg config.IngestConfig, store Store) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:   cfg,
		store: store,
	}
}

// FetchAll ingests every configured category and aggregates the outcome
func (f *Fetcher) FetchAll(ctx context.Context) domain.FetchResult {
	categories := make([]string, 0, len(f.cfg.Feeds))
	for category := range f.cfg.Feeds {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return f.fetchCategories(ctx, categories)
}

// FetchCategory ingests a single named category
func (f *Fetcher) FetchCategory(ctx context.Context, category string) (domain.FetchResult, error) {
	if _, ok := f.cfg.Feeds[category]; !ok {
		return domain.FetchResult{}, domain.NewValidationError("unknown feed category %q", category)
	}
	return f.fetchCategories(ctx, []string{category}), nil
}

func (f *Fetcher) fetchCategories(ctx context.Context, categories []string) domain.FetchResult {
	result := domain.FetchResult{Errors: []domain.CategoryError{}}

	for _, category := range categories {
		src := f.cfg.Feeds[category]
		count, err := f.fetchOne(ctx, category, src)
		if err != nil {
			log.Printf("[WARN] feed fetch failed for %s: %v", category, err)
			result.Errors = append(result.Errors, domain.CategoryError{Category: category, Error: err.Error()})
			continue
		}
		result.TotalFetched += count
	}

	log.Printf("[INFO] feed ingestion completed: %d new items, %d errors", result.TotalFetched, len(result.Errors))
	return result
}

// fetchOne retrieves one feed and persists its new items, returns the number
// of items actually stored
func (f *Fetcher) fetchOne(ctx context.Context, category string, src config.Feed) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read feed body: %w", err)
	}

	items := ExtractItems(string(body))
	if len(items) > f.cfg.MaxPerFeed {
		items = items[:f.cfg.MaxPerFeed]
	}

	stored := 0
	for _, item := range items {
		sourceURL := NormalizeURL(item.Link)

		exists, err := f.store.NewsExistsBySourceURL(ctx, sourceURL)
		if err != nil {
			log.Printf("[ERROR] dedup check failed for %s: %v", sourceURL, err)
			continue
		}
		if exists {
			continue
		}

		news := &domain.NewsItem{
			SourceURL:       sourceURL,
			SourceName:      src.Source,
			Title:           item.Title,
			OriginalSummary: SanitizeSummary(item.Description),
			ThumbnailURL:    item.Thumbnail,
			Category:        category,
			PublishedAt:     ParsePubDate(item.PubDate, time.Now()),
		}
		if err := f.store.CreateNews(ctx, news); err != nil {
			log.Printf("[ERROR] failed to store news item %s: %v", sourceURL, err)
			continue
		}
		stored++
	}

	log.Printf("[DEBUG] %s: %d items extracted, %d stored", category, len(items), stored)
	return stored, nil
}
