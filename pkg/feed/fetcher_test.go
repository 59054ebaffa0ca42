package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letter4ceo/morning-letter/pkg/config"
	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// fakeStore records created items and answers existence checks from them
type fakeStore struct {
	existing map[string]bool
	created  []*domain.NewsItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}}
}

func (f *fakeStore) NewsExistsBySourceURL(_ context.Context, sourceURL string) (bool, error) {
	return f.existing[sourceURL], nil
}

func (f *fakeStore) CreateNews(_ context.Context, item *domain.NewsItem) error {
	f.existing[item.SourceURL] = true
	f.created = append(f.created, item)
	return nil
}

const feedDoc = `<rss><channel>
<item>
<title><![CDATA[Economy headline]]></title>
<link>https://example.com/econ/1?utm_source=rss</link>
<description><![CDATA[<p>Body &amp; details</p>]]></description>
<pubDate>Fri, 14 Mar 2025 06:00:00 +0900</pubDate>
</item>
<item>
<title>Another headline</title>
<link>https://example.com/econ/2</link>
<description>Second summary</description>
</item>
</channel></rss>`

func testIngestConfig(url string) config.IngestConfig {
	return config.IngestConfig{
		Feeds:       map[string]config.Feed{"economy": {URL: url, Source: "Example Econ"}},
		MaxPerFeed:  10,
		UserAgent:   "Mozilla/5.0 (compatible; MorningLetterBot/1.0)",
		HTTPTimeout: 5 * time.Second,
	}
}

func TestFetcherFetchAll(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(feedDoc))
	}))
	defer ts.Close()

	store := newFakeStore()
	f := NewFetcher(testIngestConfig(ts.URL), store)

	result := f.FetchAll(context.Background())
	assert.Equal(t, 2, result.TotalFetched)
	assert.Empty(t, result.Errors)

	require.Len(t, store.created, 2)
	first := store.created[0]
	assert.Equal(t, "https://example.com/econ/1", first.SourceURL, "query string stripped for dedup")
	assert.Equal(t, "Example Econ", first.SourceName)
	assert.Equal(t, "Economy headline", first.Title)
	assert.Equal(t, "Body & details", first.OriginalSummary, "markup stripped, entities decoded")
	assert.Equal(t, "economy", first.Category)
	assert.Equal(t, 2025, first.PublishedAt.Year())

	assert.Equal(t, "Mozilla/5.0 (compatible; MorningLetterBot/1.0)", gotUA)
	assert.Equal(t, "application/rss+xml, application/xml, text/xml, */*", gotAccept)
}

func TestFetcherDedup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedDoc))
	}))
	defer ts.Close()

	store := newFakeStore()
	f := NewFetcher(testIngestConfig(ts.URL), store)

	result := f.FetchAll(context.Background())
	assert.Equal(t, 2, result.TotalFetched)

	// second run sees everything as already stored
	result = f.FetchAll(context.Background())
	assert.Equal(t, 0, result.TotalFetched)
	assert.Empty(t, result.Errors)
	assert.Len(t, store.created, 2)
}

func TestFetcherPerFeedCap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedDoc))
	}))
	defer ts.Close()

	cfg := testIngestConfig(ts.URL)
	cfg.MaxPerFeed = 1

	store := newFakeStore()
	f := NewFetcher(cfg, store)

	result := f.FetchAll(context.Background())
	assert.Equal(t, 1, result.TotalFetched)
	assert.Len(t, store.created, 1)
}

func TestFetcherCategoryFailureIsolated(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedDoc))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	cfg := testIngestConfig(good.URL)
	cfg.Feeds["broken"] = config.Feed{URL: bad.URL, Source: "Broken"}

	store := newFakeStore()
	f := NewFetcher(cfg, store)

	result := f.FetchAll(context.Background())
	assert.Equal(t, 2, result.TotalFetched, "good category unaffected by the broken one")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].Category)
	assert.Contains(t, result.Errors[0].Error, "unexpected status code")
}

func TestFetcherFetchCategory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedDoc))
	}))
	defer ts.Close()

	store := newFakeStore()
	f := NewFetcher(testIngestConfig(ts.URL), store)

	t.Run("known category", func(t *testing.T) {
		result, err := f.FetchCategory(context.Background(), "economy")
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalFetched)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := f.FetchCategory(context.Background(), "sports")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}
