package letter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

func TestRenderEmail(t *testing.T) {
	t.Run("full letter", func(t *testing.T) {
		n := &domain.Newsletter{
			Title:         "Monday Morning",
			LetterBody:    "<p>Good morning.</p>",
			CuratorNote:   "From the curator",
			PublishedDate: "2026-09-01",
		}
		items := []*domain.NewsItem{
			{Title: "First", SourceURL: "https://example.com/1", SourceName: "Example", AISummary: "ai summary", ThumbnailURL: "https://example.com/t.jpg"},
			{Title: "Second", SourceURL: "https://example.com/2", OriginalSummary: "feed summary"},
		}

		html, err := RenderEmail(n, items, "https://example.com/unsub")
		require.NoError(t, err)

		assert.Contains(t, html, "Monday Morning")
		assert.Contains(t, html, "<p>Good morning.</p>", "body passes through unescaped")
		assert.Contains(t, html, "From the curator")
		assert.Contains(t, html, "2026-09-01")
		assert.Contains(t, html, "https://example.com/t.jpg")
		assert.Contains(t, html, "ai summary")
		assert.Contains(t, html, "feed summary", "falls back to the feed summary")
		assert.Contains(t, html, "https://example.com/unsub")
	})

	t.Run("bare letter renders", func(t *testing.T) {
		n := &domain.Newsletter{Title: "Bare"}

		html, err := RenderEmail(n, nil, "")
		require.NoError(t, err)

		assert.Contains(t, html, "Bare")
		assert.NotContains(t, html, "Today's News", "no item section without items")
		assert.NotContains(t, html, "unsubscribe")
	})

	t.Run("item order preserved", func(t *testing.T) {
		n := &domain.Newsletter{Title: "Ordered", LetterBody: "<p>b</p>"}
		items := []*domain.NewsItem{
			{Title: "AAA", SourceURL: "https://example.com/a"},
			{Title: "BBB", SourceURL: "https://example.com/b"},
		}

		html, err := RenderEmail(n, items, "")
		require.NoError(t, err)
		assert.Less(t, strings.Index(html, "AAA"), strings.Index(html, "BBB"))
	})

	t.Run("title escaped", func(t *testing.T) {
		n := &domain.Newsletter{Title: `<script>alert("x")</script>`}

		html, err := RenderEmail(n, nil, "")
		require.NoError(t, err)
		assert.NotContains(t, html, "<script>")
	})
}
