package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractItems(t *testing.T) {
	t.Run("well formed feed", func(t *testing.T) {
		doc := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
<title>Example Feed</title>
<item>
<title><![CDATA[First article]]></title>
<link>https://example.com/articles/1?utm_source=rss</link>
<description><![CDATA[Summary <b>one</b>]]></description>
<media:thumbnail url="https://example.com/thumb1.jpg"/>
<pubDate>Mon, 02 Jan 2006 15:04:05 +0900</pubDate>
</item>
<item>
<title>Second article</title>
<link>https://example.com/articles/2</link>
<description>Summary two</description>
<enclosure url="https://example.com/thumb2.jpg" type="image/jpeg"/>
</item>
</channel>
</rss>`

		items := ExtractItems(doc)
		require.Len(t, items, 2)

		assert.Equal(t, "First article", items[0].Title)
		assert.Equal(t, "https://example.com/articles/1?utm_source=rss", items[0].Link)
		assert.Equal(t, "Summary <b>one</b>", items[0].Description)
		assert.Equal(t, "https://example.com/thumb1.jpg", items[0].Thumbnail)
		assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 +0900", items[0].PubDate)

		assert.Equal(t, "Second article", items[1].Title)
		assert.Equal(t, "https://example.com/thumb2.jpg", items[1].Thumbnail)
	})

	t.Run("items without title or link discarded", func(t *testing.T) {
		doc := `<rss><channel>
<item><title>No link here</title></item>
<item><link>https://example.com/no-title</link></item>
<item><title>Kept</title><link>https://example.com/kept</link></item>
</channel></rss>`

		items := ExtractItems(doc)
		require.Len(t, items, 1)
		assert.Equal(t, "Kept", items[0].Title)
	})

	t.Run("malformed document yields nothing", func(t *testing.T) {
		assert.Empty(t, ExtractItems("this is not xml at all"))
		assert.Empty(t, ExtractItems(""))
	})

	t.Run("unclosed item ignored", func(t *testing.T) {
		doc := `<item><title>Broken</title><link>https://example.com/broken</link>`
		assert.Empty(t, ExtractItems(doc))
	})
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips query", "https://example.com/a?utm_source=rss&x=1", "https://example.com/a"},
		{"no query untouched", "https://example.com/a", "https://example.com/a"},
		{"empty", "", ""},
		{"query only", "?x=1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestParsePubDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rfc1123z", func(t *testing.T) {
		ts := ParsePubDate("Mon, 02 Jan 2006 15:04:05 +0900", now)
		assert.Equal(t, 2006, ts.Year())
		assert.Equal(t, 15, ts.Hour())
	})

	t.Run("rfc3339", func(t *testing.T) {
		ts := ParsePubDate("2024-03-15T09:30:00Z", now)
		assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), ts)
	})

	t.Run("sql style", func(t *testing.T) {
		ts := ParsePubDate("2024-03-15 09:30:00", now)
		assert.Equal(t, 2024, ts.Year())
	})

	t.Run("unparseable falls back to now", func(t *testing.T) {
		assert.Equal(t, now, ParsePubDate("next tuesday-ish", now))
	})

	t.Run("empty falls back to now", func(t *testing.T) {
		assert.Equal(t, now, ParsePubDate("", now))
	})
}
