package feed

import (
	"regexp"
	"strings"
	"time"
)

// RawItem is one candidate news entry pulled out of a syndication document
type RawItem struct {
	Title       string
	Link        string
	Description string
	Thumbnail   string
	PubDate     string
}

// deliberately optimistic matching, malformed and partial feeds are the
// expected common case and must only lose fields, never fail
var (
	reItem          = regexp.MustCompile(`(?s)<item>(.*?)</item>`)
	reTitleCDATA    = regexp.MustCompile(`(?s)<title><!\[CDATA\[(.*?)\]\]></title>`)
	reTitle         = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	reLink          = regexp.MustCompile(`(?s)<link>(.*?)</link>`)
	reDescCDATA     = regexp.MustCompile(`(?s)<description><!\[CDATA\[(.*?)\]\]></description>`)
	reDesc          = regexp.MustCompile(`(?s)<description>(.*?)</description>`)
	reMediaThumb    = regexp.MustCompile(`<media:thumbnail[^>]*url="([^"]+)"`)
	reEnclosureThumb = regexp.MustCompile(`<enclosure[^>]*url="([^"]+)"`)
	rePubDate       = regexp.MustCompile(`(?s)<pubDate>(.*?)</pubDate>`)
)

// ExtractItems scans a syndication document for repeating item blocks and
// pulls out title, link, description, thumbnail and publish date. Items
// lacking both title and link are discarded.
func ExtractItems(doc string) []RawItem {
	blocks := reItem.FindAllStringSubmatch(doc, -1)
	items := make([]RawItem, 0, len(blocks))

	for _, block := range blocks {
		body := block[1]

		item := RawItem{
			Title:       firstMatch(body, reTitleCDATA, reTitle),
			Link:        strings.TrimSpace(firstMatch(body, reLink)),
			Description: firstMatch(body, reDescCDATA, reDesc),
			Thumbnail:   firstMatch(body, reMediaThumb, reEnclosureThumb),
			PubDate:     strings.TrimSpace(firstMatch(body, rePubDate)),
		}

		if item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, item)
	}

	return items
}

// firstMatch returns the first capture group of the first pattern that matches
func firstMatch(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// NormalizeURL strips the query string, the result is the dedup key
func NormalizeURL(link string) string {
	if i := strings.Index(link, "?"); i >= 0 {
		return link[:i]
	}
	return link
}

// pubDateFormats covers the date shapes seen in real feeds
var pubDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParsePubDate parses a feed publish date, falling back to now when the
// feed supplies nothing parseable
func ParsePubDate(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	for _, format := range pubDateFormats {
		if ts, err := time.Parse(format, s); err == nil {
			return ts
		}
	}
	return now
}
