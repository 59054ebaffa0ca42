package feed

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSummaryLen bounds the stored original summary
const maxSummaryLen = 500

var stripPolicy = bluemonday.StrictPolicy()

// entities commonly left behind in feed descriptions, including the numeric
// forms and the non-breaking space the sanitizer itself emits
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"\u00a0", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#34;", `"`,
	"&#39;", "'",
)

// SanitizeSummary strips markup from a raw feed description, decodes common
// HTML entities and truncates to the storage bound
func SanitizeSummary(raw string) string {
	cleaned := stripPolicy.Sanitize(raw)
	cleaned = entityReplacer.Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if runes := []rune(cleaned); len(runes) > maxSummaryLen {
		return string(runes[:maxSummaryLen])
	}
	return cleaned
}
