package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "just a plain summary", "just a plain summary"},
		{"tags stripped", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities decoded", "A &amp; B &lt;ok&gt; &quot;quoted&quot;", `A & B <ok> "quoted"`},
		{"nbsp becomes space", "one&nbsp;two", "one two"},
		{"whitespace trimmed", "  padded  ", "padded"},
		{"script dropped", `<script>alert("x")</script>headline`, "headline"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeSummary(tt.in))
		})
	}
}

func TestSanitizeSummaryTruncates(t *testing.T) {
	long := strings.Repeat("가", 600)
	got := SanitizeSummary(long)
	assert.Equal(t, maxSummaryLen, len([]rune(got)))
	assert.Equal(t, strings.Repeat("가", maxSummaryLen), got)
}
