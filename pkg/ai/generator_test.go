package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letter4ceo/morning-letter/pkg/config"
)

// fakeTitles is a static TitleSource
type fakeTitles struct {
	titles []string
	calls  int
}

func (f *fakeTitles) RecentNewsTitles(_ context.Context, _ int) ([]string, error) {
	f.calls++
	return f.titles, nil
}

func geminiResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func claudeResponse(text string) string {
	resp := map[string]any{
		"content": []map[string]string{{"text": text}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func baseAIConfig() config.AIConfig {
	return config.AIConfig{
		Timeout:     5 * time.Second,
		Temperature: 0.8,
		MaxTokens:   2048,
	}
}

func TestGenerateLetterNoProviders(t *testing.T) {
	g := NewGenerator(baseAIConfig(), &fakeTitles{})
	_, err := g.GenerateLetter(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGenerateLetterGemini(t *testing.T) {
	draftJSON := `{"title":"[Morning Letter] Keep going","body":"<p>First.</p>\n<p>Second.</p>"}`

	var gotReq map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "gem-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(geminiResponse(draftJSON)))
	}))
	defer ts.Close()

	cfg := baseAIConfig()
	cfg.Gemini = config.AIProviderConfig{APIKey: "gem-key", Model: "gemini-2.0-flash", Endpoint: ts.URL}

	g := NewGenerator(cfg, &fakeTitles{titles: []string{"headline one"}})
	draft, err := g.GenerateLetter(context.Background(), nil, "keep it short")
	require.NoError(t, err)

	assert.Equal(t, "[Morning Letter] Keep going", draft.Title)
	assert.Equal(t, "<p>First.</p>\n<p>Second.</p>", draft.Body)
	assert.Equal(t, "gemini", draft.Provider)

	genCfg, ok := gotReq["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.8, genCfg["temperature"], 0.0001)
	assert.Equal(t, "application/json", genCfg["responseMimeType"])

	// prompt carries the instruction and the numbered recent title
	contents := gotReq["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	prompt := parts[0].(map[string]any)["text"].(string)
	assert.Contains(t, prompt, "Additional instruction: keep it short")
	assert.Contains(t, prompt, "1. headline one")
}

func TestGenerateLetterFallbackToClaude(t *testing.T) {
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gemini.Close()

	var gotVersion string
	claude := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		assert.Equal(t, "claude-key", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(claudeResponse(`{"title":"T","body":"<p>B</p>"}`)))
	}))
	defer claude.Close()

	cfg := baseAIConfig()
	cfg.Gemini = config.AIProviderConfig{APIKey: "gem-key", Model: "gemini-2.0-flash", Endpoint: gemini.URL}
	cfg.Claude = config.AIProviderConfig{APIKey: "claude-key", Model: "claude-3-haiku-20240307", Endpoint: claude.URL}

	g := NewGenerator(cfg, &fakeTitles{})
	draft, err := g.GenerateLetter(context.Background(), []string{"seed"}, "")
	require.NoError(t, err)

	assert.Equal(t, "claude", draft.Provider, "first provider failed, chain moved on")
	assert.Equal(t, "T", draft.Title)
	assert.Equal(t, "2023-06-01", gotVersion)
}

func TestGenerateLetterSeedTitlesSkipStore(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(geminiResponse(`{"title":"T","body":"B"}`)))
	}))
	defer ts.Close()

	cfg := baseAIConfig()
	cfg.Gemini = config.AIProviderConfig{APIKey: "k", Model: "m", Endpoint: ts.URL}

	titles := &fakeTitles{titles: []string{"from store"}}
	g := NewGenerator(cfg, titles)

	_, err := g.GenerateLetter(context.Background(), []string{"explicit seed"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, titles.calls, "explicit seeds bypass the title store")
}

func TestSummarize(t *testing.T) {
	t.Run("provider available", func(t *testing.T) {
		var gotReq map[string]any
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			_, _ = w.Write([]byte(geminiResponse("  short summary  ")))
		}))
		defer ts.Close()

		cfg := baseAIConfig()
		cfg.Gemini = config.AIProviderConfig{APIKey: "k", Model: "m", Endpoint: ts.URL}

		g := NewGenerator(cfg, &fakeTitles{})
		got := g.Summarize(context.Background(), "title", "content")
		assert.Equal(t, "short summary", got)

		// plain-text call, JSON mode must stay off
		genCfg, ok := gotReq["generationConfig"].(map[string]any)
		require.True(t, ok)
		assert.NotContains(t, genCfg, "responseMimeType")
	})

	t.Run("falls back to excerpt", func(t *testing.T) {
		g := NewGenerator(baseAIConfig(), &fakeTitles{})
		long := strings.Repeat("a", 300)
		got := g.Summarize(context.Background(), "title", long)
		assert.Equal(t, strings.Repeat("a", 200)+"...", got)
	})
}

func TestOpenAIProviderJSONMode(t *testing.T) {
	var gotReq map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = nil // decoding into a populated map merges keys, so reset between requests
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "text"}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer ts.Close()

	p := NewOpenAIProvider(config.AIProviderConfig{APIKey: "k", Model: "gpt-4o-mini", Endpoint: ts.URL}, baseAIConfig())

	t.Run("letter drafting requests json", func(t *testing.T) {
		_, err := p.Generate(context.Background(), "prompt with JSON shape", true)
		require.NoError(t, err)
		rf, ok := gotReq["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_object", rf["type"])
	})

	t.Run("summaries stay plain text", func(t *testing.T) {
		_, err := p.Generate(context.Background(), "summarize this", false)
		require.NoError(t, err)
		assert.NotContains(t, gotReq, "response_format")
	})
}

func TestParseDraft(t *testing.T) {
	t.Run("clean json", func(t *testing.T) {
		d := parseDraft(`{"title":"My Title","body":"<p>text</p>"}`)
		assert.Equal(t, "My Title", d.Title)
		assert.Equal(t, "<p>text</p>", d.Body)
	})

	t.Run("json inside fences", func(t *testing.T) {
		d := parseDraft("```json\n{\"title\":\"Fenced\",\"body\":\"<p>b</p>\"}\n```")
		assert.Equal(t, "Fenced", d.Title)
		assert.Equal(t, "<p>b</p>", d.Body)
	})

	t.Run("content field accepted", func(t *testing.T) {
		d := parseDraft(`{"title":"T","content":"plain body"}`)
		assert.Equal(t, "<p>plain body</p>", d.Body)
	})

	t.Run("missing title gets default", func(t *testing.T) {
		d := parseDraft(`{"body":"<p>b</p>"}`)
		assert.Equal(t, defaultDraftTitle, d.Title)
	})

	t.Run("raw text treated as body", func(t *testing.T) {
		d := parseDraft("first paragraph\n\nsecond paragraph")
		assert.Equal(t, defaultDraftTitle, d.Title)
		assert.Equal(t, "<p>first paragraph</p>\n<p>second paragraph</p>", d.Body)
	})
}

func TestFormatBody(t *testing.T) {
	t.Run("wraps blank-line paragraphs", func(t *testing.T) {
		got := formatBody("one\n\ntwo\n\n\nthree")
		assert.Equal(t, "<p>one</p>\n<p>two</p>\n<p>three</p>", got)
	})

	t.Run("existing markup untouched", func(t *testing.T) {
		in := "<p>already</p>\n\n<p>wrapped</p>"
		assert.Equal(t, in, formatBody(in))
	})

	t.Run("empty paragraphs dropped", func(t *testing.T) {
		assert.Equal(t, "<p>only</p>", formatBody("\n\nonly\n\n  \n\n"))
	})
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "ab...", excerpt("abcdef", 2))
	assert.Equal(t, "가나...", excerpt("가나다라마", 2), "rune safe")
	assert.Equal(t, "trimmed", excerpt("  trimmed  ", 10))
}
