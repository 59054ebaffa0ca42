package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/letter4ceo/morning-letter/pkg/config"
)

// ErrUnavailable is returned when every configured provider failed or no
// provider is configured at all
var ErrUnavailable = errors.New("AI unavailable, no provider produced a draft")

// Provider is a single text-generation backend. Implementations differ in
// transport and response shape but present the same generate surface.
// jsonOutput requests a structured JSON response where the backend supports it,
// callers expecting plain text must leave it off.
type Provider interface {
	Name() string
	Configured() bool
	Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

// TitleSource supplies recent news titles used as draft context
type TitleSource interface {
	RecentNewsTitles(ctx context.Context, limit int) ([]string, error)
}

// Draft is a generated letter title and HTML body
type Draft struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Provider string `json:"provider"`
}

// default persona used when the config supplies none
const defaultPersona = `You write a warm, sincere morning letter sent daily to startup founders.

Style:
- empathetic and encouraging, grounded in the real difficulties of building a company
- practical advice woven into personal observations
- 4-6 paragraphs, each 2-4 sentences

Use today's news topics below for relevant insight.

Respond as JSON:
{
  "title": "[Morning Letter] title",
  "body": "letter body, paragraphs wrapped in HTML <p> tags"
}`

// Generator drafts letter content by trying an ordered provider chain
type Generator struct {
	providers []Provider
	titles    TitleSource
	persona   string
}

// NewGenerator creates a generator with the fixed provider priority order:
// gemini, then openai, then claude
func NewGenerator(cfg config.AIConfig, titles TitleSource) *Generator {
	persona := cfg.Persona
	if persona == "" {
		persona = defaultPersona
	}
	return &Generator{
		providers: []Provider{
			NewGeminiProvider(cfg.Gemini, cfg),
			NewOpenAIProvider(cfg.OpenAI, cfg),
			NewClaudeProvider(cfg.Claude, cfg),
		},
		titles:  titles,
		persona: persona,
	}
}

// GenerateLetter produces a title+body draft from seed titles and an optional
// free-text instruction. With no seed titles the 5 most recent news titles are
// pulled as context.
func (g *Generator) GenerateLetter(ctx context.Context, seedTitles []string, instruction string) (*Draft, error) {
	titles := seedTitles
	if len(titles) == 0 && g.titles != nil {
		recent, err := g.titles.RecentNewsTitles(ctx, 5)
		if err != nil {
			log.Printf("[WARN] failed to load recent news titles: %v", err)
		} else {
			titles = recent
		}
	}

	prompt := g.buildPrompt(titles, instruction)

	text, provider, err := g.generate(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	draft := parseDraft(text)
	draft.Provider = provider
	return draft, nil
}

// Summarize produces a short summary of one news item. When no provider is
// available it falls back to a plain excerpt instead of failing, a missing
// summary is not worth surfacing as an error.
func (g *Generator) Summarize(ctx context.Context, title, content string) string {
	prompt := fmt.Sprintf("Summarize the following news article in 2-3 sentences, key points only.\n\nTitle: %s\nContent: %s\n\nSummary:", title, content)

	text, _, err := g.generate(ctx, prompt, false)
	if err != nil {
		log.Printf("[WARN] summarization fell back to excerpt: %v", err)
		return excerpt(content, 200)
	}
	return strings.TrimSpace(text)
}

// generate walks the provider chain, an unconfigured provider is skipped
// without counting as a failure
func (g *Generator) generate(ctx context.Context, prompt string, jsonOutput bool) (text, provider string, err error) {
	for _, p := range g.providers {
		if !p.Configured() {
			continue
		}
		text, err := p.Generate(ctx, prompt, jsonOutput)
		if err != nil {
			log.Printf("[WARN] provider %s failed: %v", p.Name(), err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Printf("[WARN] provider %s returned empty response", p.Name())
			continue
		}
		return text, p.Name(), nil
	}
	return "", "", ErrUnavailable
}

// buildPrompt composes the persona, optional instruction and numbered titles
// into one prompt
func (g *Generator) buildPrompt(titles []string, instruction string) string {
	var b strings.Builder
	b.WriteString(g.persona)
	b.WriteString("\n\n")

	if instruction != "" {
		fmt.Fprintf(&b, "Additional instruction: %s\n", instruction)
	}

	b.WriteString("Today's news topics:\n")
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	return b.String()
}

var reJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

// defaultDraftTitle is used when the provider response carries no title
const defaultDraftTitle = "[Morning Letter] Today's Letter"

// parseDraft extracts an embedded JSON {title, body} object from the provider
// response, falling back to treating the raw text as the body
func parseDraft(text string) *Draft {
	if m := reJSONObject.FindString(text); m != "" {
		var parsed struct {
			Title   string `json:"title"`
			Body    string `json:"body"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			body := parsed.Body
			if body == "" {
				body = parsed.Content
			}
			if body == "" {
				body = text
			}
			title := parsed.Title
			if title == "" {
				title = defaultDraftTitle
			}
			return &Draft{Title: title, Body: formatBody(body)}
		}
	}

	return &Draft{Title: defaultDraftTitle, Body: formatBody(text)}
}

var reBlankLines = regexp.MustCompile(`\n\n+`)

// formatBody wraps plain text paragraphs in <p> tags, text that already
// carries paragraph markup is returned untouched
func formatBody(text string) string {
	if strings.Contains(text, "<p>") {
		return text
	}

	parts := reBlankLines.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, "<p>"+trimmed+"</p>")
		}
	}
	return strings.Join(paragraphs, "\n")
}

// excerpt returns the first n runes of s with an ellipsis when truncated
func excerpt(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
