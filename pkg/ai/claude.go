package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/letter4ceo/morning-letter/pkg/config"
)

const defaultClaudeEndpoint = "https://api.anthropic.com/v1/messages"

// ClaudeProvider generates text through the Anthropic messages API
type ClaudeProvider struct {
	apiKey    string
	model     string
	endpoint  string
	maxTokens int
	client    *http.Client
}

// NewClaudeProvider creates a Claude provider, an empty API key leaves it
// unconfigured
func NewClaudeProvider(pc config.AIProviderConfig, cfg config.AIConfig) *ClaudeProvider {
	endpoint := pc.Endpoint
	if endpoint == "" {
		endpoint = defaultClaudeEndpoint
	}
	return &ClaudeProvider{
		apiKey:    pc.APIKey,
		model:     pc.Model,
		endpoint:  endpoint,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name
func (p *ClaudeProvider) Name() string { return "claude" }

// Configured reports whether a credential is present
func (p *ClaudeProvider) Configured() bool { return p.apiKey != "" }

// Generate sends the prompt and extracts the first content block text. The
// messages API has no JSON mode, the flag is accepted for interface parity.
func (p *ClaudeProvider) Generate(ctx context.Context, prompt string, _ bool) (string, error) {
	reqBody := map[string]any{
		"model":      p.model,
		"max_tokens": p.maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("no response from claude")
	}
	return parsed.Content[0].Text, nil
}
