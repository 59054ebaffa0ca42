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

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider generates text through the Gemini REST API
type GeminiProvider struct {
	apiKey      string
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewGeminiProvider creates a Gemini provider, an empty API key leaves it
// unconfigured
func NewGeminiProvider(pc config.AIProviderConfig, cfg config.AIConfig) *GeminiProvider {
	endpoint := pc.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &GeminiProvider{
		apiKey:      pc.APIKey,
		model:       pc.Model,
		endpoint:    endpoint,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string { return "gemini" }

// Configured reports whether a credential is present
func (p *GeminiProvider) Configured() bool { return p.apiKey != "" }

// Generate sends the prompt and extracts the first candidate text. The JSON
// response mime type is requested only for callers expecting a JSON document.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	genConfig := map[string]any{
		"temperature":     p.temperature,
		"topP":            0.95,
		"maxOutputTokens": p.maxTokens,
	}
	if jsonOutput {
		genConfig["responseMimeType"] = "application/json"
	}
	reqBody := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": genConfig,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.endpoint, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
