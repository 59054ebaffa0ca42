package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/letter4ceo/morning-letter/pkg/config"
)

// OpenAIProvider generates text through the OpenAI chat completion API
type OpenAIProvider struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider, an empty API key leaves it
// unconfigured
func NewOpenAIProvider(pc config.AIProviderConfig, cfg config.AIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(pc.APIKey)
	if pc.Endpoint != "" {
		clientConfig.BaseURL = pc.Endpoint
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		apiKey:      pc.APIKey,
		model:       pc.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      openai.NewClientWithConfig(clientConfig),
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string { return "openai" }

// Configured reports whether a credential is present
func (p *OpenAIProvider) Configured() bool { return p.apiKey != "" }

// Generate sends the prompt as a single user message. JSON mode is requested
// only when the caller expects a JSON document back, the API rejects JSON mode
// for prompts that never mention JSON.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(p.temperature),
		MaxTokens:   p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
