// Package stibee implements the client for the Stibee email delivery API,
// covering the four operations the dispatch engine depends on: list-scoped
// subscriber upsert/delete, subscriber query, campaign create+send, and
// single-recipient auto email.
package stibee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/letter4ceo/morning-letter/pkg/config"
)

// Subscriber is the provider-side subscriber record
type Subscriber struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

// UpsertResult reports the per-subscriber outcome of a list upsert
type UpsertResult struct {
	Success []Subscriber `json:"success"`
	Update  []Subscriber `json:"update"`
	Fail    []struct {
		Email      string `json:"email"`
		FailReason string `json:"failReason"`
	} `json:"fail"`
}

// apiResponse is the provider's common response envelope
type apiResponse struct {
	Ok    bool `json:"Ok"`
	Error *struct {
		Code           string `json:"Code"`
		Message        string `json:"Message"`
		HTTPStatusCode int    `json:"HttpStatusCode"`
	} `json:"Error"`
	Value json.RawMessage `json:"Value"`
}

// Client talks to the Stibee API
type Client struct {
	cfg    config.StibeeConfig
	client *http.Client
}

// NewClient creates a Stibee API client
func NewClient(cfg config.StibeeConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// IsConfigured reports whether the credential and list id are present, a pure
// function of the config
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != "" && c.cfg.ListID != ""
}

// HasAutoEmail reports whether the personalized auto-email endpoint is set
func (c *Client) HasAutoEmail() bool { return c.cfg.AutoEmailURL != "" }

// AddSubscribers upserts subscribers into the provider list, existing emails
// are updated in place
func (c *Client) AddSubscribers(ctx context.Context, subscribers []Subscriber) (*UpsertResult, error) {
	if !c.IsConfigured() {
		log.Printf("[WARN] stibee not configured, skipping subscriber upsert")
		return &UpsertResult{Success: subscribers}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"subscribers":     subscribers,
		"eventOccurredBy": "SUBSCRIBER",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal subscribers: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/lists/%s/subscribers", c.cfg.BaseURL, c.cfg.ListID)
	raw, err := c.call(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var result UpsertResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse upsert result: %w", err)
	}
	return &result, nil
}

// DeleteSubscriber removes one email from the provider list
func (c *Client) DeleteSubscriber(ctx context.Context, email string) error {
	if !c.IsConfigured() {
		log.Printf("[WARN] stibee not configured, skipping subscriber delete")
		return nil
	}

	endpoint := fmt.Sprintf("%s/v1/lists/%s/subscribers/%s", c.cfg.BaseURL, c.cfg.ListID, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("AccessToken", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stibee request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stibee delete subscriber: status %d", resp.StatusCode)
	}
	return nil
}

// GetSubscribers queries the provider list page by page
func (c *Client) GetSubscribers(ctx context.Context, offset, limit int) ([]Subscriber, error) {
	if !c.IsConfigured() {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/lists/%s/subscribers?offset=%d&limit=%d", c.cfg.BaseURL, c.cfg.ListID, offset, limit)
	raw, err := c.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var subscribers []Subscriber
	if err := json.Unmarshal(raw, &subscribers); err != nil {
		return nil, fmt.Errorf("parse subscribers: %w", err)
	}
	return subscribers, nil
}

// CreateAndSendEmail creates a campaign and issues the separate send call.
// Success requires both calls to succeed, the returned id is the delivery
// correlation id even when the send step fails.
func (c *Client) CreateAndSendEmail(ctx context.Context, subject, content, previewText string) (emailID string, err error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("stibee not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"listId":      c.cfg.ListID,
		"subject":     subject,
		"previewText": previewText,
		"content":     content,
		"senderEmail": c.cfg.SenderEmail,
		"senderName":  c.cfg.SenderName,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	raw, err := c.call(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/emails", payload)
	if err != nil {
		return "", fmt.Errorf("create email: %w", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("create email: no campaign id in response")
	}
	log.Printf("[INFO] stibee campaign created: %s", created.ID)

	if _, err := c.call(ctx, http.MethodPost, fmt.Sprintf("%s/v2/emails/%s/send", c.cfg.BaseURL, created.ID), nil); err != nil {
		return created.ID, fmt.Errorf("send email: %w", err)
	}

	log.Printf("[INFO] stibee campaign sent: %s", created.ID)
	return created.ID, nil
}

// SendAutoEmail delivers one personalized email through the auto-email
// endpoint. Substitution variables are flattened into the request body next
// to the subscriber address.
func (c *Client) SendAutoEmail(ctx context.Context, email string, vars map[string]string) error {
	if c.cfg.AutoEmailURL == "" {
		return fmt.Errorf("auto email URL not configured")
	}

	body := map[string]string{"subscriber": email}
	for k, v := range vars {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal auto email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AutoEmailURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("auto email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("auto email: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// call performs one API request and unwraps the provider envelope
func (c *Client) call(ctx context.Context, method, endpoint string, payload []byte) (json.RawMessage, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("AccessToken", c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stibee request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !envelope.Ok {
		if envelope.Error != nil {
			return nil, fmt.Errorf("stibee api error: %s (%s)", envelope.Error.Message, envelope.Error.Code)
		}
		return nil, fmt.Errorf("stibee api error: status %d", resp.StatusCode)
	}
	return envelope.Value, nil
}
