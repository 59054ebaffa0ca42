package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:letter.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Ingest   IngestConfig   `yaml:"ingest" json:"ingest" jsonschema:"description=Feed ingestion configuration"`
	AI       AIConfig       `yaml:"ai" json:"ai" jsonschema:"description=AI draft generation configuration"`
	Stibee   StibeeConfig   `yaml:"stibee" json:"stibee" jsonschema:"description=Email delivery provider configuration"`
	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch" jsonschema:"description=Newsletter dispatch configuration"`
}

// Feed describes one syndication source
type Feed struct {
	URL    string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Source string `yaml:"source" json:"source" jsonschema:"required,description=Source label shown in the letter"`
}

// IngestConfig holds feed ingestion settings
type IngestConfig struct {
	Feeds       map[string]Feed `yaml:"feeds" json:"feeds" jsonschema:"description=Category to feed mapping"`
	MaxPerFeed  int             `yaml:"max_per_feed" json:"max_per_feed" jsonschema:"default=10,description=Maximum items taken from one feed per run"`
	FetchHour   int             `yaml:"fetch_hour" json:"fetch_hour" jsonschema:"default=21,description=UTC hour when the scheduler runs feed ingestion"`
	UserAgent   string          `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for feed requests"`
	HTTPTimeout time.Duration   `yaml:"http_timeout" json:"http_timeout" jsonschema:"default=30s,description=Timeout per feed request"`
}

// AIProviderConfig holds credentials and tuning for one AI provider
type AIProviderConfig struct {
	APIKey   string `yaml:"api_key" json:"api_key" jsonschema:"description=API key (empty disables the provider)"`
	Model    string `yaml:"model" json:"model" jsonschema:"description=Model name"`
	Endpoint string `yaml:"endpoint" json:"endpoint" jsonschema:"description=API endpoint override"`
}

// AIConfig holds the ordered AI provider chain configuration
type AIConfig struct {
	Gemini      AIProviderConfig `yaml:"gemini" json:"gemini" jsonschema:"description=Gemini provider (tried first)"`
	OpenAI      AIProviderConfig `yaml:"openai" json:"openai" jsonschema:"description=OpenAI provider (tried second)"`
	Claude      AIProviderConfig `yaml:"claude" json:"claude" jsonschema:"description=Claude provider (tried third)"`
	Timeout     time.Duration    `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Timeout per generation request"`
	Temperature float64          `yaml:"temperature" json:"temperature" jsonschema:"default=0.8,description=Temperature for draft generation"`
	MaxTokens   int              `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2048,description=Maximum tokens in response"`
	Persona     string           `yaml:"persona" json:"persona" jsonschema:"description=Persona/style instruction prepended to every draft prompt"`
}

// StibeeConfig holds delivery provider settings
type StibeeConfig struct {
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=Stibee access token"`
	ListID       string        `yaml:"list_id" json:"list_id" jsonschema:"description=Stibee address book id"`
	SenderEmail  string        `yaml:"sender_email" json:"sender_email" jsonschema:"description=Sender address for campaigns"`
	SenderName   string        `yaml:"sender_name" json:"sender_name" jsonschema:"default=Morning Letter,description=Sender display name"`
	AutoEmailURL string        `yaml:"auto_email_url" json:"auto_email_url" jsonschema:"description=Auto email endpoint for personalized sends"`
	BaseURL      string        `yaml:"base_url" json:"base_url" jsonschema:"default=https://api.stibee.com,description=API base URL"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Timeout per API call"`
}

// DispatchMode selects how a letter is delivered
type DispatchMode string

// delivery modes, broadcast creates one provider campaign, fanout sends
// per-recipient auto emails
const (
	ModeBroadcast DispatchMode = "broadcast"
	ModeFanout    DispatchMode = "fanout"
)

// DispatchConfig holds newsletter dispatch settings
type DispatchConfig struct {
	Mode           DispatchMode  `yaml:"mode" json:"mode" jsonschema:"default=broadcast,description=Delivery mode: broadcast or fanout"`
	SendDelay      time.Duration `yaml:"send_delay" json:"send_delay" jsonschema:"default=100ms,description=Delay between personalized sends"`
	UnsubscribeURL string        `yaml:"unsubscribe_url" json:"unsubscribe_url" jsonschema:"description=Unsubscribe page base URL"`
	TickInterval   time.Duration `yaml:"tick_interval" json:"tick_interval" jsonschema:"default=1h,description=Interval between scheduler ticks"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// setDefaults fills zero-value fields with sensible defaults
func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:letter.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Ingest.MaxPerFeed == 0 {
		c.Ingest.MaxPerFeed = 10
	}
	if c.Ingest.FetchHour == 0 {
		c.Ingest.FetchHour = 21 // 06:00 KST
	}
	if c.Ingest.UserAgent == "" {
		c.Ingest.UserAgent = "Mozilla/5.0 (compatible; MorningLetterBot/1.0)"
	}
	if c.Ingest.HTTPTimeout == 0 {
		c.Ingest.HTTPTimeout = 30 * time.Second
	}

	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.8
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 2048
	}
	if c.AI.Gemini.Model == "" {
		c.AI.Gemini.Model = "gemini-2.0-flash"
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.Claude.Model == "" {
		c.AI.Claude.Model = "claude-3-haiku-20240307"
	}

	if c.Stibee.BaseURL == "" {
		c.Stibee.BaseURL = "https://api.stibee.com"
	}
	if c.Stibee.SenderName == "" {
		c.Stibee.SenderName = "Morning Letter"
	}
	if c.Stibee.Timeout == 0 {
		c.Stibee.Timeout = 30 * time.Second
	}

	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = ModeBroadcast
	}
	if c.Dispatch.SendDelay == 0 {
		c.Dispatch.SendDelay = 100 * time.Millisecond
	}
	if c.Dispatch.UnsubscribeURL == "" {
		c.Dispatch.UnsubscribeURL = "https://letter4ceo.com/unsubscribe"
	}
	if c.Dispatch.TickInterval == 0 {
		c.Dispatch.TickInterval = time.Hour
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Ingest.MaxPerFeed < 1 {
		return fmt.Errorf("ingest.max_per_feed must be at least 1")
	}
	if cfg.Ingest.FetchHour < 0 || cfg.Ingest.FetchHour > 23 {
		return fmt.Errorf("ingest.fetch_hour must be between 0 and 23")
	}
	for category, feed := range cfg.Ingest.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("ingest.feeds.%s.url is required", category)
		}
		if feed.Source == "" {
			return fmt.Errorf("ingest.feeds.%s.source is required", category)
		}
	}

	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2")
	}

	if cfg.Dispatch.Mode != ModeBroadcast && cfg.Dispatch.Mode != ModeFanout {
		return fmt.Errorf("dispatch.mode must be broadcast or fanout")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetIngestConfig returns feed ingestion configuration
func (c *Config) GetIngestConfig() IngestConfig {
	return c.Ingest
}

// GetAIConfig returns AI provider chain configuration
func (c *Config) GetAIConfig() AIConfig {
	return c.AI
}

// GetStibeeConfig returns delivery provider configuration
func (c *Config) GetStibeeConfig() StibeeConfig {
	return c.Stibee
}

// GetDispatchConfig returns dispatch configuration
func (c *Config) GetDispatchConfig() DispatchConfig {
	return c.Dispatch
}
