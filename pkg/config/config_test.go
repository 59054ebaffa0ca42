package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
server:
  listen: ":9090"
  timeout: 45s

ingest:
  fetch_hour: 5
  max_per_feed: 7
  feeds:
    economy:
      url: https://example.com/economy.xml
      source: Example Econ
    tech:
      url: https://example.com/tech.xml
      source: Example Tech

ai:
  gemini:
    api_key: gem-key
  persona: "write warmly"

stibee:
  api_key: stb-key
  list_id: "12345"
  sender_email: letter@example.com

dispatch:
  mode: fanout
  send_delay: 250ms
`
		cfg, err := Load(writeConfig(t, configContent))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		assert.Len(t, cfg.Ingest.Feeds, 2)
		assert.Equal(t, "https://example.com/economy.xml", cfg.Ingest.Feeds["economy"].URL)
		assert.Equal(t, "Example Econ", cfg.Ingest.Feeds["economy"].Source)
		assert.Equal(t, 5, cfg.Ingest.FetchHour)
		assert.Equal(t, 7, cfg.Ingest.MaxPerFeed)

		assert.Equal(t, "gem-key", cfg.AI.Gemini.APIKey)
		assert.Equal(t, "write warmly", cfg.AI.Persona)

		assert.Equal(t, "stb-key", cfg.Stibee.APIKey)
		assert.Equal(t, "12345", cfg.Stibee.ListID)

		assert.Equal(t, ModeFanout, cfg.Dispatch.Mode)
		assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.SendDelay)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "{}"))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)

		assert.Equal(t, 10, cfg.Ingest.MaxPerFeed)
		assert.Equal(t, 21, cfg.Ingest.FetchHour)
		assert.Equal(t, "Mozilla/5.0 (compatible; MorningLetterBot/1.0)", cfg.Ingest.UserAgent)
		assert.Equal(t, 30*time.Second, cfg.Ingest.HTTPTimeout)

		assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
		assert.InDelta(t, 0.8, cfg.AI.Temperature, 0.0001)
		assert.Equal(t, 2048, cfg.AI.MaxTokens)
		assert.Equal(t, "gemini-2.0-flash", cfg.AI.Gemini.Model)
		assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAI.Model)
		assert.Equal(t, "claude-3-haiku-20240307", cfg.AI.Claude.Model)

		assert.Equal(t, "https://api.stibee.com", cfg.Stibee.BaseURL)
		assert.Equal(t, "Morning Letter", cfg.Stibee.SenderName)

		assert.Equal(t, ModeBroadcast, cfg.Dispatch.Mode)
		assert.Equal(t, 100*time.Millisecond, cfg.Dispatch.SendDelay)
		assert.Equal(t, time.Hour, cfg.Dispatch.TickInterval)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("TEST_STIBEE_KEY", "secret-from-env")
		configContent := `
stibee:
  api_key: ${TEST_STIBEE_KEY}
  list_id: "1"
`
		cfg, err := Load(writeConfig(t, configContent))
		require.NoError(t, err)
		assert.Equal(t, "secret-from-env", cfg.Stibee.APIKey)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "server: [not a map"))
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestValidate(t *testing.T) {
	t.Run("feed without url rejected", func(t *testing.T) {
		configContent := `
ingest:
  feeds:
    economy:
      source: Example
`
		_, err := Load(writeConfig(t, configContent))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ingest.feeds.economy.url is required")
	})

	t.Run("feed without source rejected", func(t *testing.T) {
		configContent := `
ingest:
  feeds:
    economy:
      url: https://example.com/rss.xml
`
		_, err := Load(writeConfig(t, configContent))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ingest.feeds.economy.source is required")
	})

	t.Run("fetch hour out of range", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ingest:\n  fetch_hour: 24\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch_hour")
	})

	t.Run("bad dispatch mode", func(t *testing.T) {
		_, err := Load(writeConfig(t, "dispatch:\n  mode: carrier-pigeon\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dispatch.mode")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ai:\n  temperature: 3.5\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temperature")
	})
}

func TestGetters(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  listen: \":7070\"\n"))
	require.NoError(t, err)

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":7070", listen)
	assert.Equal(t, 30*time.Second, timeout)

	assert.Equal(t, cfg.Ingest, cfg.GetIngestConfig())
	assert.Equal(t, cfg.AI, cfg.GetAIConfig())
	assert.Equal(t, cfg.Stibee, cfg.GetStibeeConfig())
	assert.Equal(t, cfg.Dispatch, cfg.GetDispatchConfig())
}
