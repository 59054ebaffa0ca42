package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ogPage = `<!DOCTYPE html>
<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="OG Title">
<meta property="og:description" content="OG description">
<meta property="og:image" content="https://example.com/img.jpg">
<meta property="og:site_name" content="Example Site">
</head><body></body></html>`

const plainPage = `<!DOCTYPE html>
<html><head>
<title> Plain Title </title>
<meta name="description" content="plain description">
</head><body></body></html>`

func TestLinkPreview(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("open graph metadata", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.Header.Get("User-Agent"), "MorningLetterBot")
			_, _ = w.Write([]byte(ogPage))
		}))
		defer target.Close()

		resp := postJSON(t, ts.URL+"/api/news/link-preview", map[string]string{"url": target.URL})
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		env := decodeEnvelope(t, resp.Body)
		data := env.Data.(map[string]any)
		assert.Equal(t, "OG Title", data["title"])
		assert.Equal(t, "OG description", data["description"])
		assert.Equal(t, "https://example.com/img.jpg", data["image"])
		assert.Equal(t, "Example Site", data["site_name"])
	})

	t.Run("falls back to plain tags", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(plainPage))
		}))
		defer target.Close()

		resp := postJSON(t, ts.URL+"/api/news/link-preview", map[string]string{"url": target.URL})
		defer resp.Body.Close()

		env := decodeEnvelope(t, resp.Body)
		data := env.Data.(map[string]any)
		assert.Equal(t, "Plain Title", data["title"])
		assert.Equal(t, "plain description", data["description"])
	})

	t.Run("non http scheme rejected", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/news/link-preview", map[string]string{"url": "ftp://example.com/x"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("target failure maps to validation error", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer target.Close()

		resp := postJSON(t, ts.URL+"/api/news/link-preview", map[string]string{"url": target.URL})
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		env := decodeEnvelope(t, resp.Body)
		assert.Contains(t, env.Error, "failed to load url")
	})
}
