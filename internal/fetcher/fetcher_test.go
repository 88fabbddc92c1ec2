package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	const export = `[{"id":"a","timestamp":"2025-01-01T00:00:00Z","text":"kept"}]`

	mux := http.NewServeMux()
	mux.HandleFunc("/raw.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(export))
	})
	mux.HandleFunc("/paste", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><h1>paste</h1><pre><code>` +
			strings.ReplaceAll(export, `"`, "&#34;") + `</code></pre><pre>second</pre></body></html>`))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()

	t.Run("raw json", func(t *testing.T) {
		body, err := Fetch(ctx, srv.URL+"/raw.json")
		require.NoError(t, err)
		assert.Equal(t, export, string(body))
	})

	t.Run("html paste", func(t *testing.T) {
		body, err := Fetch(ctx, srv.URL+"/paste")
		require.NoError(t, err)
		assert.Equal(t, export, string(body))
	})

	t.Run("html without pre", func(t *testing.T) {
		_, err := Fetch(ctx, srv.URL+"/page")
		assert.Error(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := Fetch(ctx, srv.URL+"/gone")
		assert.ErrorContains(t, err, "HTTP 404")
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := Fetch(ctx, "file:///etc/passwd")
		assert.ErrorContains(t, err, "unsupported scheme")
	})
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/export.json"))
	assert.True(t, IsURL(" http://localhost:8080/x"))
	assert.False(t, IsURL("export.json"))
	assert.False(t, IsURL("-"))
}
