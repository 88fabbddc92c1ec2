package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/journal/internal/domain"
)

var entries = []domain.Entry{
	{ID: "2", Timestamp: time.Date(2025, 4, 2, 22, 15, 0, 0, time.UTC), Text: "The light was thin."},
	{ID: "1", Timestamp: time.Date(2025, 4, 1, 7, 0, 0, 0, time.UTC), Text: "Noise has been constant."},
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{APIKey: "  "})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	g, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.model)
	assert.EqualValues(t, defaultMaxTokens, g.maxTokens)
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t,
		"[2025-04-02] The light was thin.\n[2025-04-01] Noise has been constant.",
		FormatContext(entries),
	)
	assert.Empty(t, FormatContext(nil))
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", `["a","b"]`, []string{"a", "b"}},
		{"fenced", "```json\n[\"a\"]\n```", []string{"a"}},
		{"capped", `["a","b","c","d"]`, []string{"a", "b", "c"}},
		{"blank", "  ", nil},
		{"empty array", `[]`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseResponse(`{"questions": []}`)
	assert.Error(t, err)
}

func newTestServer(t *testing.T, status int, text string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"down"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         DefaultModel,
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": text}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var seen map[string]any
	srv := newTestServer(t, http.StatusOK, `["What does the darkness offer you?"]`, &seen)

	g, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/"}, option.WithMaxRetries(0))
	require.NoError(t, err)

	patterns, err := g.Generate(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, []string{"What does the darkness offer you?"}, patterns)

	assert.Equal(t, DefaultModel, seen["model"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Contains(t, mustJSON(t, messages[0]), "[2025-04-02] The light was thin.")
}

func TestGenerateAPIError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, "", nil)

	g, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/"}, option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), entries)
	assert.Error(t, err)
}

func TestGenerateNoEntries(t *testing.T) {
	g, err := New(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1/"})
	require.NoError(t, err)

	patterns, err := g.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
