package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/bucket"
	"github.com/pbaille/journal/internal/domain"
	"github.com/pbaille/journal/internal/journal"
	"github.com/pbaille/journal/internal/mirror"
	"github.com/pbaille/journal/internal/store"
)

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

type stubGenerator struct {
	patterns []string
	err      error
}

func (g stubGenerator) Generate(ctx context.Context, entries []domain.Entry) ([]string, error) {
	return g.patterns, g.err
}

type testServer struct {
	*Server
}

type failingKV struct {
	store.KV
	getErr error
}

func (f failingKV) Get(key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.KV.Get(key)
}

func setupTestServer(t *testing.T, gen mirror.Generator) *testServer {
	t.Helper()
	return setupTestServerWithKV(t, store.NewMemory(), gen)
}

func setupTestServerWithKV(t *testing.T, kv store.KV, gen mirror.Generator) *testServer {
	t.Helper()
	nowFn := func() time.Time { return now }

	entries, reflections := journal.Open(kv, journal.WithClock(nowFn))
	m := mirror.New(entries, reflections, gen, mirror.WithClock(nowFn))

	s := New(entries, reflections, m, zap.NewNop(), Config{
		Addr:       ":0",
		DemoCount:  50,
		DemoWindow: 120 * 24 * time.Hour,
		Now:        nowFn,
	})
	return &testServer{Server: s}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestAddAndListEntries(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/entries", `{"text": "  I noticed the quiet.  "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.Entry](t, rec)
	assert.Equal(t, "I noticed the quiet.", created.Text)

	rec = ts.do(t, http.MethodPost, "/entries", `{"text": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/entries", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/entries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Entries []domain.Entry `json:"entries"`
		Count   int            `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Entries[0].ID)
}

func TestFeedGroupsByBucket(t *testing.T) {
	ts := setupTestServer(t, nil)

	payload := fmt.Sprintf(`[
		{"id": "a", "timestamp": %q, "text": "recent"},
		{"id": "b", "timestamp": %q, "text": "older"},
		{"id": "c", "timestamp": %q, "text": "oldest"}
	]`,
		now.Add(-10*time.Minute).Format(time.RFC3339),
		now.Add(-30*time.Hour).Format(time.RFC3339),
		now.Add(-31*time.Hour).Format(time.RFC3339),
	)
	rec := ts.do(t, http.MethodPost, "/import", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/feed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[struct {
		Groups []bucket.Group `json:"groups"`
	}](t, rec)
	require.Len(t, feed.Groups, 2)
	assert.Equal(t, bucket.JustNow, feed.Groups[0].Label)
	assert.Equal(t, bucket.Yesterday, feed.Groups[1].Label)
	assert.Len(t, feed.Groups[1].Entries, 2)
}

func TestFeedEmpty(t *testing.T) {
	ts := setupTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/feed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"groups": []}`, rec.Body.String())
}

func TestImportResponses(t *testing.T) {
	ts := setupTestServer(t, nil)
	payload := `[{"id": "x", "timestamp": "2025-08-01T10:00:00Z", "text": "kept"}]`

	rec := ts.do(t, http.MethodPost, "/import", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ImportResponse{Added: 1, Message: "Restored 1 memories."}, decode[ImportResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/import", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ImportResponse{Message: "No new entries found."}, decode[ImportResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/import", `<html>`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file was unreadable", decode[map[string]string](t, rec)["error"])
}

func TestExport(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.do(t, http.MethodPost, "/entries", `{"text": "kept"}`)

	rec := ts.do(t, http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="untitled-journal-export-2025-09-01.json"`,
		rec.Header().Get("Content-Disposition"))

	var exported []domain.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	require.Len(t, exported, 1)
	assert.Equal(t, "kept", exported[0].Text)
}

func TestExportStoreFailure(t *testing.T) {
	ts := setupTestServerWithKV(t, failingKV{KV: store.NewMemory(), getErr: errors.New("disk gone")}, nil)

	rec := ts.do(t, http.MethodGet, "/export", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "disk gone")
}

func TestDemoAndForget(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/demo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, decode[ImportResponse](t, rec).Added)

	rec = ts.do(t, http.MethodGet, "/reflection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mirror.PhaseIdle, decode[mirror.Status](t, rec).Phase)

	rec = ts.do(t, http.MethodDelete, "/data", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/entries", "")
	assert.JSONEq(t, `{"entries": [], "count": 0}`, rec.Body.String())
}

func seedEntries(t *testing.T, ts *testServer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := ts.do(t, http.MethodPost, "/entries", fmt.Sprintf(`{"text": "fragment %d"}`, i))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestReflectionLifecycle(t *testing.T) {
	ts := setupTestServer(t, stubGenerator{patterns: []string{"Who is the one waiting?"}})

	rec := ts.do(t, http.MethodPost, "/reflection", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/reflection", "")
	status := decode[mirror.Status](t, rec)
	assert.Equal(t, mirror.PhaseLocked, status.Phase)
	assert.Equal(t, 0, status.EntryCount)
	assert.Equal(t, 30, status.Threshold)

	seedEntries(t, ts, 30)

	rec = ts.do(t, http.MethodPost, "/reflection", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	reflection := decode[domain.Reflection](t, rec)
	assert.Equal(t, domain.ReflectionLexical, reflection.Type)
	assert.Equal(t, []string{"Who is the one waiting?"}, reflection.Patterns)

	rec = ts.do(t, http.MethodPost, "/reflection", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = ts.do(t, http.MethodGet, "/reflections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Reflections []domain.Reflection `json:"reflections"`
	}](t, rec)
	require.Len(t, list.Reflections, 1)
	assert.Equal(t, reflection.ID, list.Reflections[0].ID)
}

func TestReflectionUnavailable(t *testing.T) {
	ts := setupTestServer(t, stubGenerator{err: errors.New("no key")})
	seedEntries(t, ts, 30)

	rec := ts.do(t, http.MethodPost, "/reflection", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "The mirror is cloudy right now.", decode[map[string]string](t, rec)["error"])
}

func TestReflectErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{mirror.ErrLocked, http.StatusForbidden},
		{mirror.ErrTooSoon, http.StatusTooManyRequests},
		{mirror.ErrInFlight, http.StatusConflict},
		{fmt.Errorf("%w: boom", mirror.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("upsert reflection from epoch 0: %w", journal.ErrCleared), http.StatusConflict},
		{errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := reflectError(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.do(t, http.MethodPost, "/entries", `{"text": "counted"}`)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "journal_entries_kept_total")
}
