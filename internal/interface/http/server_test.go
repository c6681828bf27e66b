package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/external/jsonstore"
	"github.com/attendance-hub/attendance-tracker/internal/interface/http/handlers"
)

func newTestServer(t *testing.T, checker handlers.HealthChecker) *httptest.Server {
	t.Helper()
	svc := storage.NewService(storage.NewMemoryBackend(), nil)
	srv := NewServer(DefaultConfig(), Dependencies{Documents: svc, HealthChecker: checker})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (int, string, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw), resp.Header
}

func TestGetDocument_ServesDefaults(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/api/semesters", `{"currentSemesterId":"sem2","semesters":[]}`},
		{"/api/subjects", `{"subjectsBySemester":{}}`},
		{"/api/timetables", `{"timetables":{}}`},
		{"/api/reminders", `{"reminders":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body, hdr := do(t, http.MethodGet, ts.URL+tt.path, "")
			assert.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, tt.want, body)
			assert.Equal(t, "no-store", hdr.Get("Cache-Control"))
			assert.NotEmpty(t, hdr.Get("X-Request-ID"))
		})
	}
}

func TestPutDocument_ReturnsCanonicalPayload(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body, _ := do(t, http.MethodPut, ts.URL+"/api/semesters", `{"semesters":[{"id":"s1","name":"S1"}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"currentSemesterId":"s1","semesters":[{"id":"s1","name":"S1","attendanceData":[]}]}`, body)

	code, body, _ = do(t, http.MethodGet, ts.URL+"/api/semesters", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"currentSemesterId":"s1"`)
}

func TestPutDocument_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body string
		code int
		want string
	}{
		{"not json", "/api/reminders", "{", http.StatusBadRequest, `{"error":"Invalid JSON payload."}`},
		{"semesters not array", "/api/semesters", `{"semesters":{}}`, http.StatusBadRequest, `{"error":"semesters must be an array."}`},
		{"subjects not object", "/api/subjects", `{"subjectsBySemester":[]}`, http.StatusBadRequest, `{"error":"subjectsBySemester must be an object."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := do(t, http.MethodPut, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.code, code)
			assert.JSONEq(t, tt.want, body)
		})
	}
}

func TestUnknownRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/timetable", "/nothing"} {
		code, body, _ := do(t, http.MethodGet, ts.URL+path, "")
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.JSONEq(t, `{"error":"Not found"}`, body)
	}

	// Unrouted methods fall through to the catch-all.
	code, _, _ := do(t, http.MethodPost, ts.URL+"/api/semesters", "{}")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPayloadTooLarge(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryBackend(), nil)
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	ts := httptest.NewServer(NewServer(cfg, Dependencies{Documents: svc}).Handler())
	t.Cleanup(ts.Close)

	code, body, _ := do(t, http.MethodPut, ts.URL+"/api/reminders", `{"reminders":{"sem1":[]}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.JSONEq(t, `{"error":"Payload too large."}`, body)
}

func TestHealthAndReady(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	var ready atomic.Bool
	checker.SetReadyGate(ready.Load)
	ts := newTestServer(t, checker)

	code, _, _ := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, code)
	code, _, _ = do(t, http.MethodGet, ts.URL+"/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	ready.Store(true)
	code, _, _ = do(t, http.MethodGet, ts.URL+"/ready", "")
	assert.Equal(t, http.StatusOK, code)

	checker.AddCheck("backend", func(context.Context) error { return errors.New("down") })
	code, body, _ := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "Some checks failed: backend")
}

func TestHealth_CheckTimeout(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.SetTimeout(20 * time.Millisecond)
	checker.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}

func TestReady_WaitsForMigration(t *testing.T) {
	svc := storage.NewService(storage.NewMemoryBackend(), nil)
	checker := handlers.NewCompositeHealthChecker("test")
	checker.SetReadyGate(svc.Migrated)
	srv := NewServer(DefaultConfig(), Dependencies{Documents: svc, HealthChecker: checker})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	code, _, _ := do(t, http.MethodGet, ts.URL+"/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	require.NoError(t, svc.Prepare(context.Background()))
	code, _, _ = do(t, http.MethodGet, ts.URL+"/ready", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/semesters", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

// The engine's client and this server agree on paths and shapes.
func TestClientAgainstServer(t *testing.T) {
	ts := newTestServer(t, nil)
	client := jsonstore.NewClient(jsonstore.DefaultClientConfig(ts.URL))
	ctx := context.Background()

	for _, name := range document.All {
		doc, err := client.Load(ctx, name)
		require.NoError(t, err, name)
		require.NoError(t, client.Save(ctx, name, doc), name)
	}
	resolved := client.Status().Resolved
	for _, name := range document.All {
		assert.Equal(t, "/api/"+string(name)+" (canonical)", resolved[string(name)])
	}
}
