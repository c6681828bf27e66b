package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/config"
	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	httpserver "github.com/attendance-hub/attendance-tracker/internal/interface/http"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

func newTestStore(t *testing.T) (*storage.MemoryBackend, *config.Config) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	srv := httpserver.NewServer(httpserver.DefaultConfig(), httpserver.Dependencies{
		Documents: storage.NewService(backend, nil),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return backend, &config.Config{
		App:   config.AppConfig{Location: time.UTC},
		Store: config.StoreConfig{BaseURL: ts.URL, RequestTimeout: time.Second},
		Sync: config.SyncConfig{
			Window:       time.Hour,
			SaveTimeout:  time.Second,
			CacheBackend: config.CacheNone,
		},
	}
}

func runCmd(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), cfg, logger.Nop(), args, &out)
	return out.String(), err
}

func TestRun_MutationsArePersisted(t *testing.T) {
	backend, cfg := newTestStore(t)
	ctx := context.Background()

	out, err := runCmd(t, cfg, "add-subject", "-type", "lab", "Networks", "Lab")
	require.NoError(t, err)
	assert.Equal(t, "networks_lab\n", out)

	body, err := backend.Read(ctx, document.Subjects)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"networks_lab"`)

	out, err = runCmd(t, cfg, "add-reminder", "-date", "2026-03-02", "-time", "09:30", "Submit", "report")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	body, err = backend.Read(ctx, document.Reminders)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Submit report")

	_, err = runCmd(t, cfg, "mark", "2026-03-02", "holiday")
	require.NoError(t, err)
	body, err = backend.Read(ctx, document.Semesters)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"dayType":"holiday"`)
}

func TestRun_Report(t *testing.T) {
	_, cfg := newTestStore(t)

	out, err := runCmd(t, cfg, "report")
	require.NoError(t, err)
	assert.Contains(t, out, `"semesterId": "sem2"`)
}

func TestRun_Usage(t *testing.T) {
	_, cfg := newTestStore(t)

	tests := [][]string{
		nil,
		{"help"},
		{"frobnicate"},
		{"delete-semester"},
		{"mark", "2026-03-02"},
		{"add-subject"},
	}
	for _, args := range tests {
		_, err := runCmd(t, cfg, args...)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestRun_DomainErrorsSurface(t *testing.T) {
	_, cfg := newTestStore(t)

	_, err := runCmd(t, cfg, "delete-semester", "sem2")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errUsage)
}

func TestRun_RefusesMutationWithoutRemote(t *testing.T) {
	cfg := &config.Config{
		App:   config.AppConfig{Location: time.UTC},
		Store: config.StoreConfig{BaseURL: "http://127.0.0.1:1", RequestTimeout: 200 * time.Millisecond},
		Sync:  config.SyncConfig{Window: time.Hour, SaveTimeout: time.Second, CacheBackend: config.CacheNone},
	}

	_, err := runCmd(t, cfg, "add-subject", "Physics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to modify built-in data")

	out, err := runCmd(t, cfg, "report")
	require.NoError(t, err)
	assert.Contains(t, out, `"semesterId": "sem2"`)
}
