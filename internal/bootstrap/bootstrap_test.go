package bootstrap

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/config"
	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	httpserver "github.com/attendance-hub/attendance-tracker/internal/interface/http"
)

func testConfig(baseURL, cacheDir string) *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "attendance-tracker", Location: time.UTC},
		Store: config.StoreConfig{BaseURL: baseURL, RequestTimeout: time.Second, CircuitBreakerThreshold: 3},
		Sync: config.SyncConfig{
			Window:       20 * time.Millisecond,
			SaveTimeout:  time.Second,
			CacheBackend: config.CacheFile,
			CacheDir:     cacheDir,
		},
		Database: config.DatabaseConfig{URL: "postgres://u:p@db:5432/x", MaxConns: 9, ConnMaxLifetime: time.Minute},
		Redis:    config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 7},
	}
}

func TestPostgresConfig(t *testing.T) {
	pg := PostgresConfig(testConfig("", ""))
	assert.Equal(t, "postgres://u:p@db:5432/x", pg.URL)
	assert.Equal(t, int32(9), pg.MaxConns)
	assert.Equal(t, time.Minute, pg.MaxConnLifetime)
	assert.Equal(t, 5*time.Second, pg.ConnectTimeout)
}

func TestRedisConfig(t *testing.T) {
	rc := RedisConfig(testConfig("", ""))
	assert.Equal(t, "cache:6380", rc.Addr())
	assert.Equal(t, 2, rc.DB)
	assert.Equal(t, 7, rc.PoolSize)
}

func TestStoreClientConfig(t *testing.T) {
	cc := StoreClientConfig(testConfig("http://store.test", ""), nil)
	assert.Equal(t, "http://store.test", cc.BaseURL)
	assert.Equal(t, time.Second, cc.Timeout)
	assert.Equal(t, 3, cc.CircuitBreaker.FailureThreshold)
}

func TestEngine_LoadMutateClose(t *testing.T) {
	backend := storage.NewMemoryBackend()
	srv := httpserver.NewServer(httpserver.DefaultConfig(), httpserver.Dependencies{
		Documents: storage.NewService(backend, nil),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := testConfig(ts.URL, t.TempDir())
	ctx := context.Background()

	engine, err := OpenEngine(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, engine.Redis)

	report, err := engine.Coordinator.Load(ctx)
	require.NoError(t, err)
	assert.False(t, report.Defaults)

	_, err = engine.Store.AddSubject("Compiler Design", attendance.SubjectTheory)
	require.NoError(t, err)
	assert.True(t, engine.Coordinator.Dirty())

	require.NoError(t, engine.Close(ctx))
	assert.False(t, engine.Coordinator.Dirty())

	body, err := backend.Read(ctx, "subjects")
	require.NoError(t, err)
	assert.Contains(t, string(body), "compiler_design")
}

func TestOpenEngine_NoCacheDir(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", "")
	_, err := OpenEngine(context.Background(), cfg, nil)
	assert.Error(t, err)
}
