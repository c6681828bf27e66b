// Package bootstrap turns a config.Config into the wired components shared
// by the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/attendance-hub/attendance-tracker/config"
	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/external/jsonstore"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/localcache"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/persistence/postgres"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/persistence/redis"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/syncer"
	"github.com/attendance-hub/attendance-tracker/pkg/circuitbreaker"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AMBIENT
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger. Debug mode lowers the level to debug
// unless LOG_LEVEL says otherwise.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug && os.Getenv("LOG_LEVEL") == "" {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}

// PostgresConfig maps database settings onto the pgx pool wrapper.
func PostgresConfig(cfg *config.Config) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = cfg.Database.URL
	if cfg.Database.MaxConns > 0 {
		pg.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns >= 0 {
		pg.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnectTimeout > 0 {
		pg.ConnectTimeout = cfg.Database.ConnectTimeout
	}
	return pg
}

// RedisConfig maps redis settings onto the go-redis wrapper.
func RedisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.Redis.WriteTimeout
	}
	return rc
}

// StoreClientConfig maps the remote store settings onto the client.
func StoreClientConfig(cfg *config.Config, log *logger.Logger) jsonstore.ClientConfig {
	cc := jsonstore.DefaultClientConfig(cfg.Store.BaseURL)
	if cfg.Store.RequestTimeout > 0 {
		cc.Timeout = cfg.Store.RequestTimeout
	}
	cb := circuitbreaker.DefaultConfig("jsonstore")
	if cfg.Store.CircuitBreakerThreshold > 0 {
		cb.FailureThreshold = cfg.Store.CircuitBreakerThreshold
	}
	if cfg.Store.CircuitBreakerTimeout > 0 {
		cb.Timeout = cfg.Store.CircuitBreakerTimeout
	}
	cc.CircuitBreaker = cb
	cc.Logger = log
	return cc
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine is the attendance store linked to the remote JSON store.
type Engine struct {
	Store       *store.Store
	Client      *jsonstore.Client
	Coordinator *syncer.Coordinator

	// Redis is set when the fallback cache or change watching uses it.
	Redis *redis.Cache

	log *logger.Logger
}

// OpenEngine wires a store, client, fallback cache and coordinator. It does
// not load; call Coordinator.Load. An unreachable Redis degrades to the file
// cache.
func OpenEngine(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{log: log}

	e.Store = store.NewWithDefaults(store.Options{
		Location: cfg.App.Location,
		Logger:   log,
	})
	e.Client = jsonstore.NewClient(StoreClientConfig(cfg, log))

	if cfg.Sync.CacheBackend == config.CacheRedis || cfg.Scheduler.WatchChanges {
		cache, err := redis.NewCache(ctx, RedisConfig(cfg), log)
		if err != nil {
			log.Warn("redis unavailable, continuing without it", logger.Err(err))
		} else {
			e.Redis = cache
		}
	}

	syncCfg := syncer.Config{
		Window:      cfg.Sync.Window,
		SaveTimeout: cfg.Sync.SaveTimeout,
		Logger:      log,
	}
	switch {
	case cfg.Sync.CacheBackend == config.CacheNone:
	case cfg.Sync.CacheBackend == config.CacheRedis && e.Redis != nil:
		syncCfg.Cache = redis.NewTimetableCache(e.Redis)
	default:
		if cfg.Sync.CacheDir == "" {
			return nil, fmt.Errorf("open engine: fallback cache directory is empty")
		}
		syncCfg.Cache = localcache.NewFileCache(cfg.Sync.CacheDir)
	}

	e.Coordinator = syncer.NewCoordinator(e.Store, e.Client, syncCfg)
	return e, nil
}

// Close flushes dirty resources and releases connections.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Coordinator.Flush(ctx)
	if err != nil {
		e.log.Warn("final flush incomplete", logger.Err(err))
	}
	e.Coordinator.Close()
	if e.Redis != nil {
		if cerr := e.Redis.Close(); cerr != nil {
			e.log.Warn("close redis", logger.Err(cerr))
		}
	}
	return err
}
