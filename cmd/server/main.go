// Package main runs the JSON document store consumed by the attendance
// engine: GET and PUT on /api/semesters, /api/subjects, /api/timetables and
// /api/reminders, backed by memory, files, PostgreSQL or Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/attendance-hub/attendance-tracker/config"
	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/bootstrap"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/persistence/filestore"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/persistence/postgres"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/persistence/redis"
	httpserver "github.com/attendance-hub/attendance-tracker/internal/interface/http"
	"github.com/attendance-hub/attendance-tracker/internal/interface/http/handlers"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg).With(logger.Component("server"))
	defer func() { _ = log.Sync() }()

	log.Info("starting attendance store server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("backend", cfg.Server.Backend),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DOCUMENT BACKEND
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if cfg.Server.HealthCheckTimeout > 0 {
		health.SetTimeout(cfg.Server.HealthCheckTimeout)
	}

	backend, closeBackend, err := openBackend(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeBackend()

	documents := storage.NewService(backend, log)
	if err := documents.Prepare(ctx); err != nil {
		log.Warn("legacy migration pending, retried on first request", logger.Err(err))
	}
	health.SetReadyGate(documents.Migrated)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.MaxBodyBytes = cfg.Server.MaxBodyBytes
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Documents:     documents,
		HealthChecker: health,
		Logger:        log,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("shutdown completed successfully")
	return nil
}

// openBackend connects the configured document backend and registers its
// health check.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger, health *handlers.CompositeHealthChecker) (storage.Backend, func(), error) {
	switch cfg.Server.Backend {
	case config.BackendMemory:
		log.Warn("memory backend selected, documents are lost on exit")
		return storage.NewMemoryBackend(), func() {}, nil

	case config.BackendPostgres:
		conn, err := postgres.NewConnection(ctx, bootstrap.PostgresConfig(cfg), log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		health.AddCheck("postgres", handlers.NewPingCheck(conn))

		repo := postgres.NewDocumentRepository(conn)
		if keep := cfg.Database.HistoryRetention; keep > 0 {
			if n, err := repo.PruneHistory(ctx, keep); err != nil {
				log.Warn("history prune failed", logger.Err(err))
			} else if n > 0 {
				log.Info("pruned document history", logger.Int64("rows", n))
			}
		}
		return repo, conn.Close, nil

	case config.BackendRedis:
		cache, err := redis.NewCache(ctx, bootstrap.RedisConfig(cfg), log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		health.AddCheck("redis", handlers.NewPingCheck(cache))
		return redis.NewDocumentStore(cache, log), func() { _ = cache.Close() }, nil

	default:
		if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		health.AddCheck("data_dir", func(context.Context) error {
			_, err := os.Stat(cfg.Server.DataDir)
			return err
		})
		log.Info("serving documents from directory", logger.String("dir", cfg.Server.DataDir))
		return filestore.New(cfg.Server.DataDir), func() {}, nil
	}
}
