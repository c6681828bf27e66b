// Package main runs the attendance engine as a long-lived process.
//
// The worker:
//   - loads state from the remote JSON store and keeps it synced
//   - fires reminders at their trigger time and removes them afterwards
//   - reloads state periodically while nothing is pending
//   - logs a daily attendance risk report
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attendance-hub/attendance-tracker/config"
	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/bootstrap"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/scheduler"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/scheduler/jobs"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/syncer"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// changeSettle is how long remote change notifications are coalesced before
// a reload.
const changeSettle = 2 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
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

	log := bootstrap.NewLogger(cfg).With(logger.Component("worker"))
	defer func() { _ = log.Sync() }()

	log.Info("starting attendance worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Location.String()),
		logger.String("store", cfg.Store.BaseURL),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ENGINE AND INITIAL LOAD
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := bootstrap.OpenEngine(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		_ = engine.Close(closeCtx)
	}()

	if _, err := engine.Coordinator.Load(ctx); err != nil {
		log.Warn("starting on built-in data", logger.Err(err))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REMINDERS
	// ─────────────────────────────────────────────────────────────────────────
	reminders := scheduler.NewReminderScheduler(scheduler.NewLogAgent(log), scheduler.ReminderConfig{
		Location: cfg.App.Location,
		OnFired:  engine.Store.RemoveReminderFrom,
		Logger:   log,
	})
	defer reminders.Stop()

	unsubscribe := engine.Store.Subscribe(func(change store.Change, st store.State) {
		if change.Replaced || change.Touches(document.Reminders) {
			reminders.Sync(st.RemindersBySemester)
		}
	})
	defer unsubscribe()
	reminders.Sync(engine.Store.Snapshot().RemindersBySemester)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CRON JOBS
	// ─────────────────────────────────────────────────────────────────────────
	cron := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	reload := jobs.NewReloadStateJob(engine.Coordinator, log)

	if cfg.Scheduler.Enabled {
		if err := cron.Register(reload, cfg.Scheduler.ReloadCron); err != nil {
			return fmt.Errorf("register %s: %w", reload.Name(), err)
		}
		risk := jobs.NewRiskReportJob(engine.Store, log)
		if err := cron.Register(risk, cfg.Scheduler.RiskReportCron); err != nil {
			return fmt.Errorf("register %s: %w", risk.Name(), err)
		}
		if err := cron.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = cron.Stop() }()

		for _, info := range cron.ListJobs() {
			log.Info("job scheduled",
				logger.String("job", info.Name),
				logger.String("schedule", info.Schedule),
				logger.Time("next_run", info.NextRun),
			)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REMOTE CHANGE NOTIFICATIONS (redis backend)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.WatchChanges && engine.Redis != nil {
		settle := syncer.NewFlusher(changeSettle, func(struct{}) {
			if err := reload.Run(ctx); err != nil {
				log.Warn("reload after remote change failed", logger.Err(err))
			}
		})
		defer settle.Stop()

		go func() {
			err := engine.Redis.WatchChanges(ctx, func(name document.Name) {
				log.Debug("remote document changed", logger.Resource(string(name)))
				settle.Mark(struct{}{})
			})
			if err != nil && ctx.Err() == nil {
				log.Warn("change watcher stopped", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("attendance worker is running")
	<-ctx.Done()
	log.Info("received shutdown signal, flushing pending changes",
		logger.Duration("timeout", cfg.App.ShutdownTimeout))
	return nil
}
