// Package jobs contains the periodic jobs run by the worker's scheduler.
package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/syncer"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RELOAD STATE JOB
// ══════════════════════════════════════════════════════════════════════════════

// Loader is the part of the sync coordinator the reload job needs.
type Loader interface {
	Dirty() bool
	Load(ctx context.Context) (syncer.LoadReport, error)
}

// ReloadStats describes the last run.
type ReloadStats struct {
	At       time.Time
	Skipped  bool
	Defaults bool
	Duration time.Duration
}

// ReloadStateJob re-reads every document from the remote store so edits made
// elsewhere show up. It never runs over unsaved local edits.
type ReloadStateJob struct {
	loader Loader
	log    *logger.Logger

	lastStats atomic.Pointer[ReloadStats]
}

// NewReloadStateJob creates the job.
func NewReloadStateJob(loader Loader, log *logger.Logger) *ReloadStateJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ReloadStateJob{loader: loader, log: log.With(logger.Component("reload_state"))}
}

func (j *ReloadStateJob) Name() string { return "reload_state" }

func (j *ReloadStateJob) Description() string {
	return "Reload all documents from the remote store when nothing is pending"
}

// Run reloads unless some resource is dirty. A failed reload keeps the
// current state and is reported as the job error; a reload overtaken by a
// local edit counts as skipped.
func (j *ReloadStateJob) Run(ctx context.Context) error {
	start := time.Now()
	stats := &ReloadStats{At: start}
	defer func() {
		stats.Duration = time.Since(start)
		j.lastStats.Store(stats)
	}()

	if j.loader.Dirty() {
		stats.Skipped = true
		j.log.Debug("unsaved changes pending, reload skipped")
		return nil
	}

	report, err := j.loader.Load(ctx)
	if errors.Is(err, syncer.ErrReloadSuperseded) {
		stats.Skipped = true
		j.log.Debug("local edit during reload, reload skipped")
		return nil
	}
	stats.Defaults = report.Defaults
	return err
}

// LastStats returns the stats of the last run, or nil.
func (j *ReloadStateJob) LastStats() *ReloadStats {
	return j.lastStats.Load()
}
