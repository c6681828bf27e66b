// Package syncer persists store changes to the remote document store. Every
// mutation marks the resources it touched dirty; after a quiet window each
// dirty resource is written once with its full canonical document.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/external/jsonstore"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// RemoteStore reads and fully replaces resource documents.
type RemoteStore interface {
	Load(ctx context.Context, name document.Name) (any, error)
	Save(ctx context.Context, name document.Name, doc any) error
}

// FallbackCache keeps the last known timetables locally.
type FallbackCache interface {
	SaveTimetables(ctx context.Context, doc document.TimetablesDocument) error
	LoadTimetables(ctx context.Context) (document.TimetablesDocument, bool, error)
}

// Config configures a Coordinator.
type Config struct {
	// Window is the debounce period (default 800ms).
	Window time.Duration

	// SaveTimeout bounds one background save.
	SaveTimeout time.Duration

	// Cache mirrors timetables; nil disables mirroring.
	Cache FallbackCache

	Logger *logger.Logger
}

// ErrReloadSuperseded is returned by a reload that was discarded because local
// changes were made or saved while it read the remote store.
var ErrReloadSuperseded = errors.New("reload superseded by local changes")

// ResourceStatus is a snapshot of one resource's sync state.
type ResourceStatus struct {
	Name        document.Name `json:"name"`
	Dirty       bool          `json:"dirty"`
	Available   bool          `json:"available"`
	LastError   string        `json:"lastError,omitempty"`
	LastSavedAt time.Time     `json:"lastSavedAt,omitempty"`
	Saves       int           `json:"saves"`
	Failures    int           `json:"failures"`
}

type resourceState struct {
	dirty       bool
	available   bool
	saving      int
	lastErr     error
	lastSavedAt time.Time
	saves       int
	failures    int

	// saveMu keeps saves of one resource in order.
	saveMu sync.Mutex
}

// LoadReport describes the outcome of Load.
type LoadReport struct {
	// Defaults is true when the remote load failed and built-in data is used.
	Defaults bool
	// CachedTimetables is true when timetables came from the fallback cache.
	CachedTimetables bool
	// Unsupported lists resources whose endpoints do not exist.
	Unsupported []document.Name
}

// Coordinator links a Store to a RemoteStore.
type Coordinator struct {
	store   *store.Store
	remote  RemoteStore
	cache   FallbackCache
	flusher *Flusher[document.Name]
	timeout time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	loaded bool
	closed bool
	res    map[document.Name]*resourceState

	unsubscribe func()
}

// NewCoordinator creates a coordinator and subscribes it to s. Changes are
// ignored until the first Load completes.
func NewCoordinator(s *store.Store, remote RemoteStore, cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 15 * time.Second
	}

	c := &Coordinator{
		store:   s,
		remote:  remote,
		cache:   cfg.Cache,
		timeout: cfg.SaveTimeout,
		log:     cfg.Logger.With(logger.Component("syncer")),
		res:     make(map[document.Name]*resourceState, len(document.All)),
	}
	for _, name := range document.All {
		c.res[name] = &resourceState{available: true}
	}
	c.flusher = NewFlusher(cfg.Window, c.flushInBackground)
	c.unsubscribe = s.Subscribe(c.onChange)
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE TRACKING
// ══════════════════════════════════════════════════════════════════════════════

func (c *Coordinator) onChange(change store.Change, _ store.State) {
	if change.Replaced {
		return
	}

	c.mu.Lock()
	if !c.loaded || c.closed {
		c.mu.Unlock()
		return
	}
	arm := make([]document.Name, 0, len(c.res))
	for _, name := range change.Resources {
		if rs, ok := c.res[name]; ok {
			rs.dirty = true
		}
	}
	for _, name := range document.All {
		rs := c.res[name]
		if !rs.dirty || !rs.available {
			continue
		}
		// Touched resources restart their window; failed ones are re-armed.
		if change.Touches(name) || !c.flusher.Pending(name) {
			arm = append(arm, name)
		}
	}
	c.mu.Unlock()

	for _, name := range arm {
		c.flusher.Mark(name)
	}
}

func (c *Coordinator) flushInBackground(name document.Name) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.save(ctx, name)
}

// save writes the current document of name once.
func (c *Coordinator) save(ctx context.Context, name document.Name) error {
	c.mu.Lock()
	rs := c.res[name]
	if c.closed || !rs.available {
		c.mu.Unlock()
		return nil
	}
	rs.dirty = false
	rs.saving++
	c.mu.Unlock()

	rs.saveMu.Lock()
	defer rs.saveMu.Unlock()

	ds := c.store.Snapshot().Dataset()
	doc := documentOf(ds, name)

	if name == document.Timetables && c.cache != nil {
		if err := c.cache.SaveTimetables(ctx, ds.Timetables); err != nil {
			c.log.Warn("timetables cache write failed", logger.Err(err))
		}
	}

	start := time.Now()
	err := c.remote.Save(ctx, name, doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	rs.saving--
	if err == nil {
		rs.lastErr = nil
		rs.lastSavedAt = time.Now()
		rs.saves++
		c.log.Debug("resource saved", logger.Resource(string(name)), logger.Latency(time.Since(start)))
		return nil
	}

	rs.failures++
	rs.lastErr = err
	rs.dirty = true
	if jsonstore.IsUnsupported(err) {
		rs.available = false
		c.log.Warn("remote endpoint unsupported, autosave disabled until reload",
			logger.Resource(string(name)), logger.Err(err))
	} else {
		c.log.Warn("resource save failed, will retry on next change",
			logger.Resource(string(name)), logger.Err(err))
	}
	return fmt.Errorf("save %s: %w", name, err)
}

func documentOf(ds document.Dataset, name document.Name) any {
	switch name {
	case document.Semesters:
		return ds.Semesters
	case document.Subjects:
		return ds.Subjects
	case document.Timetables:
		return ds.Timetables
	case document.Reminders:
		return ds.Reminders
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD / FLUSH / CLOSE
// ══════════════════════════════════════════════════════════════════════════════

// Load replaces the store with the remote documents.
//
// On the first call a remote that cannot be read leaves the store on the
// built-in defaults (with cached timetables when available) and the error is
// returned; the store is usable either way. Later calls are reloads: a failed
// reload returns the error and changes nothing, and a reload that races a
// local edit or an in-flight save returns ErrReloadSuperseded and keeps the
// local state.
func (c *Coordinator) Load(ctx context.Context) (LoadReport, error) {
	c.mu.Lock()
	initial := !c.loaded
	c.mu.Unlock()
	version := c.store.Version()

	var (
		report  LoadReport
		loadErr error
		loaded  = make(map[document.Name]any, len(document.All))
	)
	for _, name := range document.All {
		doc, err := c.remote.Load(ctx, name)
		switch {
		case err == nil:
			loaded[name] = doc
		case jsonstore.IsUnsupported(err):
			report.Unsupported = append(report.Unsupported, name)
		default:
			loadErr = errors.Join(loadErr, fmt.Errorf("load %s: %w", name, err))
		}
		if loadErr != nil {
			break
		}
	}

	if loadErr != nil && !initial {
		c.log.Warn("reload failed, keeping current state", logger.Err(loadErr))
		return LoadReport{}, loadErr
	}

	ds := document.Defaults()
	if loadErr == nil {
		applyLoaded(&ds, loaded)
	} else {
		report.Defaults = true
		report.Unsupported = nil
		loaded = map[document.Name]any{}
		c.log.Error("remote load failed, using built-in data", logger.Err(loadErr))
	}

	if _, ok := loaded[document.Timetables]; ok {
		if c.cache != nil {
			if err := c.cache.SaveTimetables(ctx, ds.Timetables); err != nil {
				c.log.Warn("timetables cache write failed", logger.Err(err))
			}
		}
	} else if c.cache != nil {
		cached, ok, err := c.cache.LoadTimetables(ctx)
		if err != nil {
			c.log.Warn("timetables cache read failed", logger.Err(err))
		}
		if ok {
			ds.Timetables = cached
			report.CachedTimetables = true
		}
	}

	c.mu.Lock()
	if !initial && c.pendingLocked() {
		c.mu.Unlock()
		c.log.Info("local changes pending, reload discarded")
		return LoadReport{}, ErrReloadSuperseded
	}
	c.flusher.CancelAll()
	c.mu.Unlock()

	next := store.FromDataset(ds)
	if initial {
		c.store.Replace(next)
	} else if !c.store.ReplaceIfVersion(next, version) {
		c.log.Info("state changed during reload, reload discarded")
		return LoadReport{}, ErrReloadSuperseded
	}

	c.mu.Lock()
	c.loaded = true
	if loadErr == nil {
		for _, name := range document.All {
			rs := c.res[name]
			rs.dirty = false
			rs.available = true
			rs.lastErr = nil
		}
		for _, name := range report.Unsupported {
			c.res[name].available = false
		}
	}
	c.mu.Unlock()

	c.log.Info("state loaded",
		logger.Bool("defaults", report.Defaults),
		logger.Bool("cached_timetables", report.CachedTimetables),
		logger.Int("unsupported", len(report.Unsupported)),
	)
	return report, loadErr
}

// pendingLocked reports unsaved or in-flight work on a syncable resource.
func (c *Coordinator) pendingLocked() bool {
	for _, rs := range c.res {
		if rs.saving > 0 || (rs.dirty && rs.available) {
			return true
		}
	}
	return false
}

func applyLoaded(ds *document.Dataset, loaded map[document.Name]any) {
	if doc, ok := loaded[document.Semesters].(document.SemestersDocument); ok {
		ds.Semesters = doc
	}
	if doc, ok := loaded[document.Subjects].(document.SubjectsDocument); ok {
		ds.Subjects = doc
	}
	if doc, ok := loaded[document.Timetables].(document.TimetablesDocument); ok {
		ds.Timetables = doc
	}
	if doc, ok := loaded[document.Reminders].(document.RemindersDocument); ok {
		ds.Reminders = doc
	}
}

// Flush saves every dirty, available resource now, skipping the window.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	names := make([]document.Name, 0, len(c.res))
	for _, name := range document.All {
		if rs := c.res[name]; rs.dirty && rs.available {
			names = append(names, name)
		}
	}
	c.mu.Unlock()

	var errs error
	for _, name := range names {
		c.flusher.Cancel(name)
		errs = errors.Join(errs, c.save(ctx, name))
	}
	return errs
}

// Close stops tracking changes and drops pending windows.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
	c.flusher.Stop()
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status returns the state of every resource in load order.
func (c *Coordinator) Status() []ResourceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ResourceStatus, 0, len(c.res))
	for _, name := range document.All {
		rs := c.res[name]
		st := ResourceStatus{
			Name:        name,
			Dirty:       rs.dirty,
			Available:   rs.available,
			LastSavedAt: rs.lastSavedAt,
			Saves:       rs.saves,
			Failures:    rs.failures,
		}
		if rs.lastErr != nil {
			st.LastError = rs.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// Dirty reports whether any syncable resource has unsaved changes. Edits of
// resources whose endpoint is unsupported are not counted.
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rs := range c.res {
		if rs.dirty && rs.available {
			return true
		}
	}
	return false
}

// Loaded reports whether Load has completed at least once.
func (c *Coordinator) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}
