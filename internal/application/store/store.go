// Package store is the single source of truth for attendance data. It holds
// an immutable State snapshot, exposes every mutation as a method that
// publishes a new snapshot, and notifies subscribers with the resources each
// mutation touched.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

// Change describes one published snapshot.
type Change struct {
	// Op is the mutation name, e.g. "MarkDayStatus".
	Op string
	// Resources lists the persisted documents the mutation modified.
	Resources []document.Name
	// Replaced is true when the whole state was swapped by Replace (a load).
	// Replacements do not make anything dirty.
	Replaced bool
	// Version increases by one with every published snapshot.
	Version uint64
}

// Touches reports whether the change modified resource name.
func (c Change) Touches(name document.Name) bool {
	for _, r := range c.Resources {
		if r == name {
			return true
		}
	}
	return false
}

// Listener is called after each published snapshot, outside the store lock.
type Listener func(Change, State)

// Options configures a Store.
type Options struct {
	// Location is the timezone of calendar dates. Defaults to time.Local.
	Location *time.Location
	// Clock provides "today". Defaults to the system clock.
	Clock timeutil.Clock
	// Logger for mutation diagnostics. Defaults to a no-op logger.
	Logger *logger.Logger
}

// Store is the attendance state container. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	state     State
	version   uint64
	listeners map[int]Listener
	nextID    int

	viewMu      sync.Mutex
	view        CurrentSemester
	viewVersion uint64
	viewValid   bool

	loc   *time.Location
	clock timeutil.Clock
	log   *logger.Logger
}

// New creates a Store holding initial, normalized to the store invariants.
func New(initial State, opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Store{
		state:     initial.normalized(),
		listeners: make(map[int]Listener),
		loc:       opts.Location,
		clock:     opts.Clock,
		log:       opts.Logger.With(logger.Component("store")),
	}
}

// NewWithDefaults creates a Store holding the built-in dataset.
func NewWithDefaults(opts Options) *Store {
	return New(FromDataset(document.Defaults()), opts)
}

// Location returns the store's calendar timezone.
func (s *Store) Location() *time.Location { return s.loc }

// Today returns the current local calendar date.
func (s *Store) Today() string {
	return timeutil.Today(s.clock, s.loc)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Version returns the number of snapshots published so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers l for every future change and returns a function that
// removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Replace swaps the whole state, e.g. after loading from the remote store.
func (s *Store) Replace(st State) {
	_ = s.commit("Replace", nil, true, func(next *State) error {
		*next = st.normalized()
		return nil
	})
}

// ReplaceIfVersion swaps the whole state only if no snapshot was published
// since version. It reports whether the swap happened.
func (s *Store) ReplaceIfVersion(st State, version uint64) bool {
	err := s.commit("Replace", nil, true, func(next *State) error {
		if s.version != version {
			return errStaleVersion
		}
		*next = st.normalized()
		return nil
	})
	return err == nil
}

// commit runs fn on a copy of the current state and publishes the result.
// If fn fails, nothing is published.
func (s *Store) commit(op string, resources []document.Name, replaced bool, fn func(next *State) error) error {
	s.mu.Lock()
	next := s.state
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		s.log.Debug("mutation rejected", logger.Operation(op), logger.Err(err))
		return err
	}
	s.state = next
	s.version++
	change := Change{Op: op, Resources: resources, Replaced: replaced, Version: s.version}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(change, next)
	}
	return nil
}

var errStaleVersion = errors.New("state changed since version")

var (
	allResources      = []document.Name{document.Semesters, document.Subjects, document.Timetables, document.Reminders}
	semestersOnly     = []document.Name{document.Semesters}
	subjectCascade    = []document.Name{document.Subjects, document.Timetables, document.Semesters}
	subjectsOnly      = []document.Name{document.Subjects}
	timetablesOnly    = []document.Name{document.Timetables}
	remindersResource = []document.Name{document.Reminders}
)
