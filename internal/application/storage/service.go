// Package storage is the server side of the JSON document store: it serves
// each document or its default, validates replacements and runs the one-time
// legacy subject migration, on top of a pluggable Backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ErrNotFound is returned by backends for documents never written.
var ErrNotFound = errors.New("storage: document not found")

// Backend persists raw document bodies.
type Backend interface {
	Read(ctx context.Context, name document.Name) ([]byte, error)
	Write(ctx context.Context, name document.Name, body []byte) error
}

// Service implements GET/PUT semantics for the four documents.
type Service struct {
	backend Backend
	log     *logger.Logger

	migrateMu sync.Mutex
	migrated  atomic.Bool
}

// NewService creates a service over backend.
func NewService(backend Backend, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{backend: backend, log: log.With(logger.Component("storage"))}
}

// Get returns the stored document. A missing document is created with its
// default; a stored body that is not valid JSON is replaced by the default.
// Read failures serve the default without rewriting it.
func (s *Service) Get(ctx context.Context, name document.Name) (json.RawMessage, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("unknown document %q", name)
	}
	s.migrate(ctx)
	return s.read(ctx, name)
}

func (s *Service) read(ctx context.Context, name document.Name) (json.RawMessage, error) {
	fallback, err := json.Marshal(document.ServerFallback(name))
	if err != nil {
		return nil, err
	}

	body, err := s.backend.Read(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		if werr := s.backend.Write(ctx, name, fallback); werr != nil {
			s.log.Warn("failed to write default document", logger.Resource(string(name)), logger.Err(werr))
		}
		return fallback, nil
	case err != nil:
		s.log.Error("failed to read document", logger.Resource(string(name)), logger.Err(err))
		return fallback, nil
	}

	if !json.Valid(body) {
		s.log.Error("stored document is not valid JSON, restoring default", logger.Resource(string(name)))
		if werr := s.backend.Write(ctx, name, fallback); werr != nil {
			return nil, fmt.Errorf("restore %s: %w", name, werr)
		}
		return fallback, nil
	}
	return body, nil
}

// Put validates body and replaces the document with its canonical form,
// which is returned. Validation failures wrap document.ErrInvalidJSON or
// document.ErrInvalidShape.
func (s *Service) Put(ctx context.Context, name document.Name, body []byte) (any, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("unknown document %q", name)
	}
	s.migrate(ctx)

	doc, err := document.Parse(name, body)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := s.backend.Write(ctx, name, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	return doc, nil
}

// migrate moves subject lists embedded in semester entries into the subjects
// document, once per process. Failures are logged and retried on the next
// request.
func (s *Service) migrate(ctx context.Context) {
	_ = s.Prepare(ctx)
}

// Prepare runs the legacy migration now if it has not completed yet.
func (s *Service) Prepare(ctx context.Context) error {
	if s.migrated.Load() {
		return nil
	}
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()
	if s.migrated.Load() {
		return nil
	}
	if err := s.migrateLegacy(ctx); err != nil {
		s.log.Error("legacy migration failed", logger.Err(err))
		return err
	}
	s.migrated.Store(true)
	return nil
}

// Migrated reports whether the legacy migration has completed.
func (s *Service) Migrated() bool {
	return s.migrated.Load()
}

func (s *Service) migrateLegacy(ctx context.Context) error {
	semBody, err := s.read(ctx, document.Semesters)
	if err != nil {
		return err
	}
	subjBody, err := s.read(ctx, document.Subjects)
	if err != nil {
		return err
	}

	subjects, err := document.ParseSubjects(subjBody)
	if err != nil {
		subjects = document.SubjectsDocument{}
	}
	sems, subjects, semChanged, subjChanged, err := document.MigrateLegacy(semBody, subjects)
	if err != nil {
		// A semesters document that is not migratable is left for PUT to replace.
		s.log.Warn("semesters document skipped by migration", logger.Err(err))
		return nil
	}

	if semChanged {
		if err := s.writeJSON(ctx, document.Semesters, sems); err != nil {
			return err
		}
	}
	if subjChanged {
		if err := s.writeJSON(ctx, document.Subjects, subjects); err != nil {
			return err
		}
	}
	if semChanged || subjChanged {
		s.log.Info("legacy subjects migrated",
			logger.Bool("semesters_changed", semChanged),
			logger.Bool("subjects_changed", subjChanged))
	}
	return nil
}

func (s *Service) writeJSON(ctx context.Context, name document.Name, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, name, data)
}

// IsValidationError reports whether err came from payload validation.
func IsValidationError(err error) bool {
	return errors.Is(err, document.ErrInvalidJSON) || errors.Is(err, document.ErrInvalidShape)
}
