// Package filestore keeps each document as a pretty-printed JSON file in a
// data directory.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/fsutil"
)

// fileNames keeps the historical data directory layout.
var fileNames = map[document.Name]string{
	document.Semesters:  "attendance.json",
	document.Subjects:   "subjects.json",
	document.Timetables: "timetables.json",
	document.Reminders:  "reminders.json",
}

// Store is a storage.Backend over a directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file holding name.
func (s *Store) Path(name document.Name) string {
	file, ok := fileNames[name]
	if !ok {
		file = string(name) + ".json"
	}
	return filepath.Join(s.dir, file)
}

// Read implements storage.Backend.
func (s *Store) Read(ctx context.Context, name document.Name) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	return data, err
}

// Write implements storage.Backend. Valid JSON is indented before writing.
func (s *Store) Write(ctx context.Context, name document.Name, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err == nil {
		body = buf.Bytes()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fsutil.WriteFileAtomic(s.Path(name), body, 0o644)
}
