// Package localcache keeps the last known timetables on local disk so the
// schedule stays usable when the remote store cannot be reached.
package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/fsutil"
)

// TimetablesKey is the namespaced key of the cached timetables payload.
const TimetablesKey = "attendance-tracker:timetables"

// FileCache stores each key as one JSON file in a directory.
type FileCache struct {
	dir string
	mu  sync.Mutex
}

// NewFileCache creates a cache rooted at dir. The directory is created on
// first write.
func NewFileCache(dir string) *FileCache {
	if dir == "" {
		dir = "./var/cache"
	}
	return &FileCache{dir: dir}
}

// Path returns the file backing key. Colons are not portable in file names.
func (c *FileCache) Path(key string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(key, ":", "_")+".json")
}

// SaveTimetables overwrites the cached timetables.
func (c *FileCache) SaveTimetables(ctx context.Context, doc document.TimetablesDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal timetables: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fsutil.WriteFileAtomic(c.Path(TimetablesKey), data, 0o600); err != nil {
		return fmt.Errorf("write timetables cache: %w", err)
	}
	return nil
}

// LoadTimetables returns the cached timetables. ok is false when nothing
// usable is cached; a corrupt file counts as a miss.
func (c *FileCache) LoadTimetables(ctx context.Context) (document.TimetablesDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return document.TimetablesDocument{}, false, err
	}

	c.mu.Lock()
	data, err := os.ReadFile(c.Path(TimetablesKey))
	c.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return document.TimetablesDocument{}, false, nil
	}
	if err != nil {
		return document.TimetablesDocument{}, false, fmt.Errorf("read timetables cache: %w", err)
	}

	doc, err := document.ParseTimetables(data)
	if err != nil {
		return document.TimetablesDocument{}, false, nil
	}
	return doc, true, nil
}
