package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

// TimetableCache keeps the engine's fallback copy of timetables under
// TimetablesKey.
type TimetableCache struct {
	cache *Cache
}

// NewTimetableCache creates a fallback cache over cache.
func NewTimetableCache(cache *Cache) *TimetableCache {
	return &TimetableCache{cache: cache}
}

// SaveTimetables overwrites the cached copy.
func (t *TimetableCache) SaveTimetables(ctx context.Context, doc document.TimetablesDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return t.cache.SetBytes(ctx, TimetablesKey, data, 0)
}

// LoadTimetables returns the cached copy; a missing or corrupt value is a
// miss.
func (t *TimetableCache) LoadTimetables(ctx context.Context) (document.TimetablesDocument, bool, error) {
	data, err := t.cache.GetBytes(ctx, TimetablesKey)
	if errors.Is(err, ErrCacheMiss) {
		return document.TimetablesDocument{}, false, nil
	}
	if err != nil {
		return document.TimetablesDocument{}, false, err
	}
	doc, err := document.ParseTimetables(data)
	if err != nil {
		return document.TimetablesDocument{}, false, nil
	}
	return doc, true, nil
}
