package storage

import (
	"context"
	"sync"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[document.Name][]byte
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[document.Name][]byte)}
}

// Read implements Backend.
func (m *MemoryBackend) Read(_ context.Context, name document.Name) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(_ context.Context, name document.Name, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), body...)
	return nil
}
