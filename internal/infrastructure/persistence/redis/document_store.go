package redis

import (
	"context"
	"errors"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// DocumentStore implements storage.Backend with one key per document.
// Every write is announced on ChangesChannel.
type DocumentStore struct {
	cache *Cache
	log   *logger.Logger
}

// NewDocumentStore creates a document backend over cache.
func NewDocumentStore(cache *Cache, log *logger.Logger) *DocumentStore {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentStore{cache: cache, log: log.With(logger.Component("redis_documents"))}
}

var _ storage.Backend = (*DocumentStore)(nil)

// Read returns the stored body or storage.ErrNotFound.
func (s *DocumentStore) Read(ctx context.Context, name document.Name) ([]byte, error) {
	data, err := s.cache.GetBytes(ctx, DocumentKey(string(name)))
	if errors.Is(err, ErrCacheMiss) {
		return nil, storage.ErrNotFound
	}
	return data, err
}

// Write stores body without expiry and publishes the document name.
func (s *DocumentStore) Write(ctx context.Context, name document.Name, body []byte) error {
	if err := s.cache.SetBytes(ctx, DocumentKey(string(name)), body, 0); err != nil {
		return err
	}
	if err := s.cache.Publish(ctx, ChangesChannel, string(name)); err != nil {
		s.log.Warn("change notification failed", logger.Resource(string(name)), logger.Err(err))
	}
	return nil
}

// WatchChanges calls fn with the name of every document written by any
// DocumentStore until ctx is done. It blocks.
func (c *Cache) WatchChanges(ctx context.Context, fn func(document.Name)) error {
	sub := c.Subscribe(ctx, ChangesChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if name := document.Name(msg.Payload); name.Valid() {
				fn(name)
			}
		}
	}
}
