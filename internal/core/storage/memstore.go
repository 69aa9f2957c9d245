package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var _ BlobStore = (*MemStore)(nil)

// MemStore is a map-backed BlobStore for tests and embedding.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	reads atomic.Int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemStore) Read(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", id, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemStore) Write(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = append([]byte(nil), data...)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}

func (s *MemStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[id]
	return ok, nil
}

// ReadCount reports how many Read calls the store has served. Tests use it to
// assert fetch deduplication.
func (s *MemStore) ReadCount() int64 {
	return s.reads.Load()
}
