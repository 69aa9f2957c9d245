package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zeusync/protostore/internal/core/observability/log"
	"github.com/zeusync/protostore/internal/core/storage"
	"github.com/zeusync/protostore/pkg/concurrent"
)

// templateCache maps entity ids to their stored documents as last read from or
// written to the backing store. It never holds composed documents; composition
// is recomputed per load so it always reflects the latest parent state. The
// cache is unbounded and owned exclusively by the Store.
type templateCache struct {
	blobs storage.BlobStore
	log   log.Log

	mu      sync.RWMutex
	entries map[string]*StoredDocument

	// flight dedups concurrent lazy fills for the same id.
	flight singleflight.Group
}

func newTemplateCache(blobs storage.BlobStore, l log.Log) *templateCache {
	return &templateCache{
		blobs:   blobs,
		log:     l,
		entries: make(map[string]*StoredDocument),
	}
}

func (c *templateCache) lookup(id string) (*StoredDocument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[id]
	return d, ok
}

func (c *templateCache) put(id string, d *StoredDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = d
}

func (c *templateCache) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	delete(c.entries, id)
	return ok
}

// get returns the stored document for id, fetching and caching it on a miss
// when lazy is allowed. Locks are scoped to individual map operations so
// recursive composition can re-enter the cache freely.
func (c *templateCache) get(ctx context.Context, id string, lazy bool) (*StoredDocument, error) {
	if d, ok := c.lookup(id); ok {
		return d, nil
	}
	if !lazy {
		return nil, fmt.Errorf("entity %q not preloaded: %w", id, ErrNotFound)
	}

	v, err, _ := c.flight.Do(id, func() (any, error) {
		if d, ok := c.lookup(id); ok {
			return d, nil
		}
		d, err := c.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		c.put(id, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StoredDocument), nil
}

// fetch reads and decodes one stored document without touching the cache.
func (c *templateCache) fetch(ctx context.Context, id string) (*StoredDocument, error) {
	raw, err := c.blobs.Read(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("entity %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return decodeStored(id, raw)
}

// preload fetches every id concurrently and fills the cache. All ids are
// attempted; failures are collected into a PreloadError so the caller knows
// exactly which entities are missing from the cache afterwards.
func (c *templateCache) preload(ctx context.Context, ids []string) error {
	failed := concurrent.CollectErrors(ids, func(id string) error {
		d, err := c.fetch(ctx, id)
		if err != nil {
			c.log.Warn("preload fetch failed", log.String("entity", id), log.Err(err))
			return err
		}
		c.put(id, d)
		return nil
	})
	if len(failed) > 0 {
		return &PreloadError{Failed: failed}
	}
	return nil
}
