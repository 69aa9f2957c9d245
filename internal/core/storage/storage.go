// Package storage defines the backing byte-store the entity store persists
// into, with a directory-backed implementation and an in-memory one.
package storage

import "context"

// BlobStore persists one opaque blob per entity id. Implementations must be
// safe for concurrent readers; the entity store serializes writes per id on
// its side.
type BlobStore interface {
	// List returns every id present in the store.
	List(ctx context.Context) ([]string, error)
	// Read returns the blob for id, or an error wrapping ErrNotFound.
	Read(ctx context.Context, id string) ([]byte, error)
	// Write creates or replaces the blob for id.
	Write(ctx context.Context, id string, data []byte) error
	// Delete removes the blob for id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
	// Exists reports whether a blob is stored under id.
	Exists(ctx context.Context, id string) (bool, error)
}
