// Package store implements the template-composing entity store: roots persist
// full documents, variants persist only the diff against their parent
// template, and loading composes the ancestor chain back into a full record.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zeusync/protostore/internal/core/codec"
	"github.com/zeusync/protostore/internal/core/document"
	"github.com/zeusync/protostore/internal/core/observability/log"
	"github.com/zeusync/protostore/internal/core/storage"
	"github.com/zeusync/protostore/pkg/sequence"
)

// Record is the minimal surface the store needs from a persisted type.
// Identity and parentage are read from the typed value on save; on variant
// creation they are rewritten in document form under the document.FieldID and
// document.FieldTemplate keys, so record types must serialize them there.
type Record interface {
	EntityID() string
	TemplateRef() string
}

// IDGenerator produces collision-free ids for new variants.
type IDGenerator func() string

// Options configures a Store.
type Options struct {
	// Strict makes codec round-trip divergence a hard error (see codec.Config).
	Strict bool
	Log    log.Log
	NewID  IDGenerator
}

const saveLockStripes = 64

// Store composes, diffs and persists records of type T against a backing byte
// store. It exclusively owns its template cache.
type Store[T Record] struct {
	codec *codec.Codec[T]
	blobs storage.BlobStore
	cache *templateCache
	newID IDGenerator
	log   log.Log

	// saveLocks serializes same-id saves and deletes so diff-compute,
	// write and removal never interleave for one entity. Striped by id hash.
	saveLocks [saveLockStripes]sync.Mutex
}

// New creates a store over the given backing byte store.
func New[T Record](blobs storage.BlobStore, opts Options) *Store[T] {
	l := opts.Log
	if l == nil {
		l = log.NewNop()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Store[T]{
		codec: codec.New[T](codec.Config{Strict: opts.Strict, Log: l}),
		blobs: blobs,
		cache: newTemplateCache(blobs, l),
		newID: newID,
		log:   l,
	}
}

// PreloadAll fetches every stored document listed by the backing store into
// the cache. Fetches run in parallel; the call returns once all have
// completed, with a PreloadError naming any ids that failed.
func (s *Store[T]) PreloadAll(ctx context.Context) error {
	ids, err := s.blobs.List(ctx)
	if err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	if err := s.cache.preload(ctx, ids); err != nil {
		return err
	}
	s.log.Debug("preload complete", log.Int("entities", len(ids)))
	return nil
}

// Save persists a record. Roots are stored as their full document; records
// with a template reference are stored as the diff against the parent's
// current composed document. The cache is updated only after the write
// succeeds, so it never reflects a document that failed to persist.
func (s *Store[T]) Save(ctx context.Context, v T) error {
	id := v.EntityID()
	if id == "" {
		return fmt.Errorf("%w: record has no id", ErrInvalidArgument)
	}

	unlock := s.lockSave(id)
	defer unlock()

	doc, err := s.codec.Encode(v)
	if err != nil {
		return err
	}

	sd := &StoredDocument{ID: id}
	if tpl := v.TemplateRef(); tpl != "" {
		if tpl == id {
			return fmt.Errorf("%w: %q is its own template", ErrCycleDetected, id)
		}
		parentFull, err := s.compose(ctx, tpl, true, []string{id})
		if err != nil {
			return fmt.Errorf("save %q: resolve template %q: %w", id, tpl, err)
		}
		patch, err := document.Diff(parentFull, doc)
		if err != nil {
			return fmt.Errorf("save %q: %w", id, err)
		}
		sd.Template = tpl
		sd.Patch = patch
	} else {
		sd.Doc = doc
	}

	raw, err := encodeStored(sd)
	if err != nil {
		return err
	}
	if err := s.blobs.Write(ctx, id, raw); err != nil {
		return fmt.Errorf("save %q: %w", id, err)
	}
	s.cache.put(id, sd)

	s.log.Debug("entity saved",
		log.String("entity", id),
		log.Bool("variant", sd.IsVariant()),
		log.Int("patch_ops", len(sd.Patch)))
	return nil
}

// Delete removes an entity from the cache and the backing store. Deleting an
// unknown id is a successful no-op.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	unlock := s.lockSave(id)
	defer unlock()

	had := s.cache.remove(id)
	if err := s.blobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	if had {
		s.log.Debug("entity deleted", log.String("entity", id))
	}
	return nil
}

// CreateVariantOf builds a detached in-memory variant of an already known
// template: a copy with a freshly generated id whose template reference points
// at the given record. The variant is not persisted until saved.
func (s *Store[T]) CreateVariantOf(template T) (T, error) {
	var zero T
	tpl := template.EntityID()
	if tpl == "" {
		return zero, fmt.Errorf("%w: template has no id", ErrInvalidArgument)
	}
	if _, ok := s.cache.lookup(tpl); !ok {
		return zero, fmt.Errorf("template %q not loaded: %w", tpl, ErrNotFound)
	}

	doc, err := s.codec.Encode(template)
	if err != nil {
		return zero, err
	}
	doc[document.FieldID] = s.newID()
	doc[document.FieldTemplate] = tpl
	return s.codec.Decode(doc)
}

// Load composes and decodes an entity, fetching uncached ancestors from the
// backing store as needed.
func (s *Store[T]) Load(ctx context.Context, id string) (T, error) {
	return s.load(ctx, id, true)
}

// LoadCached is Load restricted to already cached documents: any id on the
// template chain missing from the cache fails with ErrNotFound instead of
// being fetched.
func (s *Store[T]) LoadCached(ctx context.Context, id string) (T, error) {
	return s.load(ctx, id, false)
}

func (s *Store[T]) load(ctx context.Context, id string, lazy bool) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: empty id", ErrInvalidArgument)
	}
	full, err := s.compose(ctx, id, lazy, nil)
	if err != nil {
		return zero, err
	}
	return s.codec.Decode(full)
}

// compose resolves the full document for id by walking the template chain up
// to a root and patching back down. The stack carries the ids already being
// resolved in this call so cyclic chains fail instead of recursing forever.
// Callers must treat the result as read-only: for roots it aliases the cached
// document.
func (s *Store[T]) compose(ctx context.Context, id string, lazy bool, stack []string) (document.Document, error) {
	for _, seen := range stack {
		if seen == id {
			return nil, fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(append(stack, id), " -> "))
		}
	}

	sd, err := s.cache.get(ctx, id, lazy)
	if err != nil {
		return nil, err
	}
	if !sd.IsVariant() {
		return sd.Doc, nil
	}

	parentFull, err := s.compose(ctx, sd.Template, lazy, append(stack, id))
	if err != nil {
		return nil, err
	}
	full, err := document.Apply(parentFull, sd.Patch)
	if err != nil {
		return nil, fmt.Errorf("compose %q: %w", id, err)
	}
	return full, nil
}

// EntityIDs lists the ids known to the backing store. The listing reflects the
// store at call time; it is not restartable across mutations.
func (s *Store[T]) EntityIDs(ctx context.Context) (*sequence.Iterator[string], error) {
	ids, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return sequence.From(ids), nil
}

func (s *Store[T]) lockSave(id string) func() {
	mu := &s.saveLocks[xxhash.Sum64String(id)%saveLockStripes]
	mu.Lock()
	return mu.Unlock
}
