package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/protostore/internal/core/document"
	"github.com/zeusync/protostore/internal/core/models"
	"github.com/zeusync/protostore/internal/core/storage"
)

func newTestStore(t *testing.T) (*Store[*models.Entity], *storage.MemStore) {
	t.Helper()
	blobs := storage.NewMemStore()
	return New[*models.Entity](blobs, Options{Strict: true}), blobs
}

func TestStore_SaveRootAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	goblin := &models.Entity{
		ID:        "goblin",
		Name:      "Goblin",
		Transform: &models.Transform{X: 1, Y: 2},
		Tags:      []string{"enemy"},
		Components: models.ComponentList{
			&models.Health{Current: 30, Max: 30},
		},
	}
	require.NoError(t, s.Save(ctx, goblin))

	got, err := s.Load(ctx, "goblin")
	require.NoError(t, err)
	assert.Equal(t, goblin, got)
}

func TestStore_VariantStoresOnlyDelta(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	root := &models.Entity{
		ID:        "goblin",
		Name:      "Goblin",
		Transform: &models.Transform{X: 1, Y: 2},
	}
	require.NoError(t, s.Save(ctx, root))

	variant := &models.Entity{
		ID:         "goblin-b",
		TemplateID: "goblin",
		Name:       "Goblin",
		Transform:  &models.Transform{X: 1, Y: 5},
	}
	require.NoError(t, s.Save(ctx, variant))

	raw, err := blobs.Read(ctx, "goblin-b")
	require.NoError(t, err)
	var sd StoredDocument
	require.NoError(t, json.Unmarshal(raw, &sd))

	assert.True(t, sd.IsVariant())
	assert.Equal(t, "goblin", sd.Template)
	assert.Nil(t, sd.Doc)
	assert.ElementsMatch(t,
		[]string{"/id", "/templateId", "/transform/y"},
		sd.Patch.Paths(),
		"patch must describe only the difference from the parent")

	got, err := s.Load(ctx, "goblin-b")
	require.NoError(t, err)
	assert.Equal(t, variant, got)
}

func TestStore_ChainedInheritance(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a := &models.Entity{ID: "a", Transform: &models.Transform{X: 1}}
	b := &models.Entity{ID: "b", TemplateID: "a", Transform: &models.Transform{X: 1, Y: 2}}
	c := &models.Entity{ID: "c", TemplateID: "b", Transform: &models.Transform{X: 1, Y: 2, Z: 3}}
	require.NoError(t, s.Save(ctx, a))
	require.NoError(t, s.Save(ctx, b))
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, &models.Transform{X: 1, Y: 2, Z: 3}, got.Transform)

	// Changing the root propagates to every descendant without touching
	// their stored documents.
	require.NoError(t, s.Save(ctx, &models.Entity{ID: "a", Transform: &models.Transform{X: 9}}))

	got, err = s.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, &models.Transform{X: 9, Y: 2, Z: 3}, got.Transform)
}

func TestStore_CreateVariantOf(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	root := &models.Entity{ID: "goblin", Name: "Goblin"}
	require.NoError(t, s.Save(ctx, root))

	v1, err := s.CreateVariantOf(root)
	require.NoError(t, err)
	v2, err := s.CreateVariantOf(root)
	require.NoError(t, err)

	assert.NotEmpty(t, v1.ID)
	assert.NotEqual(t, "goblin", v1.ID)
	assert.NotEqual(t, v1.ID, v2.ID)
	assert.Equal(t, "goblin", v1.TemplateID)
	assert.Equal(t, "Goblin", v1.Name)

	// Detached until saved.
	ids, err := s.EntityIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids.Collect(), v1.ID)

	require.NoError(t, s.Save(ctx, v1))
	ids, err = s.EntityIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids.Collect(), v1.ID)
}

func TestStore_CreateVariantOfUnknownTemplate(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.CreateVariantOf(&models.Entity{ID: "never-saved"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	assert.NoError(t, s.Delete(ctx, "never-saved"))

	require.NoError(t, s.Save(ctx, &models.Entity{ID: "a"}))
	require.NoError(t, s.Delete(ctx, "a"))

	_, err := s.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "a"))
}

func TestStore_SaveWithoutIDFails(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	err := s.Save(ctx, &models.Entity{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStore_LoadMissingFails(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Load(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CycleDetected(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	writeStored := func(sd *StoredDocument) {
		raw, err := json.Marshal(sd)
		require.NoError(t, err)
		require.NoError(t, blobs.Write(ctx, sd.ID, raw))
	}
	writeStored(&StoredDocument{ID: "a", Template: "b", Patch: document.Patch{
		{Op: "replace", Path: "/id", Value: "a"},
	}})
	writeStored(&StoredDocument{ID: "b", Template: "a", Patch: document.Patch{
		{Op: "replace", Path: "/id", Value: "b"},
	}})

	_, err := s.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestStore_SelfTemplateRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	err := s.Save(ctx, &models.Entity{ID: "a", TemplateID: "a"})
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestStore_LazyAndPreloadedLoadsAgree(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemStore()

	writer := New[*models.Entity](blobs, Options{Strict: true})
	require.NoError(t, writer.Save(ctx, &models.Entity{ID: "a", Name: "A", Tags: []string{"root"}}))
	require.NoError(t, writer.Save(ctx, &models.Entity{ID: "b", TemplateID: "a", Name: "B", Tags: []string{"root"}}))

	lazy := New[*models.Entity](blobs, Options{Strict: true})
	fromLazy, err := lazy.Load(ctx, "b")
	require.NoError(t, err)

	preloaded := New[*models.Entity](blobs, Options{Strict: true})
	require.NoError(t, preloaded.PreloadAll(ctx))
	fromPreloaded, err := preloaded.LoadCached(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, fromLazy, fromPreloaded)

	// Without preload, cache-only loads refuse to touch the backing store.
	cold := New[*models.Entity](blobs, Options{Strict: true})
	_, err = cold.LoadCached(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PreloadReportsFailedIDs(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemStore()

	writer := New[*models.Entity](blobs, Options{Strict: true})
	require.NoError(t, writer.Save(ctx, &models.Entity{ID: "good", Name: "G"}))
	require.NoError(t, blobs.Write(ctx, "corrupt", []byte("{not json")))

	s := New[*models.Entity](blobs, Options{Strict: true})
	err := s.PreloadAll(ctx)
	require.Error(t, err)

	var perr *PreloadError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, perr.Failed, 1)
	assert.Contains(t, perr.Failed, "corrupt")

	// Entities that did fetch are usable without lazy loading.
	got, err := s.LoadCached(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "G", got.Name)
}

func TestStore_ConcurrentLazyLoadFetchesOnce(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemStore()

	writer := New[*models.Entity](blobs, Options{Strict: true})
	require.NoError(t, writer.Save(ctx, &models.Entity{ID: "goblin", Name: "Goblin"}))
	require.Equal(t, int64(0), blobs.ReadCount())

	s := New[*models.Entity](blobs, Options{Strict: true})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Load(ctx, "goblin")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), blobs.ReadCount(),
		"concurrent first loads must share a single backing-store fetch")
}

func TestStore_ReparentTakesEffectOnResave(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	require.NoError(t, s.Save(ctx, &models.Entity{ID: "base", Name: "Base", Tags: []string{"a"}}))
	require.NoError(t, s.Save(ctx, &models.Entity{ID: "solo", Name: "Solo"}))

	// "solo" started as a root; adopting a template re-diffs it on resave.
	require.NoError(t, s.Save(ctx, &models.Entity{
		ID: "solo", TemplateID: "base", Name: "Solo", Tags: []string{"a"},
	}))

	raw, err := blobs.Read(ctx, "solo")
	require.NoError(t, err)
	var sd StoredDocument
	require.NoError(t, json.Unmarshal(raw, &sd))
	assert.True(t, sd.IsVariant())
	assert.Equal(t, "base", sd.Template)

	got, err := s.Load(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, "Solo", got.Name)
	assert.Equal(t, []string{"a"}, got.Tags)
	assert.Equal(t, "base", got.TemplateID)
}

func TestStore_DivergedParentSurfacesPatchError(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemStore()
	s := New[*models.Entity](blobs, Options{})

	writeStored := func(sd *StoredDocument) {
		raw, err := json.Marshal(sd)
		require.NoError(t, err)
		require.NoError(t, blobs.Write(ctx, sd.ID, raw))
	}
	writeStored(&StoredDocument{ID: "parent", Doc: document.Document{"id": "parent"}})
	writeStored(&StoredDocument{ID: "child", Template: "parent", Patch: document.Patch{
		{Op: "replace", Path: "/id", Value: "child"},
		{Op: "replace", Path: "/transform/x", Value: 2.0},
	}})
	// A replace whose top-level key vanished from the parent must fail too,
	// not resurface as a silent add.
	writeStored(&StoredDocument{ID: "stray", Template: "parent", Patch: document.Patch{
		{Op: "replace", Path: "/id", Value: "stray"},
		{Op: "replace", Path: "/name", Value: "Stray"},
	}})

	_, err := s.Load(ctx, "child")
	assert.ErrorIs(t, err, document.ErrPatchApply)

	_, err = s.Load(ctx, "stray")
	assert.ErrorIs(t, err, document.ErrPatchApply)
}

func TestStore_ConcurrentSaveDeleteStaysConsistent(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	hero := &models.Entity{ID: "hero", Name: "Hero"}
	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, hero))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Delete(ctx, "hero"))
		}()
		wg.Wait()

		// Whatever order the pair ran in, a cached entry must always have a
		// live backing blob.
		if _, cached := s.cache.lookup("hero"); cached {
			exists, err := blobs.Exists(ctx, "hero")
			require.NoError(t, err)
			assert.True(t, exists)
		}
	}
}

func TestStore_SheddingComponentsStoresRemoveOps(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	root := &models.Entity{
		ID: "soldier",
		Components: models.ComponentList{
			&models.Health{Current: 50, Max: 50},
			&models.Sprite{Texture: "soldier.png"},
		},
	}
	require.NoError(t, s.Save(ctx, root))

	ghost := &models.Entity{
		ID:         "ghost",
		TemplateID: "soldier",
		Components: models.ComponentList{
			&models.Health{Current: 50, Max: 50},
		},
	}
	require.NoError(t, s.Save(ctx, ghost))

	raw, err := blobs.Read(ctx, "ghost")
	require.NoError(t, err)
	var sd StoredDocument
	require.NoError(t, json.Unmarshal(raw, &sd))
	assert.Contains(t, sd.Patch.Paths(), "/components/1")

	got, err := s.Load(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, ghost, got)
}
