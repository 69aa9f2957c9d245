package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const fileExt = ".json"

var _ BlobStore = (*DirStore)(nil)

// DirStore keeps one <id>.json file per blob under a root directory. Writes go
// through a temp file plus rename, and a per-id content digest skips rewriting
// byte-identical blobs.
type DirStore struct {
	dir string

	mu      sync.Mutex
	digests map[string]uint64
}

// NewDirStore opens (creating if needed) a directory-backed store rooted at dir.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open blob dir: %w", err)
	}
	return &DirStore{dir: dir, digests: make(map[string]uint64)}, nil
}

func (s *DirStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fileExt))
	}
	return ids, nil
}

func (s *DirStore) Read(ctx context.Context, id string) ([]byte, error) {
	path, err := s.path(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %q: %w", id, err)
	}
	return data, nil
}

func (s *DirStore) Write(ctx context.Context, id string, data []byte) error {
	path, err := s.path(ctx, id)
	if err != nil {
		return err
	}

	digest := xxhash.Sum64(data)
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.digests[id]; ok && prev == digest {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+".tmp-*")
	if err != nil {
		return fmt.Errorf("write blob %q: %w", id, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write blob %q: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write blob %q: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write blob %q: %w", id, err)
	}

	s.digests[id] = digest
	return nil
}

func (s *DirStore) Delete(ctx context.Context, id string) error {
	path, err := s.path(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.digests, id)
	s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %q: %w", id, err)
	}
	return nil
}

func (s *DirStore) Exists(ctx context.Context, id string) (bool, error) {
	path, err := s.path(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %q: %w", id, err)
	}
	return true, nil
}

func (s *DirStore) path(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+fileExt), nil
}
