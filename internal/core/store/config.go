package store

import (
	"context"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/protostore/internal/core/observability/log"
	"github.com/zeusync/protostore/internal/core/storage"
)

// Config describes a directory-backed store, loadable from JSON or YAML.
type Config struct {
	// Dir is the directory holding one file per entity.
	Dir string `json:"dir" yaml:"dir"`
	// Strict enables hard codec round-trip verification.
	Strict bool `json:"strict" yaml:"strict"`
	// PreloadOnOpen fills the template cache from the directory when the
	// store is opened.
	PreloadOnOpen bool `json:"preload_on_open" yaml:"preload_on_open"`
}

// LoadJSON loads config from a JSON reader.
func LoadJSON(r io.Reader) (*Config, error) {
	var c Config
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadYAML loads config from a YAML reader.
func LoadYAML(r io.Reader) (*Config, error) {
	var c Config
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Open builds a directory-backed store from config, optionally preloading it.
// A preload failure still returns the opened store alongside the PreloadError,
// since the cache holds every entity that did fetch.
func Open[T Record](ctx context.Context, cfg Config, l log.Log) (*Store[T], error) {
	blobs, err := storage.NewDirStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	s := New[T](blobs, Options{Strict: cfg.Strict, Log: l})
	if cfg.PreloadOnOpen {
		if err := s.PreloadAll(ctx); err != nil {
			return s, err
		}
	}
	return s, nil
}
