// Package codec converts typed records to and from structured documents.
//
// The storage format depends on exact structural fidelity: a field a record
// type silently drops would corrupt the diff chain of every descendant
// document. Decode therefore verifies the round trip by re-encoding the
// decoded value and structurally comparing it with the input. Strict mode
// turns a divergence into an error; otherwise it is logged and decoding
// proceeds.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeusync/protostore/internal/core/document"
	"github.com/zeusync/protostore/internal/core/observability/log"
)

// Config controls codec behavior.
type Config struct {
	// Strict makes Decode fail with ErrSchemaMismatch when the decoded value
	// does not re-encode to the input document. When false the mismatch is
	// logged as a warning instead.
	Strict bool
	Log    log.Log
}

// Codec encodes and decodes records of type T.
type Codec[T any] struct {
	strict bool
	log    log.Log
}

// New builds a codec for T.
func New[T any](cfg Config) *Codec[T] {
	l := cfg.Log
	if l == nil {
		l = log.NewNop()
	}
	return &Codec[T]{strict: cfg.Strict, log: l}
}

// Encode produces the normalized document for a record.
func (c *Codec[T]) Encode(v T) (document.Document, error) {
	doc, err := document.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return doc, nil
}

// Decode produces the record a document describes and verifies the document
// survives a decode/encode cycle.
func (c *Codec[T]) Decode(doc document.Document) (T, error) {
	var v T

	raw, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode record: %w", err)
	}

	if err := c.verifyRoundTrip(v, doc); err != nil {
		if c.strict {
			var zero T
			return zero, err
		}
		c.log.Warn("document round trip diverged", log.Err(err))
	}
	return v, nil
}

func (c *Codec[T]) verifyRoundTrip(v T, doc document.Document) error {
	reencoded, err := c.Encode(v)
	if err != nil {
		return fmt.Errorf("%w: re-encode failed: %v", ErrSchemaMismatch, err)
	}
	lost, err := document.Diff(reencoded, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if len(lost) > 0 {
		return fmt.Errorf("%w: fields read but not re-serializable: %s",
			ErrSchemaMismatch, strings.Join(lost.Paths(), ", "))
	}
	return nil
}
