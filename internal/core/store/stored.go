package store

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/protostore/internal/core/document"
)

// StoredDocument is the on-disk envelope for one entity. A root carries its
// full document in Doc; a variant carries the parent reference in Template and
// the diff against the parent's composed document in Patch. The parent pointer
// lives on the envelope so it is readable without composing anything.
type StoredDocument struct {
	ID       string            `json:"id"`
	Template string            `json:"template,omitempty"`
	Doc      document.Document `json:"doc,omitempty"`
	Patch    document.Patch    `json:"patch,omitempty"`
}

// IsVariant reports whether the envelope encodes a diff against a parent.
func (d *StoredDocument) IsVariant() bool { return d.Template != "" }

func encodeStored(d *StoredDocument) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode stored document %q: %w", d.ID, err)
	}
	return raw, nil
}

func decodeStored(id string, raw []byte) (*StoredDocument, error) {
	var d StoredDocument
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode stored document %q: %w", id, err)
	}
	if d.ID == "" {
		d.ID = id
	}
	return &d, nil
}
