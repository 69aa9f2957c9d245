// Package document defines the structured-document representation shared by
// the codec and the entity store, together with a structural diff engine whose
// patches are the on-disk encoding for variant entities.
//
// Documents are plain JSON trees: map[string]any at the top, with []any,
// float64, string, bool and nil below. Diffs are RFC 6902 operation lists;
// application goes through evanphx/json-patch so stored patches stay readable
// by anything that speaks JSON Patch.
package document

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Document is a normalized JSON object tree.
type Document = map[string]any

// Field names every entity document carries at the top level.
const (
	FieldID       = "id"
	FieldTemplate = "templateId"
)

// Normalize canonicalizes an arbitrary value into a Document by round-tripping
// it through JSON. Values that do not encode to a JSON object are rejected.
func Normalize(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("normalize: value is not an object: %w", err)
	}
	return doc, nil
}

// Equal reports structural equality of two normalized documents.
func Equal(a, b Document) bool {
	return reflect.DeepEqual(a, b)
}

func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
