package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Patch is an ordered list of RFC 6902 operations. A nil patch means the two
// documents it was computed from are equivalent.
type Patch []Operation

// Operation is a single RFC 6902 edit.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

const (
	opAdd     = "add"
	opRemove  = "remove"
	opReplace = "replace"
)

// MarshalJSON writes the operation with the value member omitted for removes,
// while still emitting explicit nulls for add/replace of a null value.
func (o Operation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"op":`)
	op, err := json.Marshal(o.Op)
	if err != nil {
		return nil, err
	}
	buf.Write(op)
	buf.WriteString(`,"path":`)
	path, err := json.Marshal(o.Path)
	if err != nil {
		return nil, err
	}
	buf.Write(path)
	if o.Op != opRemove {
		buf.WriteString(`,"value":`)
		value, err := json.Marshal(o.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Paths returns the pointer paths touched by the patch, in order.
func (p Patch) Paths() []string {
	paths := make([]string, len(p))
	for i, op := range p {
		paths[i] = op.Path
	}
	return paths
}

// Apply transforms base into the document the patch encodes. Applying a nil or
// empty patch returns base unchanged. Application failures wrap ErrPatchApply.
func Apply(base Document, p Patch) (Document, error) {
	if len(p) == 0 {
		return base, nil
	}

	baseRaw, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("%w: encode base: %v", ErrPatchApply, err)
	}
	patchRaw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: encode patch: %v", ErrPatchApply, err)
	}

	ops, err := jsonpatch.DecodePatch(patchRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPatchApply, err)
	}
	out, err := ops.Apply(baseRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPatchApply, err)
	}

	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("%w: patched result is not an object: %v", ErrPatchApply, err)
	}
	return doc, nil
}
