package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Diff computes the minimal edit list turning base into target. It returns a
// nil patch when the documents are equivalent. Objects diff per key, arrays
// diff at index level: every element is reduced to a digest, the digest
// sequences are diffed as rune strings, and the equal/insert/delete runs are
// converted back into index operations. Inputs are normalized first, so any
// JSON-encodable values are accepted.
func Diff(base, target Document) (Patch, error) {
	from, err := Normalize(base)
	if err != nil {
		return nil, fmt.Errorf("diff base: %w", err)
	}
	to, err := Normalize(target)
	if err != nil {
		return nil, fmt.Errorf("diff target: %w", err)
	}

	var p Patch
	diffObject("", from, to, &p)
	return p, nil
}

func diffValue(path string, from, to any, p *Patch) {
	switch f := from.(type) {
	case map[string]any:
		t, ok := to.(map[string]any)
		if !ok {
			*p = append(*p, Operation{Op: opReplace, Path: path, Value: to})
			return
		}
		diffObject(path, f, t, p)
	case []any:
		t, ok := to.([]any)
		if !ok {
			*p = append(*p, Operation{Op: opReplace, Path: path, Value: to})
			return
		}
		diffArray(path, f, t, p)
	default:
		if !valueEqual(from, to) {
			*p = append(*p, Operation{Op: opReplace, Path: path, Value: to})
		}
	}
}

func diffObject(path string, from, to map[string]any, p *Patch) {
	keys := make([]string, 0, len(from)+len(to))
	for k := range from {
		keys = append(keys, k)
	}
	for k := range to {
		if _, ok := from[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		child := path + "/" + escapePointer(k)
		fv, inFrom := from[k]
		tv, inTo := to[k]
		switch {
		case inFrom && !inTo:
			*p = append(*p, Operation{Op: opRemove, Path: child})
		case !inFrom && inTo:
			*p = append(*p, Operation{Op: opAdd, Path: child, Value: tv})
		default:
			diffValue(child, fv, tv, p)
		}
	}
}

// diffArray reduces both element sequences to rune strings keyed by element
// digest and runs a text diff over them. The resulting runs are replayed as
// sequential index edits: the working index wi tracks positions in the array
// as the patch mutates it, so operations stay valid when applied in order.
// A delete run immediately followed by an insert run is paired element-wise
// and recursed into, which keeps patches small when an element merely changed.
func diffArray(path string, from, to []any, p *Patch) {
	in := newRuneInterner()
	fromRunes := in.internAll(from)
	toRunes := in.internAll(to)

	diffs := diffpatch.New().DiffMainRunes(fromRunes, toRunes, false)

	fi, ti, wi := 0, 0, 0
	for i := 0; i < len(diffs); i++ {
		n := utf8.RuneCountInString(diffs[i].Text)
		switch diffs[i].Type {
		case diffpatch.DiffEqual:
			// Equal digests can still hide a hash collision; recursing keeps
			// the patch correct either way.
			for j := 0; j < n; j++ {
				diffValue(indexPath(path, wi), from[fi], to[ti], p)
				fi++
				ti++
				wi++
			}
		case diffpatch.DiffDelete:
			m := 0
			if i+1 < len(diffs) && diffs[i+1].Type == diffpatch.DiffInsert {
				m = utf8.RuneCountInString(diffs[i+1].Text)
				i++
			}
			paired := min(n, m)
			for j := 0; j < paired; j++ {
				diffValue(indexPath(path, wi), from[fi], to[ti], p)
				fi++
				ti++
				wi++
			}
			for j := paired; j < n; j++ {
				*p = append(*p, Operation{Op: opRemove, Path: indexPath(path, wi)})
				fi++
			}
			for j := paired; j < m; j++ {
				*p = append(*p, Operation{Op: opAdd, Path: indexPath(path, wi), Value: to[ti]})
				ti++
				wi++
			}
		case diffpatch.DiffInsert:
			for j := 0; j < n; j++ {
				*p = append(*p, Operation{Op: opAdd, Path: indexPath(path, wi), Value: to[ti]})
				ti++
				wi++
			}
		}
	}
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s/%d", path, i)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapePointer(key string) string {
	return pointerEscaper.Replace(key)
}

// runeInterner assigns a stable rune to every distinct element digest so
// element sequences can be diffed as text.
type runeInterner struct {
	runes map[uint64]rune
	next  rune
}

func newRuneInterner() *runeInterner {
	return &runeInterner{runes: make(map[uint64]rune), next: 1}
}

func (in *runeInterner) internAll(values []any) []rune {
	out := make([]rune, len(values))
	for i, v := range values {
		out[i] = in.intern(v)
	}
	return out
}

func (in *runeInterner) intern(v any) rune {
	raw, err := json.Marshal(v)
	if err != nil {
		// Normalized documents always marshal; fall back to the type name so a
		// stray value still gets a deterministic digest.
		raw = []byte(fmt.Sprintf("%T", v))
	}
	digest := xxhash.Sum64(raw)
	if r, ok := in.runes[digest]; ok {
		return r
	}
	r := in.next
	in.next++
	if in.next >= 0xD800 && in.next <= 0xDFFF {
		// Skip the surrogate range so rune<->string round trips stay lossless.
		in.next = 0xE000
	}
	in.runes[digest] = r
	return r
}
