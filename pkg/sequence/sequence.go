package sequence

import (
	"iter"
	"sort"
)

// Iterator is a generic, immutable, chainable iterator for any type T.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return FromSeq(func(yield func(T) bool) {
		for _, v := range data {
			if !yield(v) {
				return
			}
		}
	})
}

// FromSeq wraps an existing sequence function in an Iterator.
func FromSeq[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// Seq returns the underlying sequence function for the iterator.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Pull converts the iterator into a pull-style pair of next/stop functions.
func (i *Iterator[T]) Pull() (next func() (T, bool), stop func()) {
	return iter.Pull(i.seq)
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	var out []T
	i.seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Filter returns a new Iterator containing only elements for which keep returns true.
func (i *Iterator[T]) Filter(keep func(T) bool) *Iterator[T] {
	return FromSeq(func(yield func(T) bool) {
		i.seq(func(v T) bool {
			if keep(v) {
				return yield(v)
			}
			return true
		})
	})
}

// Sort returns a new Iterator with elements sorted according to the provided
// less function. The less function should return true if a < b.
func (i *Iterator[T]) Sort(less func(a, b T) bool) *Iterator[T] {
	data := i.Collect()
	sort.SliceStable(data, func(a, b int) bool {
		return less(data[a], data[b])
	})
	return From(data)
}
