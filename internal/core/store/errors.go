package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidArgument marks an operation on a record with a missing id.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks a reference to an entity absent from both the cache
	// and the backing store, or absent from the cache when lazy fetching is
	// disabled.
	ErrNotFound = errors.New("entity not found")
	// ErrCycleDetected marks a template chain that revisits an entity already
	// on the resolution stack. It indicates corrupted data.
	ErrCycleDetected = errors.New("template chain cycle detected")
)

// PreloadError reports the ids a preload could not fetch. Successfully fetched
// entries remain cached; failed ids stay absent.
type PreloadError struct {
	Failed map[string]error
}

func (e *PreloadError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("preload failed for %d entities: %s", len(ids), strings.Join(ids, ", "))
}
