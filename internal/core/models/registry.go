package models

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownKind   = errors.New("unknown component kind")
	ErrDuplicateKind = errors.New("component kind already registered")
)

// Factory builds a zero-value component of one kind, ready to unmarshal into.
type Factory func() Component

// Registry maps component kind names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given kind name.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("component kind must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	r.factories[kind] = f
	return nil
}

// New instantiates a fresh component of the given kind.
func (r *Registry) New(kind string) (Component, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f(), nil
}

// Kinds lists the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultRegistry serves ComponentList decoding. Custom kinds register here
// before any documents containing them are loaded.
var DefaultRegistry = NewRegistry()

func init() {
	RegisterBuiltins(DefaultRegistry)
}

// RegisterBuiltins registers the built-in component kinds into a Registry.
func RegisterBuiltins(r *Registry) {
	builtins := map[string]Factory{
		"sprite":  func() Component { return &Sprite{} },
		"physics": func() Component { return &Physics{} },
		"script":  func() Component { return &Script{} },
		"health":  func() Component { return &Health{} },
	}
	for kind, f := range builtins {
		if err := r.Register(kind, f); err != nil {
			panic(err)
		}
	}
}
