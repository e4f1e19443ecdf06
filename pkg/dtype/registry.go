package dtype

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps type tags to Types. The core packages never consult a
// registry themselves; outer layers (config files, codecs, tools) build
// one and pass the resolved Type down.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry returns a registry pre-filled with the canonical names of
// every kind.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]Type)}
	for k := Int8; k <= Float64; k++ {
		r.types[k.String()] = Type{k}
	}
	return r
}

// Register associates tag with t. Registering an existing tag with a
// different type is an error.
func (r *Registry) Register(tag string, t Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[tag]; ok && existing != t {
		return fmt.Errorf("type tag %q already registered as %s", tag, existing)
	}
	r.types[tag] = t
	return nil
}

// Lookup returns the type registered for tag.
func (r *Registry) Lookup(tag string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[tag]
	if !ok {
		return NoneType, fmt.Errorf("unknown type tag: %q", tag)
	}
	return t, nil
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.types))
	for tag := range r.types {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
