package data

import (
	"fmt"

	"github.com/google/uuid"
)

// CopyCache maps the identity of a copied object to its copy. Threading
// the same cache through every DeepCopy of a graph keeps shared
// sub-objects shared.
type CopyCache map[uuid.UUID]Object

// NewCopyCache returns an empty cache.
func NewCopyCache() CopyCache {
	return make(CopyCache)
}

// Copy returns a deep copy of src. If src was already copied through
// cache, the earlier copy is returned. A nil cache disables aliasing.
func Copy(src Object, cache CopyCache) (Object, error) {
	if src == nil {
		return nil, nil
	}
	if cache == nil {
		cache = NewCopyCache()
	}

	id := src.Meta().ID()
	if dup, ok := cache[id]; ok {
		return dup, nil
	}

	dup := src.New()
	cache[id] = dup
	if err := dup.DeepCopy(src, cache); err != nil {
		delete(cache, id)
		return nil, err
	}
	return dup, nil
}

// CopyAs is Copy with a typed result.
func CopyAs[T Object](src T, cache CopyCache) (T, error) {
	var zero T
	dup, err := Copy(src, cache)
	if err != nil || dup == nil {
		return zero, err
	}
	typed, ok := dup.(T)
	if !ok {
		return zero, &CopyError{From: src.Classname(), To: fmt.Sprintf("%T", zero)}
	}
	return typed, nil
}
