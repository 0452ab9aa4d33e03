package registry

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound indicates a handle that is not (or no longer) registered. A
// destroyed handle takes exactly this path; use-after-free is a failed
// lookup, never a dangling dereference.
var ErrNotFound = errors.New("handle not found")

// Registry is a concurrent handle table. Resolve takes only the read lock so
// many reader and writer tasks can look up handles without blocking each
// other; Register and Unregister hold the write lock briefly.
type Registry struct {
	mu      sync.RWMutex
	next    int64
	entries map[int64]any
}

// New returns an empty registry. Handle ids start at 1; 0 is never issued,
// so a zero-value id from an uninitialized caller cannot resolve.
func New() *Registry {
	return &Registry{next: 1, entries: make(map[int64]any)}
}

// Register stores obj and returns its freshly minted handle.
func (r *Registry) Register(obj any) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.entries[id] = obj
	return id
}

// Resolve looks up the object behind id.
func (r *Registry) Resolve(id int64) (any, error) {
	r.mu.RLock()
	obj, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", id, ErrNotFound)
	}
	return obj, nil
}

// Unregister removes id and reports whether it was present. Removing an
// absent id is not an error; destroy is idempotent at this layer.
func (r *Registry) Unregister(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Len reports the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every live handle. Intended for test teardown so state never
// leaks across cases; ids keep increasing, cleared ids are not reissued.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[int64]any)
}
