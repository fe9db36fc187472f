package registry

import "sync"

// Registry is a thread-safe, insertion-ordered registry that groups values by key.
// Several values may share a key; they are returned in the order they were added.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	keys    []K
	entries map[K][]V
	size    int
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K][]V),
	}
}

// Register appends a value under key.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.entries[key] = append(r.entries[key], value)
	r.size++
}

// Get returns a copy of the values registered under key, in registration order.
// Returns nil if the key has no values.
func (r *Registry[K, V]) Get(key K) []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.entries[key]
	if !ok {
		return nil
	}
	out := make([]V, len(vs))
	copy(out, vs)
	return out
}

// At returns the i-th value registered under key.
func (r *Registry[K, V]) At(key K, i int) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.entries[key]
	if i < 0 || i >= len(vs) {
		var zero V
		return zero, false
	}
	return vs[i], true
}

// Has returns true if at least one value is registered under key.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[key]) > 0
}

// Keys returns all keys in the order they were first registered.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the total number of values in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Range iterates over every value grouped by key, keys in first-registration order.
// If fn returns false, iteration stops.
//
// Range iterates over a snapshot of the registry, so it is safe
// to call Register during iteration without affecting
// the current iteration.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	keys := make([]K, len(r.keys))
	copy(keys, r.keys)
	snapshot := make(map[K][]V, len(r.entries))
	for k, vs := range r.entries {
		snapshot[k] = append([]V(nil), vs...)
	}
	r.mu.RUnlock()

	for _, k := range keys {
		for _, v := range snapshot[k] {
			if !fn(k, v) {
				return
			}
		}
	}
}
