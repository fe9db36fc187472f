package xs

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory configuration store for tests and demos.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Read implements Store.
func (m *MemoryStore) Read(_ context.Context, path string) (string, bool, error) {
	if err := ValidatePath(path); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrStoreClosed
	}
	v, ok := m.data[path]
	return v, ok, nil
}

// Write implements Store.
func (m *MemoryStore) Write(_ context.Context, path, value string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.data[path] = value
	return nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(_ context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for k := range m.data {
		if k == path || strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

// Keys returns every stored path, sorted. Intended for tests.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
