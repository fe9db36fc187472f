package journal

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory journal for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]storedRecord // cycleID -> records in sequence order
	closed bool
}

// storedRecord holds record data with metadata for List().
type storedRecord struct {
	data      []byte
	timestamp time.Time
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]storedRecord),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(cycleID string, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	m.data[cycleID] = append(m.data[cycleID], storedRecord{
		data:      stored,
		timestamp: time.Now().UTC(),
	})
	return len(m.data[cycleID]), nil
}

// Load implements Store.
func (m *MemoryStore) Load(cycleID string, sequence int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	records := m.data[cycleID]
	if sequence < 1 || sequence > len(records) {
		return nil, ErrNotFound
	}

	rec := records[sequence-1]
	result := make([]byte, len(rec.data))
	copy(result, rec.data)
	return result, nil
}

// List implements Store.
func (m *MemoryStore) List(cycleID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	records := m.data[cycleID]
	infos := make([]Info, 0, len(records))
	for i, rec := range records {
		infos = append(infos, Info{
			CycleID:   cycleID,
			Sequence:  i + 1,
			Timestamp: rec.timestamp,
			Size:      int64(len(rec.data)),
		})
	}
	return infos, nil
}

// DeleteCycle implements Store.
func (m *MemoryStore) DeleteCycle(cycleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, cycleID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of records across all cycles.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, records := range m.data {
		count += len(records)
	}
	return count
}
