// Package journal records the outcome of every coordination round of a
// checkpoint cycle, so operators can see which device held up an epoch.
package journal

import (
	"errors"
	"time"
)

// Store persists journal records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores a record for a cycle and returns its sequence number.
	// Sequence numbers start at 1 and increase per cycle.
	Append(cycleID string, data []byte) (int, error)

	// Load retrieves one record.
	// Returns ErrNotFound if it doesn't exist.
	Load(cycleID string, sequence int) ([]byte, error)

	// List returns all records of a cycle, ordered by sequence.
	// Returns empty slice (not error) if the cycle has no records.
	List(cycleID string) ([]Info, error)

	// DeleteCycle removes all records of a cycle.
	// Returns nil if the cycle has no records.
	DeleteCycle(cycleID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading the record.
type Info struct {
	CycleID   string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("journal record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
