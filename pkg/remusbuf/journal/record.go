package journal

import (
	"encoding/json"
	"time"
)

// Version is the current record format version.
// Increment when making breaking changes to Record.
const Version = 1

// Record is the persisted outcome of one coordination round.
type Record struct {
	Version   int       `json:"version"`
	CycleID   string    `json:"cycle_id"`
	DomainID  uint32    `json:"domid"`
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`

	// Devices is the number of devices the round targeted.
	Devices int `json:"devices"`
	// Failed is the number of devices that reported an error.
	Failed int `json:"failed"`
	// Error is the round's aggregate (first) error, empty on success.
	Error string `json:"error,omitempty"`

	DurationMs int64          `json:"duration_ms"`
	Results    []DeviceResult `json:"results,omitempty"`
}

// DeviceResult is one device's contribution to a round.
type DeviceResult struct {
	Device string `json:"device"`
	Kind   string `json:"kind"`
	Error  string `json:"error,omitempty"`
}

// New creates a record stamped with the current time.
func New(cycleID string, domid uint32, phase string) *Record {
	return &Record{
		Version:   Version,
		CycleID:   cycleID,
		DomainID:  domid,
		Phase:     phase,
		Timestamp: time.Now().UTC(),
	}
}

// Marshal serializes a record to JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
