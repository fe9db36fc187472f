package drbd

import "errors"

// DRBD control codes for Remus checkpoints.
const (
	// SendCheckpoint asks the driver to emit a checkpoint barrier. It
	// returns without waiting for the peer.
	SendCheckpoint uint = 20
	// WaitCheckpointAck blocks until the peer acknowledged the last barrier.
	WaitCheckpointAck uint = 30
)

// Conn is an open control handle on a DRBD backing device.
type Conn interface {
	// SendCheckpoint issues the non-blocking barrier request.
	SendCheckpoint() error

	// WaitCheckpointAck blocks until the peer acknowledged the last barrier.
	WaitCheckpointAck() error

	// Close releases the handle.
	Close() error
}

// Opener opens a control handle on path.
type Opener func(path string) (Conn, error)

// ErrControlUnavailable is returned by Open on platforms without DRBD.
var ErrControlUnavailable = errors.New("drbd control not available on this platform")
