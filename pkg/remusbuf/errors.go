package remusbuf

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching.
var (
	// ErrNotClaimed is returned by Matcher.Match when a handler declines a device.
	// The registry then tries the next handler of the same kind. It never
	// surfaces from a round.
	ErrNotClaimed = errors.New("device not claimed by handler")

	// ErrUnsupported indicates no registered handler claimed the device.
	ErrUnsupported = errors.New("device kind not supported")
)

// Sentinel errors for lifecycle misuse.
var (
	// ErrAlreadySetUp indicates Setup was called on a coordinator that is set up.
	ErrAlreadySetUp = errors.New("coordinator already set up")

	// ErrTornDown indicates a round was requested after Teardown.
	ErrTornDown = errors.New("coordinator torn down")

	// ErrUnknownPhase indicates Start was given a phase it cannot run.
	ErrUnknownPhase = errors.New("unknown phase")
)

// DeviceError wraps an error with device context.
type DeviceError struct {
	// Device is the device identifier, e.g. "nic/0" or "disk/xvda".
	Device string
	// Kind is the device kind.
	Kind Kind
	// Op is the operation that failed ("match", "setup", "postsuspend", ...).
	Op string
	// Err is the underlying error from the handler.
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// RoundError is the aggregated outcome of a round in which at least one
// device failed. Err is the first failure in completion order; later
// failures are only counted.
type RoundError struct {
	// Phase is the round's phase.
	Phase Phase
	// Devices is the number of devices the round targeted.
	Devices int
	// Failed is the number of devices that reported an error.
	Failed int
	// Err is the first device error.
	Err error
}

// Error implements the error interface.
func (e *RoundError) Error() string {
	return fmt.Sprintf("%s round: %d of %d devices failed: %v", e.Phase, e.Failed, e.Devices, e.Err)
}

// Unwrap returns the first device error for errors.Is/As support.
func (e *RoundError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a handler operation.
type PanicError struct {
	// Device is the device whose operation panicked.
	Device string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("device %s panicked: %v", e.Device, e.Value)
}
