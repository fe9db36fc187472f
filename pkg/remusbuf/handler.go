package remusbuf

// Handler implements one device kind.
//
// A single Handler instance serves every device of its kind during a cycle
// and may hold kind-wide resources, acquired in Init and released in Cleanup.
// The optional operations are separate interfaces; a handler that does not
// implement one is treated as succeeding at it without being called.
//
// Handler methods for different devices may run concurrently.
type Handler interface {
	// Kind returns the device kind this handler serves.
	Kind() Kind

	// Name identifies the implementation in logs.
	Name() string

	// Init acquires kind-wide resources. Called once per cycle before any
	// device of the kind is matched.
	Init(ctx Context) error

	// Cleanup releases what Init acquired. Called once per cycle after
	// teardown, or when Setup aborts.
	Cleanup(ctx Context)

	// Setup prepares one device for buffering. The device is torn down
	// later whether or not Setup succeeds.
	Setup(ctx Context, dev *Device) error

	// Teardown releases one device. It must be idempotent.
	Teardown(ctx Context, dev *Device) error
}

// Matcher is implemented by handlers that must confirm ownership of a device.
// Match returns nil to claim the device, an error wrapping ErrNotClaimed to
// decline it, or any other error to stop matching.
//
// Handlers without Match claim every device of their kind.
type Matcher interface {
	Match(ctx Context, dev *Device) error
}

// PostSuspender starts buffering a new epoch after the domain is suspended.
type PostSuspender interface {
	PostSuspend(ctx Context, dev *Device) error
}

// PreResumer runs before the domain resumes.
type PreResumer interface {
	PreResume(ctx Context, dev *Device) error
}

// Committer releases the previous epoch once the checkpoint is acknowledged.
type Committer interface {
	Commit(ctx Context, dev *Device) error
}
