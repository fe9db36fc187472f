package remusbuf

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// lifecycle tracks where a Coordinator is in its cycle.
type lifecycle int

const (
	stateIdle lifecycle = iota
	stateSetUp
	stateTornDown
)

// Coordinator drives a domain's devices through one checkpoint cycle:
// Setup, then any number of Postsuspend/Preresume/Commit rounds, then
// Teardown.
//
// Every round targets a set of devices concurrently and returns once all of
// them have reported, with the first failure (if any) wrapped in a
// *RoundError. Rounds on one Coordinator are serialized.
type Coordinator struct {
	mu sync.Mutex

	domid      uint32
	params     Params
	registry   *Registry
	discoverer Discoverer
	cfg        coordConfig
	base       *cycleContext

	lifecycle   lifecycle
	initialized []Handler
	nics        []NIC
	disks       []Disk
	// worklist holds every device whose Setup was invoked, in completion
	// order. It is the target of every later round.
	worklist []*Device
	last     *roundOutcome
}

// New creates a Coordinator for domid. Handlers come from reg; devices
// from disc, for the kinds params enables. A nil disc discovers nothing.
//
// Example:
//
//	coord := remusbuf.New(domid, remusbuf.Params{NetBuffer: true, DiskBuffer: true},
//	    builtin.Registry(settings), discoverer,
//	    remusbuf.WithStore(store),
//	    remusbuf.WithLogger(logger))
//	if err := coord.Setup(ctx); err != nil {
//	    _ = coord.Teardown(ctx)
//	    return err
//	}
func New(domid uint32, params Params, reg *Registry, disc Discoverer, opts ...Option) *Coordinator {
	cfg := defaultCoordConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cycleID == "" {
		cfg.cycleID = uuid.New().String()
	}
	if reg == nil {
		reg = NewRegistry()
	}

	return &Coordinator{
		domid:      domid,
		params:     params,
		registry:   reg,
		discoverer: disc,
		cfg:        cfg,
		base: &cycleContext{
			Context: context.Background(),
			logger:  cfg.logger,
			store:   cfg.store,
			scripts: cfg.scripts,
			domid:   domid,
			cycleID: cfg.cycleID,
		},
	}
}

// CycleID returns the identifier of this checkpoint cycle.
func (c *Coordinator) CycleID() string {
	return c.cfg.cycleID
}

// Setup initializes the enabled handlers, discovers devices, matches each
// to a handler and sets it up.
//
// If a handler fails to initialize or discovery fails, the handlers already
// initialized are cleaned up and the error is returned; no device is
// touched and Setup may be retried. Otherwise every discovered device is
// handled before Setup returns. Devices whose Setup was invoked join the
// worklist even when it failed, so Teardown reaches them.
func (c *Coordinator) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.lifecycle {
	case stateSetUp:
		return ErrAlreadySetUp
	case stateTornDown:
		return ErrTornDown
	}

	sctx := c.base.withPhase(ctx, PhaseSetup)
	if err := c.initHandlers(sctx); err != nil {
		return err
	}

	nics, disks, err := c.discover(ctx)
	if err != nil {
		c.cleanupHandlers(sctx)
		return fmt.Errorf("discover devices: %w", err)
	}
	c.nics, c.disks = nics, disks

	devs := make([]*Device, 0, len(nics)+len(disks))
	for _, nic := range nics {
		devs = append(devs, NewNICDevice(nic))
	}
	for _, disk := range disks {
		devs = append(devs, NewDiskDevice(disk))
	}

	c.lifecycle = stateSetUp
	out := c.fanOut(ctx, PhaseSetup, devs, c.setupDevice)

	c.worklist = make([]*Device, 0, len(out.completed))
	for _, dev := range out.completed {
		if dev.handler != nil {
			c.worklist = append(c.worklist, dev)
		}
	}
	c.last = out
	return out.err()
}

// setupDevice matches dev and, once claimed, sets it up.
func (c *Coordinator) setupDevice(ctx Context, dev *Device) error {
	h, err := c.registry.Match(ctx, dev)
	if err != nil {
		return &DeviceError{Device: dev.ID(), Kind: dev.kind, Op: "match", Err: err}
	}
	return h.Setup(ctx, dev)
}

// Postsuspend starts buffering a new epoch on every set-up device.
func (c *Coordinator) Postsuspend(ctx context.Context) error {
	return c.checkpointRound(ctx, PhasePostsuspend, func(ctx Context, dev *Device) error {
		if h, ok := dev.handler.(PostSuspender); ok {
			return h.PostSuspend(ctx, dev)
		}
		return nil
	})
}

// Preresume runs the pre-resume step on every set-up device.
func (c *Coordinator) Preresume(ctx context.Context) error {
	return c.checkpointRound(ctx, PhasePreresume, func(ctx Context, dev *Device) error {
		if h, ok := dev.handler.(PreResumer); ok {
			return h.PreResume(ctx, dev)
		}
		return nil
	})
}

// Commit releases the previous epoch on every set-up device.
func (c *Coordinator) Commit(ctx context.Context) error {
	return c.checkpointRound(ctx, PhaseCommit, func(ctx Context, dev *Device) error {
		if h, ok := dev.handler.(Committer); ok {
			return h.Commit(ctx, dev)
		}
		return nil
	})
}

// checkpointRound runs op over the worklist.
func (c *Coordinator) checkpointRound(ctx context.Context, phase Phase, op deviceOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifecycle == stateTornDown {
		return ErrTornDown
	}

	out := c.fanOut(ctx, phase, c.worklist, op)
	c.last = out
	return out.err()
}

// Teardown tears down every device in the worklist, then cleans up every
// initialized handler, and returns the first teardown failure.
//
// Teardown failures never stop the other devices. Calling Teardown on a
// coordinator that was never set up only cleans up; a second call is a
// no-op.
func (c *Coordinator) Teardown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifecycle == stateTornDown {
		return nil
	}

	var err error
	if c.lifecycle == stateSetUp {
		out := c.fanOut(ctx, PhaseTeardown, c.worklist, func(ctx Context, dev *Device) error {
			return dev.handler.Teardown(ctx, dev)
		})
		c.last = out
		err = out.err()
	}

	c.worklist = nil
	c.nics = nil
	c.disks = nil
	c.cleanupHandlers(c.base.withPhase(ctx, PhaseTeardown))
	c.lifecycle = stateTornDown
	return err
}

// Run executes the round named by phase.
func (c *Coordinator) Run(ctx context.Context, phase Phase) error {
	switch phase {
	case PhaseSetup:
		return c.Setup(ctx)
	case PhasePostsuspend:
		return c.Postsuspend(ctx)
	case PhasePreresume:
		return c.Preresume(ctx)
	case PhaseCommit:
		return c.Commit(ctx)
	case PhaseTeardown:
		return c.Teardown(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
}

// Start runs the round named by phase in a new goroutine and calls done
// exactly once with its result.
func (c *Coordinator) Start(ctx context.Context, phase Phase, done func(error)) {
	go func() {
		done(c.Run(ctx, phase))
	}()
}

// initHandlers calls Init on every handler of an enabled kind, in
// registration order. On failure the handlers already initialized are
// cleaned up.
func (c *Coordinator) initHandlers(ctx *cycleContext) error {
	for _, h := range c.registry.All() {
		if !c.params.Enabled(h.Kind()) {
			continue
		}
		if err := h.Init(ctx); err != nil {
			c.cleanupHandlers(ctx)
			return fmt.Errorf("init %s handler %s: %w", h.Kind(), h.Name(), err)
		}
		c.initialized = append(c.initialized, h)
	}
	return nil
}

// cleanupHandlers calls Cleanup on every initialized handler.
func (c *Coordinator) cleanupHandlers(ctx *cycleContext) {
	for _, h := range c.initialized {
		h.Cleanup(ctx)
	}
	c.initialized = nil
}

// discover lists the devices of every enabled kind concurrently.
func (c *Coordinator) discover(ctx context.Context) (nics []NIC, disks []Disk, err error) {
	if c.discoverer == nil {
		return nil, nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.params.NetBuffer {
		g.Go(func() error {
			var err error
			if nics, err = c.discoverer.NICs(gctx, c.domid); err != nil {
				return fmt.Errorf("list nics: %w", err)
			}
			return nil
		})
	}
	if c.params.DiskBuffer {
		g.Go(func() error {
			var err error
			if disks, err = c.discoverer.Disks(gctx, c.domid); err != nil {
				return fmt.Errorf("list disks: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nics, disks, nil
}
