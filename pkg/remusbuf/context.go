package remusbuf

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/observability"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/script"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/xs"
)

// Context is passed to every handler call.
// It extends context.Context with the cycle's services and metadata.
//
// The coordinator derives one Context per device and round, with a logger
// enriched with the device and phase.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with cycle and device context.
	// Never returns nil.
	Logger() *slog.Logger

	// Store returns the configuration store, or nil if not configured.
	Store() xs.Store

	// Scripts returns the script runner. Never returns nil.
	Scripts() script.Runner

	// DomainID returns the domain being replicated.
	DomainID() uint32

	// CycleID returns the unique identifier of this checkpoint cycle.
	CycleID() string

	// Phase returns the round being executed.
	Phase() Phase
}

// cycleContext is the internal implementation of Context.
type cycleContext struct {
	context.Context

	logger  *slog.Logger
	store   xs.Store
	scripts script.Runner
	domid   uint32
	cycleID string
	phase   Phase
}

// Logger returns the configured logger.
func (c *cycleContext) Logger() *slog.Logger {
	return c.logger
}

// Store returns the configuration store.
func (c *cycleContext) Store() xs.Store {
	return c.store
}

// Scripts returns the script runner.
func (c *cycleContext) Scripts() script.Runner {
	return c.scripts
}

// DomainID returns the domain identifier.
func (c *cycleContext) DomainID() uint32 {
	return c.domid
}

// CycleID returns the cycle identifier.
func (c *cycleContext) CycleID() string {
	return c.cycleID
}

// Phase returns the current phase.
func (c *cycleContext) Phase() Phase {
	return c.phase
}

// ContextOption configures a Context built by NewContext.
type ContextOption func(*cycleContext)

// WithContextLogger sets the logger.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *cycleContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextStore sets the configuration store.
func WithContextStore(store xs.Store) ContextOption {
	return func(c *cycleContext) {
		c.store = store
	}
}

// WithContextScripts sets the script runner.
func WithContextScripts(r script.Runner) ContextOption {
	return func(c *cycleContext) {
		if r != nil {
			c.scripts = r
		}
	}
}

// WithContextCycleID sets the cycle identifier.
// If not set, a UUID is generated.
func WithContextCycleID(id string) ContextOption {
	return func(c *cycleContext) {
		c.cycleID = id
	}
}

// WithContextPhase sets the phase.
func WithContextPhase(p Phase) ContextOption {
	return func(c *cycleContext) {
		c.phase = p
	}
}

// NewContext creates a handler Context for domid. The coordinator builds its
// own; NewContext is for driving handlers directly, e.g. in tests.
//
// Example:
//
//	ctx := remusbuf.NewContext(context.Background(), 7,
//	    remusbuf.WithContextStore(store),
//	    remusbuf.WithContextPhase(remusbuf.PhaseSetup))
func NewContext(ctx context.Context, domid uint32, opts ...ContextOption) Context {
	c := &cycleContext{
		Context: ctx,
		logger:  slog.Default(),
		scripts: script.Exec{},
		domid:   domid,
		cycleID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// withPhase returns a copy of c for another round.
func (c *cycleContext) withPhase(ctx context.Context, p Phase) *cycleContext {
	cp := *c
	cp.Context = ctx
	cp.phase = p
	return &cp
}

// withDevice returns a copy of c whose logger carries the device.
func (c *cycleContext) withDevice(ctx context.Context, dev *Device) *cycleContext {
	cp := *c
	cp.Context = ctx
	cp.logger = observability.EnrichLogger(c.logger, c.cycleID, c.domid, dev.ID(), dev.kind.String(), string(c.phase))
	return &cp
}
