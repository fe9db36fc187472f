package remusbuf

import (
	"log/slog"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf/journal"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/observability"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/script"
	"github.com/randalmurphal/remusbuf/pkg/remusbuf/xs"
)

// coordConfig holds coordinator configuration.
type coordConfig struct {
	logger         *slog.Logger
	maxConcurrency int
	journal        journal.Store
	store          xs.Store
	scripts        script.Runner
	cycleID        string
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
}

// defaultCoordConfig returns the default coordinator configuration.
func defaultCoordConfig() coordConfig {
	return coordConfig{
		logger:  slog.Default(),
		scripts: script.Exec{},
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures a Coordinator.
type Option func(*coordConfig)

// WithLogger sets the logger. Device loggers are enriched with cycle_id,
// domid, device, kind and phase.
func WithLogger(logger *slog.Logger) Option {
	return func(c *coordConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxConcurrency bounds how many device operations run at once within a
// round. Default: 0 (unbounded).
func WithMaxConcurrency(n int) Option {
	return func(c *coordConfig) {
		if n >= 0 {
			c.maxConcurrency = n
		}
	}
}

// WithJournal records the outcome of every round in store.
// Journal failures are logged and never change a round's result.
func WithJournal(store journal.Store) Option {
	return func(c *coordConfig) {
		c.journal = store
	}
}

// WithStore sets the configuration store handed to handlers.
func WithStore(store xs.Store) Option {
	return func(c *coordConfig) {
		c.store = store
	}
}

// WithScripts sets the script runner handed to handlers.
// Default: script.Exec.
func WithScripts(r script.Runner) Option {
	return func(c *coordConfig) {
		if r != nil {
			c.scripts = r
		}
	}
}

// WithCycleID sets the cycle identifier. If not set, a UUID is generated.
func WithCycleID(id string) Option {
	return func(c *coordConfig) {
		c.cycleID = id
	}
}

// WithMetrics enables OpenTelemetry metrics using the global meter provider.
//
// Metrics recorded:
//   - remusbuf.device.operations: counter per kind and op
//   - remusbuf.device.latency_ms: histogram of device operation latency
//   - remusbuf.device.errors: counter of failed device operations
//   - remusbuf.round.runs: counter per phase and success
//   - remusbuf.round.latency_ms: histogram of round latency
//   - remusbuf.round.devices: histogram of devices per round
func WithMetrics(enabled bool) Option {
	return func(c *coordConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans using the global tracer provider.
// Each round gets a span with one child span per device.
func WithTracing(enabled bool) Option {
	return func(c *coordConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}
