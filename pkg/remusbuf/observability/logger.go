// Package observability provides logging, metrics and tracing for the
// checkpoint device coordinator.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds device context to a logger.
// Returns a new logger with cycle_id, domid, device, kind and phase fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "c0ffee", 7, "nic/0", "nic", "setup")
//	enriched.Info("running netbuf script")
func EnrichLogger(logger *slog.Logger, cycleID string, domid uint32, device, kind, phase string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("cycle_id", cycleID),
		slog.Uint64("domid", uint64(domid)),
		slog.String("device", device),
		slog.String("kind", kind),
		slog.String("phase", phase),
	)
}

// LogRoundStart logs the start of a fan-out round.
func LogRoundStart(logger *slog.Logger, phase string, devices int) {
	if logger == nil {
		return
	}
	logger.Debug("round starting",
		slog.String("phase", phase),
		slog.Int("devices", devices),
	)
}

// LogRoundComplete logs a round in which every device succeeded.
func LogRoundComplete(logger *slog.Logger, phase string, durationMs float64, devices int) {
	if logger == nil {
		return
	}
	logger.Info("round completed",
		slog.String("phase", phase),
		slog.Float64("duration_ms", durationMs),
		slog.Int("devices", devices),
	)
}

// LogRoundError logs a round with at least one failed device.
func LogRoundError(logger *slog.Logger, phase string, err error, durationMs float64, failed int) {
	if logger == nil {
		return
	}
	logger.Error("round failed",
		slog.String("phase", phase),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.Int("failed", failed),
	)
}

// LogDeviceComplete logs a successful device operation.
func LogDeviceComplete(logger *slog.Logger, op string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("device operation completed",
		slog.String("op", op),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDeviceError logs a failed device operation.
func LogDeviceError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("device operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal write failure (non-fatal).
func LogJournalError(logger *slog.Logger, phase string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.String("phase", phase),
		slog.String("error", err.Error()),
	)
}

// TimedOperation starts a clock for a round or device operation. The
// returned function reports the time elapsed so far; pass it to Ms for the
// duration_ms log field.
//
//	elapsed := TimedOperation()
//	err := op()
//	LogDeviceComplete(logger, phase, Ms(elapsed()))
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// Ms converts d to fractional milliseconds.
func Ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
