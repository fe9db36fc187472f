package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records coordinator metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDeviceOp records one device operation with its duration and error status.
	RecordDeviceOp(ctx context.Context, kind, op string, duration time.Duration, err error)

	// RecordRound records the completion of a fan-out round.
	RecordRound(ctx context.Context, phase string, devices int, success bool, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	deviceOps     metric.Int64Counter
	deviceLatency metric.Float64Histogram
	deviceErrors  metric.Int64Counter
	rounds        metric.Int64Counter
	roundLatency  metric.Float64Histogram
	roundDevices  metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("remusbuf")

	deviceOps, err := meter.Int64Counter("remusbuf.device.operations",
		metric.WithDescription("Number of device operations"),
	)
	if err != nil {
		return nil, err
	}

	deviceLatency, err := meter.Float64Histogram("remusbuf.device.latency_ms",
		metric.WithDescription("Device operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deviceErrors, err := meter.Int64Counter("remusbuf.device.errors",
		metric.WithDescription("Number of failed device operations"),
	)
	if err != nil {
		return nil, err
	}

	rounds, err := meter.Int64Counter("remusbuf.round.runs",
		metric.WithDescription("Number of fan-out rounds"),
	)
	if err != nil {
		return nil, err
	}

	roundLatency, err := meter.Float64Histogram("remusbuf.round.latency_ms",
		metric.WithDescription("Round latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	roundDevices, err := meter.Int64Histogram("remusbuf.round.devices",
		metric.WithDescription("Devices targeted per round"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		deviceOps:     deviceOps,
		deviceLatency: deviceLatency,
		deviceErrors:  deviceErrors,
		rounds:        rounds,
		roundLatency:  roundLatency,
		roundDevices:  roundDevices,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDeviceOp records one device operation.
func (m *otelMetrics) RecordDeviceOp(ctx context.Context, kind, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("op", op),
	)

	m.deviceOps.Add(ctx, 1, attrs)
	m.deviceLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.deviceErrors.Add(ctx, 1, attrs)
	}
}

// RecordRound records a round.
func (m *otelMetrics) RecordRound(ctx context.Context, phase string, devices int, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.Bool("success", success),
	)
	m.rounds.Add(ctx, 1, attrs)
	m.roundLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.roundDevices.Record(ctx, int64(devices), metric.WithAttributes(attribute.String("phase", phase)))
}
