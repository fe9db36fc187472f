package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordDeviceOp does nothing.
func (NoopMetrics) RecordDeviceOp(_ context.Context, _, _ string, _ time.Duration, _ error) {}

// RecordRound does nothing.
func (NoopMetrics) RecordRound(_ context.Context, _ string, _ int, _ bool, _ time.Duration) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
var noopSpan = noop.Span{}

// StartRoundSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRoundSpan(ctx context.Context, _, _ string, _ uint32) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartDeviceSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDeviceSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}
