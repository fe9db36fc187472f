package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the coordinator tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("remusbuf")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRoundSpan starts a span for one fan-out round.
	StartRoundSpan(ctx context.Context, phase, cycleID string, domid uint32) (context.Context, trace.Span)

	// StartDeviceSpan starts a span for one device operation.
	// The device span should be a child of the round span.
	StartDeviceSpan(ctx context.Context, op, device string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartRoundSpan starts a span for one fan-out round.
func (m *otelSpanManager) StartRoundSpan(ctx context.Context, phase, cycleID string, domid uint32) (context.Context, trace.Span) {
	return tracer.Start(ctx, "remusbuf.round."+phase,
		trace.WithAttributes(
			attribute.String("round.phase", phase),
			attribute.String("cycle.id", cycleID),
			attribute.Int64("domain.id", int64(domid)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartDeviceSpan starts a span for one device operation.
func (m *otelSpanManager) StartDeviceSpan(ctx context.Context, op, device string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "remusbuf.device."+op,
		trace.WithAttributes(
			attribute.String("device.id", device),
			attribute.String("device.op", op),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
