package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var _ ports.Observer = (*TracingObserver)(nil)

// tracerName identifies the driver instrumentation.
const tracerName = "rune-driver"

// TracingObserver emits OpenTelemetry spans: one span per run and one child
// span per node visit. Propagated failures and terminations are recorded as
// events on the run span. Spans travel in the contexts the driver threads
// through the observer calls, so one observer serves concurrent runs.
type TracingObserver struct {
	tracer trace.Tracer
}

// NewTracingObserver creates an observer using tp. A nil tp uses the global
// tracer provider.
func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingObserver{tracer: tp.Tracer(tracerName)}
}

// RunStarted implements ports.Observer by starting the run span.
func (o *TracingObserver) RunStarted(ctx context.Context, ev ports.RunEvent) context.Context {
	ctx, _ = o.tracer.Start(ctx, "Chain.Run",
		trace.WithAttributes(
			attribute.String("rune.run_id", ev.RunID),
			attribute.String("rune.chain_id", ev.ChainID),
			attribute.Int("rune.nodes", ev.Nodes),
		),
	)
	return ctx
}

// NodeStarted implements ports.Observer by starting a node span under the
// run span.
func (o *TracingObserver) NodeStarted(ctx context.Context, ev ports.NodeEvent) context.Context {
	ctx, _ = o.tracer.Start(ctx, "Node.Run",
		trace.WithAttributes(
			attribute.String("rune.node_id", ev.NodeID),
			attribute.String("rune.blueprint", ev.BlueprintID),
			attribute.Int("rune.attempt", ev.Attempt),
		),
	)
	return ctx
}

// NodeFinished implements ports.Observer by closing the node span.
func (o *TracingObserver) NodeFinished(ctx context.Context, ev ports.NodeEvent) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.String("rune.outcome", ev.Outcome.String()),
		attribute.Int64("rune.elapsed_us", ev.Elapsed.Microseconds()),
	)
	switch ev.Outcome {
	case domain.OutcomeFailed:
		span.SetStatus(codes.Error, "node failed")
	case domain.OutcomeYielded:
		span.AddEvent("node.yielded")
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Ok, "")
	}
}

// NodeFailed implements ports.Observer.
func (o *TracingObserver) NodeFailed(ctx context.Context, ev ports.NodeEvent) {
	trace.SpanFromContext(ctx).AddEvent("node.failure_propagated", trace.WithAttributes(
		attribute.String("rune.node_id", ev.NodeID),
		attribute.String("rune.cause", ev.Cause),
	))
}

// NodeTerminated implements ports.Observer.
func (o *TracingObserver) NodeTerminated(ctx context.Context, ev ports.NodeEvent) {
	trace.SpanFromContext(ctx).AddEvent("node.terminated", trace.WithAttributes(
		attribute.String("rune.node_id", ev.NodeID),
		attribute.String("rune.outcome", ev.Outcome.String()),
	))
}

// RunFinished implements ports.Observer by closing the run span.
func (o *TracingObserver) RunFinished(ctx context.Context, ev ports.RunEvent) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.String("rune.outcome", ev.Outcome.String()),
		attribute.Int("rune.passes", ev.Passes),
		attribute.Int("rune.steps", ev.Steps),
	)
	if ev.Outcome == domain.RunSucceeded {
		span.SetStatus(codes.Ok, "run succeeded")
		return
	}
	span.SetStatus(codes.Error, "run "+ev.Outcome.String())
}
