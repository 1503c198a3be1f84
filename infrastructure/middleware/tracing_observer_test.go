package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/go-rune/internal/domain"
)

// recordingProvider hands out tracers that keep every span they start.
type recordingProvider struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []*recordingSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{provider: p}
}

type recordingTracer struct {
	noop.Tracer
	provider *recordingProvider
}

func (tr *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, attrs: cfg.Attributes()}
	if parent, ok := trace.SpanFromContext(ctx).(*recordingSpan); ok {
		span.parent = parent
	}

	tr.provider.mu.Lock()
	tr.provider.spans = append(tr.provider.spans, span)
	tr.provider.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordingSpan struct {
	noop.Span
	name   string
	parent *recordingSpan
	attrs  []attribute.KeyValue
	events []string
	status codes.Code
	ended  int
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended++ }
func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) { s.events = append(s.events, name) }
func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }
func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) { s.attrs = append(s.attrs, kv...) }
func (s *recordingSpan) IsRecording() bool { return true }

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingObserver(t *testing.T) {
	tp := &recordingProvider{}
	obs := NewTracingObserver(tp)

	chain := failingChain(t, nil)
	res := execute(t, chain, domain.NewRuneExecutionContext("metered", "run-7"), obs)
	require.Equal(t, domain.RunFailed, res.Outcome)

	require.Len(t, tp.spans, 4, "one run span and one span per visited node")
	run := tp.spans[0]
	assert.Equal(t, "Chain.Run", run.name)
	assert.Nil(t, run.parent)
	assert.Equal(t, 1, run.ended)
	assert.Equal(t, codes.Error, run.status)

	id, ok := run.attr("rune.run_id")
	require.True(t, ok)
	assert.Equal(t, "run-7", id.AsString())
	outcome, _ := run.attr("rune.outcome")
	assert.Equal(t, "failed", outcome.AsString())

	assert.Equal(t, []string{
		"node.failure_propagated",
		"node.terminated",
		"node.terminated",
		"node.terminated",
		"node.terminated",
	}, run.events)

	wantStatus := map[string]codes.Code{
		"value": codes.Ok,
		"twice": codes.Ok,
		"gate":  codes.Error,
	}
	for _, span := range tp.spans[1:] {
		assert.Equal(t, "Node.Run", span.name)
		assert.Same(t, run, span.parent)
		assert.Equal(t, 1, span.ended)

		node, ok := span.attr("rune.node_id")
		require.True(t, ok)
		assert.Equal(t, wantStatus[node.AsString()], span.status, node.AsString())
	}
}

func TestTracingObserver_Yield(t *testing.T) {
	tp := &recordingProvider{}
	obs := NewTracingObserver(tp)

	b := newDelayChain(t)
	res := execute(t, b, domain.NewRuneExecutionContext("delayed", ""), obs)
	require.Equal(t, domain.RunSucceeded, res.Outcome)
	assert.Equal(t, codes.Ok, tp.spans[0].status)

	yields := 0
	for _, span := range tp.spans[1:] {
		for _, ev := range span.events {
			if ev == "node.yielded" {
				yields++
			}
		}
	}
	assert.Equal(t, 1, yields)
}

func TestNewTracingObserver_GlobalProvider(t *testing.T) {
	obs := NewTracingObserver(nil)
	ctx := obs.RunStarted(context.Background(), runEvent())
	assert.NotPanics(t, func() { obs.RunFinished(ctx, runEvent()) })
}
