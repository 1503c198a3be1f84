// Package testutils provides test doubles for blueprints, compositions and
// node I/O shared by the package tests.
package testutils

import (
	"maps"
	"slices"
	"sync"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var (
	_ ports.IO                     = (*RecordingIO)(nil)
	_ ports.Composition            = (*StaticComposition)(nil)
	_ ports.Blueprint[any]         = (*RecordingBlueprint[any])(nil)
	_ ports.BlueprintRegistry[any] = StaticRegistry[any](nil)
)

// RecordingIO is an in-memory ports.IO that records every signal. It does
// no port validation; use it to unit test a blueprint's Run in isolation.
type RecordingIO struct {
	// Inputs holds the values returned by Input.
	Inputs map[string]any
	// Outputs holds every value passed to Write.
	Outputs map[string]any
	// WriteErr, when set, is returned from Write and nothing is recorded.
	WriteErr error

	SucceedCalls int
	FailCalls    int
	YieldCalls   int
}

// NewRecordingIO creates a RecordingIO serving inputs.
func NewRecordingIO(inputs map[string]any) *RecordingIO {
	return &RecordingIO{
		Inputs:  maps.Clone(inputs),
		Outputs: make(map[string]any),
	}
}

// Input returns the configured input value.
func (r *RecordingIO) Input(port string) (any, bool) {
	v, ok := r.Inputs[port]
	return v, ok
}

// Write records value under port.
func (r *RecordingIO) Write(port string, value any) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.Outputs[port] = value
	return nil
}

// Succeed counts the call.
func (r *RecordingIO) Succeed() { r.SucceedCalls++ }

// Fail counts the call.
func (r *RecordingIO) Fail() { r.FailCalls++ }

// Yield counts the call.
func (r *RecordingIO) Yield() { r.YieldCalls++ }

// StaticComposition is a fixed ports.Composition for blueprint tests.
type StaticComposition struct {
	ID          string
	InputLinks  []domain.Link
	OutputLinks map[string][]domain.Link
	ConsumerIDs []string
	Params      map[string]any
}

// NodeID returns ID.
func (c *StaticComposition) NodeID() string { return c.ID }

// Input returns the input link targeting port.
func (c *StaticComposition) Input(port string) (domain.Link, bool) {
	for _, l := range c.InputLinks {
		if l.ToPort == port {
			return l, true
		}
	}
	return domain.Link{}, false
}

// Inputs returns InputLinks.
func (c *StaticComposition) Inputs() []domain.Link { return slices.Clone(c.InputLinks) }

// Outputs returns the links leaving port.
func (c *StaticComposition) Outputs(port string) []domain.Link {
	return slices.Clone(c.OutputLinks[port])
}

// Consumers returns ConsumerIDs.
func (c *StaticComposition) Consumers() []string { return slices.Clone(c.ConsumerIDs) }

// Param returns a value from Params.
func (c *StaticComposition) Param(name string) (any, bool) {
	v, ok := c.Params[name]
	return v, ok
}

// ParamNames returns the keys of Params, sorted.
func (c *StaticComposition) ParamNames() []string {
	return slices.Sorted(maps.Keys(c.Params))
}

// Operation names a recorded blueprint call.
type Operation string

// Recorded blueprint operations.
const (
	OpCreate    Operation = "create"
	OpRun       Operation = "run"
	OpFail      Operation = "fail"
	OpTerminate Operation = "terminate"
)

// Call is one recorded blueprint call.
type Call struct {
	Op     Operation
	NodeID string
}

// RecordingBlueprint is a configurable blueprint that records every call.
// Without a RunFunc its nodes succeed without writing. It is safe for
// concurrent use so one instance can back several runs.
type RecordingBlueprint[C any] struct {
	id      string
	configs []domain.NodeConfiguration

	// RunFunc implements Run when set.
	RunFunc func(node ports.Node[C], ctx C, io ports.IO)
	// FailFunc, when set, is called from Fail after recording.
	FailFunc func(node ports.Node[C], ctx C)
	// TerminateFunc, when set, is called from Terminate after recording.
	TerminateFunc func(node ports.Node[C], ctx C)

	mu    sync.Mutex
	calls []Call
}

// NewRecordingBlueprint creates a blueprint with the given configurations.
// With none, a single zero-port configuration is used.
func NewRecordingBlueprint[C any](id string, configs ...domain.NodeConfiguration) *RecordingBlueprint[C] {
	if len(configs) == 0 {
		configs = []domain.NodeConfiguration{domain.NewPortConfigurationBuilder().MustBuild()}
	}
	return &RecordingBlueprint[C]{id: id, configs: configs}
}

// ID returns the blueprint id.
func (b *RecordingBlueprint[C]) ID() string { return b.id }

// Configurations returns the configurations given at construction.
func (b *RecordingBlueprint[C]) Configurations() []domain.NodeConfiguration {
	return slices.Clone(b.configs)
}

// Create binds a base node and records the call.
func (b *RecordingBlueprint[C]) Create(comp ports.Composition, cfg domain.NodeConfiguration) (ports.Node[C], error) {
	n, err := ports.NewBaseNode[C](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	b.record(OpCreate, n.ID())
	return n, nil
}

// Run records the call and delegates to RunFunc.
func (b *RecordingBlueprint[C]) Run(node ports.Node[C], ctx C, io ports.IO) {
	b.record(OpRun, node.ID())
	if b.RunFunc != nil {
		b.RunFunc(node, ctx, io)
		return
	}
	io.Succeed()
}

// Fail records the call.
func (b *RecordingBlueprint[C]) Fail(node ports.Node[C], ctx C) {
	b.record(OpFail, node.ID())
	if b.FailFunc != nil {
		b.FailFunc(node, ctx)
	}
}

// Terminate records the call.
func (b *RecordingBlueprint[C]) Terminate(node ports.Node[C], ctx C) {
	b.record(OpTerminate, node.ID())
	if b.TerminateFunc != nil {
		b.TerminateFunc(node, ctx)
	}
}

func (b *RecordingBlueprint[C]) record(op Operation, nodeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Op: op, NodeID: nodeID})
}

// Calls returns every recorded call in order.
func (b *RecordingBlueprint[C]) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// Count returns how often op was recorded for nodeID.
func (b *RecordingBlueprint[C]) Count(op Operation, nodeID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op && c.NodeID == nodeID {
			n++
		}
	}
	return n
}

// Nodes returns the node ids recorded for op, in call order.
func (b *RecordingBlueprint[C]) Nodes(op Operation) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for _, c := range b.calls {
		if c.Op == op {
			ids = append(ids, c.NodeID)
		}
	}
	return ids
}

// StaticRegistry is a map-backed ports.BlueprintRegistry.
type StaticRegistry[C any] map[string]ports.Blueprint[C]

// Lookup returns the blueprint under id.
func (r StaticRegistry[C]) Lookup(id string) (ports.Blueprint[C], error) {
	bp, ok := r[id]
	if !ok {
		return nil, domain.ErrUnknownBlueprint
	}
	return bp, nil
}

// IDs returns the registered ids sorted.
func (r StaticRegistry[C]) IDs() []string {
	return slices.Sorted(maps.Keys(r))
}
