package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-rune/internal/ctxlog"
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// FailurePolicy decides what a run does after a node fails for good.
type FailurePolicy int

const (
	// ContinueIndependent fails the node's transitive consumers and keeps
	// running branches that do not depend on it.
	ContinueIndependent FailurePolicy = iota

	// AbortOnFailure fails the node's transitive consumers and then stops
	// the run.
	AbortOnFailure
)

// String returns the policy name.
func (p FailurePolicy) String() string {
	switch p {
	case ContinueIndependent:
		return "continue"
	case AbortOnFailure:
		return "abort"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

const (
	defaultMaxPasses   = 64
	defaultMaxAttempts = 1
)

type driverOptions struct {
	logger      *slog.Logger
	observers   []ports.Observer
	policy      FailurePolicy
	maxPasses   int
	maxAttempts int
}

// DriverOption configures a Driver.
type DriverOption func(*driverOptions)

// WithLogger sets the logger used for run and node records. Without it the
// logger attached to the context passed to Start is used.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(o *driverOptions) { o.logger = logger }
}

// WithObservers attaches observers that receive run and node events.
func WithObservers(observers ...ports.Observer) DriverOption {
	return func(o *driverOptions) { o.observers = append(o.observers, observers...) }
}

// WithFailurePolicy sets the failure policy. The default is
// ContinueIndependent.
func WithFailurePolicy(policy FailurePolicy) DriverOption {
	return func(o *driverOptions) { o.policy = policy }
}

// WithMaxPasses bounds the number of passes a run may take before it ends
// as exhausted. Values below 1 are ignored.
func WithMaxPasses(n int) DriverOption {
	return func(o *driverOptions) {
		if n > 0 {
			o.maxPasses = n
		}
	}
}

// WithMaxAttempts sets how many times a node that fails itself is visited
// before the failure becomes final. Retries happen in later passes. Values
// below 1 are ignored.
func WithMaxAttempts(n int) DriverOption {
	return func(o *driverOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// Driver executes chain instances. A Driver holds only configuration and
// may be shared; every run gets its own Execution.
type Driver[C any] struct {
	opts driverOptions
}

// NewDriver creates a driver with the given options.
func NewDriver[C any](opts ...DriverOption) *Driver[C] {
	o := driverOptions{
		maxPasses:   defaultMaxPasses,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Driver[C]{opts: o}
}

// runIdentifier is implemented by execution contexts that carry their own
// run id.
type runIdentifier interface {
	RunID() string
}

// Start begins a run of chain against rc. The chain is consumed: starting it
// a second time returns domain.ErrChainConsumed. ctx is used for logging and
// observers only; cancellation is honoured by Execution.Run.
func (d *Driver[C]) Start(ctx context.Context, chain *Chain[C], rc C) (*Execution[C], error) {
	if chain == nil {
		return nil, fmt.Errorf("chain cannot be nil")
	}
	if chain.consumed {
		return nil, fmt.Errorf("chain %s: %w", chain.ID(), domain.ErrChainConsumed)
	}
	chain.consumed = true

	runID := ""
	if r, ok := any(rc).(runIdentifier); ok {
		runID = r.RunID()
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := d.opts.logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	logger = logger.With("run_id", runID, "chain_id", chain.ID())

	e := &Execution[C]{
		policy:      d.opts.policy,
		maxPasses:   d.opts.maxPasses,
		maxAttempts: d.opts.maxAttempts,
		observers:   observerSet(d.opts.observers),
		logger:      logger,
		chain:       chain,
		rc:          rc,
		runID:       runID,
		states:      make([]nodeState[C], len(chain.nodes)),
		start:       time.Now(),
	}
	for i, n := range chain.nodes {
		e.states[i].node = n
	}

	e.ctx = e.observers.runStarted(ctxlog.WithLogger(ctx, logger), e.runEvent())
	logger.Debug("Run started", "nodes", len(chain.nodes), "policy", e.policy.String())
	return e, nil
}

// Execute starts chain and runs it to completion. The returned error is
// Result.Err, or the error from Start.
func (d *Driver[C]) Execute(ctx context.Context, chain *Chain[C], rc C) (Result, error) {
	e, err := d.Start(ctx, chain, rc)
	if err != nil {
		return Result{}, err
	}
	res := e.Run(ctx)
	return res, res.Err()
}

// nodeState is the driver-side bookkeeping for one node of one run.
type nodeState[C any] struct {
	node     ports.Node[C]
	outcome  domain.NodeOutcome
	attempts int
	// visitedPass is the last pass the node was visited in.
	visitedPass int
	outputs     map[string]any
	cause       string
	terminated  bool
}

// Execution is one run of one chain instance. It is single-threaded: all
// methods must be called from the goroutine driving the run.
type Execution[C any] struct {
	policy      FailurePolicy
	maxPasses   int
	maxAttempts int
	observers   observerSet
	logger      *slog.Logger

	ctx    context.Context
	chain  *Chain[C]
	rc     C
	runID  string
	states []nodeState[C]

	passes   int
	passOpen bool
	steps    int
	start    time.Time
	elapsed  time.Duration
	outcome  domain.RunOutcome
	done     bool
}

// RunID returns the id of the run.
func (e *Execution[C]) RunID() string { return e.runID }

// Done reports whether the run has finished and every node was terminated.
func (e *Execution[C]) Done() bool { return e.done }

// Step visits the next ready node of the current pass, opening a new pass
// if none is open. It returns false when nothing was visited, either
// because the pass is complete or because the run has finished.
func (e *Execution[C]) Step() bool {
	if e.done {
		return false
	}
	if !e.passOpen {
		if !e.hasWork() {
			e.finish(e.decide())
			return false
		}
		if e.passes >= e.maxPasses {
			e.logger.Warn("Pass limit reached with work pending", "max_passes", e.maxPasses)
			e.finish(domain.RunExhausted)
			return false
		}
		e.passes++
		e.passOpen = true
	}

	i, inputs, aborted := e.nextReady()
	if aborted {
		e.finish(domain.RunFailed)
		return false
	}
	if i < 0 {
		e.passOpen = false
		if !e.hasWork() {
			e.finish(e.decide())
		}
		return false
	}

	e.steps++
	if failed := e.visit(i, inputs); failed && e.policy == AbortOnFailure {
		e.logger.Info("Aborting run after node failure", "node", e.states[i].node.ID())
		e.finish(domain.RunFailed)
	}
	return true
}

// Pass completes the current pass, or runs one full pass if none is open.
// It reports whether the run has finished.
func (e *Execution[C]) Pass() bool {
	for e.Step() {
	}
	return e.done
}

// Run drives passes until the run finishes. Cancellation of ctx is checked
// between steps and ends the run as cancelled.
func (e *Execution[C]) Run(ctx context.Context) Result {
	for !e.done {
		if err := ctx.Err(); err != nil {
			e.logger.Info("Run cancelled", "error", err)
			e.finish(domain.RunCancelled)
			break
		}
		e.Step()
	}
	return e.Result()
}

// Cancel stops the run and terminates every node. It is a no-op on a
// finished run.
func (e *Execution[C]) Cancel() {
	if e.done {
		return
	}
	e.logger.Info("Run cancelled")
	e.finish(domain.RunCancelled)
}

// NodeOutcome returns the current outcome of nodeID.
func (e *Execution[C]) NodeOutcome(nodeID string) (domain.NodeOutcome, bool) {
	i, ok := e.chain.template.index[nodeID]
	if !ok {
		return domain.OutcomePending, false
	}
	return e.states[i].outcome, true
}

// Output returns the value nodeID wrote to port, if it succeeded.
func (e *Execution[C]) Output(nodeID, port string) (any, bool) {
	i, ok := e.chain.template.index[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := e.states[i].outputs[port]
	return v, ok
}

// Result returns a summary of the run so far.
func (e *Execution[C]) Result() Result {
	res := Result{
		RunID:   e.runID,
		ChainID: e.chain.ID(),
		Outcome: e.outcome,
		Passes:  e.passes,
		Steps:   e.steps,
		Elapsed: e.elapsed,
	}
	if !e.done {
		res.Elapsed = time.Since(e.start)
	}
	for _, st := range e.states {
		id := st.node.ID()
		switch st.outcome {
		case domain.OutcomeSucceeded:
			res.Succeeded = append(res.Succeeded, id)
		case domain.OutcomeFailed:
			res.Failed = append(res.Failed, id)
		case domain.OutcomeSkipped:
			res.Skipped = append(res.Skipped, id)
		default:
			res.Pending = append(res.Pending, id)
		}
	}
	return res
}

// hasWork reports whether any node can still change outcome.
func (e *Execution[C]) hasWork() bool {
	for _, st := range e.states {
		if st.outcome == domain.OutcomePending {
			return true
		}
	}
	return false
}

// nextReady returns the first node in execution order that has not been
// visited in the current pass and whose producers have all succeeded,
// together with its inputs. Nodes found to miss a required input are
// failed on the way, and under AbortOnFailure the first such node ends the
// search and reports true. It returns -1 if no node is ready.
func (e *Execution[C]) nextReady() (int, map[string]any, bool) {
	for i := range e.states {
		st := &e.states[i]
		if st.outcome != domain.OutcomePending || st.visitedPass == e.passes {
			continue
		}

		inputs, missing, ready := e.gatherInputs(i)
		if missing != "" {
			e.skip(i, missing)
			e.propagate(i)
			if e.policy == AbortOnFailure {
				e.logger.Info("Aborting run after input failure", "node", st.node.ID(), "producer", missing)
				return -1, nil, true
			}
			continue
		}
		if ready {
			return i, inputs, false
		}
	}
	return -1, nil, false
}

// gatherInputs collects the values feeding node i. ready is false while a
// producer is still pending. missing names the producer of a required
// input that succeeded without writing the linked port.
func (e *Execution[C]) gatherInputs(i int) (inputs map[string]any, missing string, ready bool) {
	st := &e.states[i]
	cfg := st.node.Configuration()

	bound := e.chain.bound(i)
	inputs = make(map[string]any, len(bound))
	for port, v := range bound {
		inputs[port] = v
	}

	for _, l := range st.node.Composition().Inputs() {
		j, ok := e.chain.template.index[l.FromNode]
		if !ok {
			continue
		}
		producer := &e.states[j]
		switch producer.outcome {
		case domain.OutcomeSucceeded:
		case domain.OutcomePending:
			return nil, "", false
		default:
			return nil, l.FromNode, false
		}

		p, _ := cfg.Port(l.ToPort)
		v, ok := producer.outputs[l.FromPort]
		if !ok {
			if p.Optional {
				continue
			}
			return nil, l.FromNode, false
		}
		cv, ok := p.Type.Coerce(v)
		if !ok {
			e.logger.Warn("Input value does not match port type",
				"node", st.node.ID(), "link", l.String(), "type", p.Type, "value_type", fmt.Sprintf("%T", v))
			return nil, l.FromNode, false
		}
		inputs[l.ToPort] = cv
	}
	return inputs, "", true
}

// visit runs node i once and records the outcome. It reports whether the
// node failed for good.
func (e *Execution[C]) visit(i int, inputs map[string]any) bool {
	st := &e.states[i]
	st.attempts++
	st.visitedPass = e.passes

	node := st.node
	bp := node.Blueprint()
	logger := e.logger.With("node", node.ID(), "blueprint", bp.ID(), "attempt", st.attempts)

	ev := e.nodeEvent(st)
	nodeCtx := e.observers.nodeStarted(e.ctx, ev)

	io := newNodeIO(node.Configuration(), inputs)
	started := time.Now()
	panicErr := e.protect(logger, "run", func() { bp.Run(node, e.rc, io) })
	ev.Elapsed = time.Since(started)

	outcome, err := io.outcome()
	if panicErr != nil {
		outcome, err = domain.OutcomeFailed, panicErr
	}

	failed := false
	switch outcome {
	case domain.OutcomeSucceeded:
		st.outcome = domain.OutcomeSucceeded
		st.outputs = io.outputs
		logger.Debug("Node succeeded", "outputs", len(io.outputs))
	case domain.OutcomeYielded:
		logger.Debug("Node yielded")
	default:
		if err != nil {
			logger.Warn("Node contract violation", "error", err)
		}
		if st.attempts < e.maxAttempts {
			logger.Info("Node failed, retrying next pass", "max_attempts", e.maxAttempts)
			outcome = domain.OutcomeYielded
			break
		}
		st.outcome = domain.OutcomeFailed
		failed = true
		logger.Info("Node failed")
	}

	ev.Outcome = outcome
	e.observers.nodeFinished(nodeCtx, ev)

	if failed {
		e.propagate(i)
	}
	return failed
}

// propagate fails every transitive consumer of node origin that has not
// finished, breadth first, each once.
func (e *Execution[C]) propagate(origin int) {
	cause := e.states[origin].node.ID()
	seen := map[int]struct{}{origin: {}}
	queue := e.consumers(origin)

	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		if _, ok := seen[j]; ok {
			continue
		}
		seen[j] = struct{}{}

		if e.states[j].outcome != domain.OutcomePending {
			continue
		}
		e.skip(j, cause)
		queue = append(queue, e.consumers(j)...)
	}
}

func (e *Execution[C]) consumers(i int) []int {
	ids := e.states[i].node.Composition().Consumers()
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if j, ok := e.chain.template.index[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// skip marks node i as failed through propagation and calls its
// blueprint's Fail.
func (e *Execution[C]) skip(i int, cause string) {
	st := &e.states[i]
	st.outcome = domain.OutcomeSkipped
	st.cause = cause

	node := st.node
	logger := e.logger.With("node", node.ID(), "blueprint", node.Blueprint().ID())
	logger.Debug("Propagating failure", "cause", cause)
	_ = e.protect(logger, "fail", func() { node.Blueprint().Fail(node, e.rc) })

	e.observers.nodeFailed(e.ctx, e.nodeEvent(st))
}

// finish ends the run with outcome and terminates every node once, in
// execution order.
func (e *Execution[C]) finish(outcome domain.RunOutcome) {
	e.done = true
	e.passOpen = false
	e.outcome = outcome

	for i := range e.states {
		st := &e.states[i]
		if st.terminated {
			continue
		}
		st.terminated = true

		node := st.node
		logger := e.logger.With("node", node.ID(), "blueprint", node.Blueprint().ID())
		_ = e.protect(logger, "terminate", func() { node.Blueprint().Terminate(node, e.rc) })
		e.observers.nodeTerminated(e.ctx, e.nodeEvent(st))
	}

	e.elapsed = time.Since(e.start)
	e.observers.runFinished(e.ctx, e.runEvent())
	e.logger.Info("Run finished",
		"outcome", outcome.String(),
		"passes", e.passes,
		"steps", e.steps,
		"elapsed", e.elapsed)
}

// decide computes the outcome of a run that ran out of work: it succeeded
// when every required node succeeded.
func (e *Execution[C]) decide() domain.RunOutcome {
	for _, st := range e.states {
		if e.chain.required(st.node.ID()) && st.outcome != domain.OutcomeSucceeded {
			return domain.RunFailed
		}
	}
	return domain.RunSucceeded
}

// protect calls fn and turns a panic into an error so that a misbehaving
// blueprint cannot take down the host.
func (e *Execution[C]) protect(logger *slog.Logger, op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", domain.ErrContractViolation, op, r)
			logger.Error("Recovered panic in blueprint", "operation", op, "panic", r)
		}
	}()
	fn()
	return nil
}

func (e *Execution[C]) nodeEvent(st *nodeState[C]) ports.NodeEvent {
	return ports.NodeEvent{
		RunID:       e.runID,
		ChainID:     e.chain.ID(),
		NodeID:      st.node.ID(),
		BlueprintID: st.node.Blueprint().ID(),
		Attempt:     st.attempts,
		Outcome:     st.outcome,
		Cause:       st.cause,
	}
}

func (e *Execution[C]) runEvent() ports.RunEvent {
	return ports.RunEvent{
		RunID:   e.runID,
		ChainID: e.chain.ID(),
		Outcome: e.outcome,
		Nodes:   len(e.states),
		Passes:  e.passes,
		Steps:   e.steps,
		Elapsed: e.elapsed,
	}
}

// Result summarises a run.
type Result struct {
	RunID   string
	ChainID string
	Outcome domain.RunOutcome
	Passes  int
	Steps   int

	// Node ids per outcome, in execution order.
	Succeeded []string
	Failed    []string
	Skipped   []string
	Pending   []string

	Elapsed time.Duration
}

// Err returns nil for a successful or unfinished run and an error wrapping
// the matching domain sentinel otherwise.
func (r Result) Err() error {
	switch r.Outcome {
	case domain.RunFailed:
		return fmt.Errorf("chain %s: %w: failed=%v skipped=%v pending=%v",
			r.ChainID, domain.ErrRunFailed, r.Failed, r.Skipped, r.Pending)
	case domain.RunCancelled:
		return fmt.Errorf("chain %s: %w", r.ChainID, domain.ErrRunCancelled)
	case domain.RunExhausted:
		return fmt.Errorf("chain %s: %w after %d passes: pending=%v",
			r.ChainID, domain.ErrRunExhausted, r.Passes, r.Pending)
	default:
		return nil
	}
}

// observerSet fans events out to several observers. Contexts returned by
// one observer are handed to the next.
type observerSet []ports.Observer

func (s observerSet) runStarted(ctx context.Context, ev ports.RunEvent) context.Context {
	for _, o := range s {
		ctx = o.RunStarted(ctx, ev)
	}
	return ctx
}

func (s observerSet) nodeStarted(ctx context.Context, ev ports.NodeEvent) context.Context {
	for _, o := range s {
		ctx = o.NodeStarted(ctx, ev)
	}
	return ctx
}

func (s observerSet) nodeFinished(ctx context.Context, ev ports.NodeEvent) {
	for _, o := range s {
		o.NodeFinished(ctx, ev)
	}
}

func (s observerSet) nodeFailed(ctx context.Context, ev ports.NodeEvent) {
	for _, o := range s {
		o.NodeFailed(ctx, ev)
	}
}

func (s observerSet) nodeTerminated(ctx context.Context, ev ports.NodeEvent) {
	for _, o := range s {
		o.NodeTerminated(ctx, ev)
	}
}

func (s observerSet) runFinished(ctx context.Context, ev ports.RunEvent) {
	for _, o := range s {
		o.RunFinished(ctx, ev)
	}
}
