package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-rune/internal/domain"
)

// NodeEvent describes one node-level transition reported by the driver.
type NodeEvent struct {
	RunID       string
	ChainID     string
	NodeID      string
	BlueprintID string

	// Attempt counts visits of the node in this run, starting at 1.
	Attempt int

	// Outcome is the result of the visit, or OutcomeSkipped for a
	// propagated failure.
	Outcome domain.NodeOutcome

	// Cause is the id of the failed node a propagated failure came from.
	Cause string

	// Elapsed is the wall time spent in Run.
	Elapsed time.Duration
}

// RunEvent describes the start or end of a run.
type RunEvent struct {
	RunID   string
	ChainID string
	Outcome domain.RunOutcome
	Nodes   int
	Passes  int
	Steps   int
	Elapsed time.Duration
}

// Observer receives driver events for metrics and tracing. Observers are
// called synchronously on the driving goroutine and must return quickly.
// The context returned from RunStarted is passed to every later call of the
// same run; the one returned from NodeStarted to the matching NodeFinished.
type Observer interface {
	RunStarted(ctx context.Context, ev RunEvent) context.Context
	NodeStarted(ctx context.Context, ev NodeEvent) context.Context
	NodeFinished(ctx context.Context, ev NodeEvent)
	NodeFailed(ctx context.Context, ev NodeEvent)
	NodeTerminated(ctx context.Context, ev NodeEvent)
	RunFinished(ctx context.Context, ev RunEvent)
}
