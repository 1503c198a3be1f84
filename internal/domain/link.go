package domain

import (
	"fmt"
	"strings"
)

// Link connects an output port of one node to an input port of another.
type Link struct {
	FromNode string
	FromPort string
	ToNode   string
	ToPort   string
}

// Source renders the producing endpoint as node.port.
func (l Link) Source() string { return l.FromNode + "." + l.FromPort }

// Target renders the consuming endpoint as node.port.
func (l Link) Target() string { return l.ToNode + "." + l.ToPort }

// String renders the link as "a.out -> b.in".
func (l Link) String() string { return l.Source() + " -> " + l.Target() }

// ParsePortRef splits a "node.port" reference. The node part may not
// contain a dot; the port part is everything after the first one.
func ParsePortRef(ref string) (node, port string, err error) {
	node, port, ok := strings.Cut(ref, ".")
	if !ok || node == "" || port == "" {
		return "", "", fmt.Errorf("%w: port reference %q must have the form node.port", ErrUnknownPort, ref)
	}
	return node, port, nil
}

// NodeOutcome is the state of one node within one run.
type NodeOutcome int

const (
	// OutcomePending means the node has not finished yet.
	OutcomePending NodeOutcome = iota

	// OutcomeSucceeded means the node ran and produced its outputs.
	OutcomeSucceeded

	// OutcomeFailed means the node ran and signalled failure itself.
	OutcomeFailed

	// OutcomeSkipped means the node never ran because a node it depends on
	// failed; it received a propagated failure instead.
	OutcomeSkipped

	// OutcomeYielded is reported for a visit after which the node asked to
	// be run again in a later pass. It is never a final outcome.
	OutcomeYielded
)

// String returns the lowercase outcome name.
func (o NodeOutcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeYielded:
		return "yielded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RunOutcome is the aggregate result of one run, decided by the driver.
type RunOutcome int

const (
	// RunInProgress means the run has not finished.
	RunInProgress RunOutcome = iota

	// RunSucceeded means every required node succeeded.
	RunSucceeded

	// RunFailed means at least one required node failed or was skipped.
	RunFailed

	// RunCancelled means the host stopped the run early.
	RunCancelled

	// RunExhausted means the pass limit was reached with nodes still pending.
	RunExhausted
)

// String returns the lowercase outcome name.
func (o RunOutcome) String() string {
	switch o {
	case RunInProgress:
		return "in_progress"
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	case RunCancelled:
		return "cancelled"
	case RunExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("run_outcome(%d)", int(o))
	}
}
