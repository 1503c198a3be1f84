package application

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var _ ports.IO = (*nodeIO)(nil)

// nodeIO is the I/O handle for one visit of one node. It records every
// signal so the driver can decide the visit's outcome afterwards.
type nodeIO struct {
	cfg        domain.NodeConfiguration
	inputs     map[string]any
	outputs    map[string]any
	failed     bool
	succeeded  bool
	yielded    bool
	violations []error
}

func newNodeIO(cfg domain.NodeConfiguration, inputs map[string]any) *nodeIO {
	return &nodeIO{
		cfg:     cfg,
		inputs:  inputs,
		outputs: make(map[string]any),
	}
}

func (io *nodeIO) Input(port string) (any, bool) {
	v, ok := io.inputs[port]
	return v, ok
}

func (io *nodeIO) Write(port string, value any) error {
	p, ok := io.cfg.Port(port)
	if !ok {
		return io.violate(domain.NewPortError(port, "write", domain.ErrUnknownPort))
	}
	if p.Direction != domain.DirectionOutput {
		return io.violate(domain.NewPortError(port, "write", domain.ErrPortDirection))
	}
	v, ok := p.Type.Coerce(value)
	if !ok {
		return io.violate(domain.NewPortError(port, "write",
			fmt.Errorf("%w: %T is not %s", domain.ErrTypeMismatch, value, p.Type)))
	}
	io.outputs[port] = v
	return nil
}

func (io *nodeIO) Succeed() { io.succeeded = true }
func (io *nodeIO) Fail() { io.failed = true }
func (io *nodeIO) Yield() { io.yielded = true }

func (io *nodeIO) violate(err error) error {
	io.violations = append(io.violations, err)
	return err
}

// outcome resolves the recorded signals. Fail wins over everything; a
// visit with no signal, with a rejected write, or with both a yield and a
// success signal is a contract violation and counts as failure.
func (io *nodeIO) outcome() (domain.NodeOutcome, error) {
	success := io.succeeded || len(io.outputs) > 0

	switch {
	case io.failed:
		return domain.OutcomeFailed, nil
	case len(io.violations) > 0:
		return domain.OutcomeFailed, fmt.Errorf("%w: %w", domain.ErrContractViolation, errors.Join(io.violations...))
	case io.yielded && success:
		return domain.OutcomeFailed, fmt.Errorf("%w: node yielded and signalled success", domain.ErrContractViolation)
	case io.yielded:
		return domain.OutcomeYielded, nil
	case success:
		return domain.OutcomeSucceeded, nil
	default:
		return domain.OutcomeFailed, fmt.Errorf("%w: node neither failed nor produced output", domain.ErrContractViolation)
	}
}
