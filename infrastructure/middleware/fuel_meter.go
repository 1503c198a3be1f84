package middleware

import (
	"fmt"

	"github.com/ahrav/go-rune/infrastructure/blueprints"
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var _ blueprints.Blueprint = (*FuelMeter)(nil)

// FuelMeter decorates a blueprint so that every visit of its nodes charges
// a fixed amount of fuel from the run budget before the wrapped Run is
// called. A visit the budget cannot cover fails without running.
// The meter keeps no state of its own; usage lives in the execution context.
type FuelMeter struct {
	// next holds the decorated blueprint.
	next blueprints.Blueprint
	// cost is charged per visit.
	cost int64
}

// NewFuelMeter wraps next. It panics if next is nil.
func NewFuelMeter(next blueprints.Blueprint, cost int64) *FuelMeter {
	if next == nil {
		panic("fuel meter: next blueprint is required")
	}
	return &FuelMeter{next: next, cost: cost}
}

// MeterAll wraps every blueprint in bps with the same per-visit cost. It
// returns an error, and no blueprints, if the cost is out of range.
func MeterAll(bps []blueprints.Blueprint, cost int64) ([]blueprints.Blueprint, error) {
	out := make([]blueprints.Blueprint, len(bps))
	for i, bp := range bps {
		m := NewFuelMeter(bp, cost)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// Validate checks the meter configuration.
func (m *FuelMeter) Validate() error {
	if m.cost < 0 {
		return fmt.Errorf("fuel meter: cost cannot be negative, got %d", m.cost)
	}
	if m.cost > domain.MaxFuelCharge {
		return fmt.Errorf("fuel meter: cost %d exceeds the maximum of %d", m.cost, domain.MaxFuelCharge)
	}
	return nil
}

// ID returns the wrapped blueprint's id.
func (m *FuelMeter) ID() string { return m.next.ID() }

// Configurations returns the wrapped blueprint's configurations, so
// configuration identity is preserved through the decorator.
func (m *FuelMeter) Configurations() []domain.NodeConfiguration { return m.next.Configurations() }

// meteredNode binds an inner node to the meter so the driver routes calls
// through the decorator.
type meteredNode struct {
	blueprints.Node
	meter *FuelMeter
}

// Blueprint returns the meter.
func (n *meteredNode) Blueprint() ports.Blueprint[*domain.RuneExecutionContext] { return n.meter }

// Create lets the wrapped blueprint validate and build the node, then binds
// it to the meter.
func (m *FuelMeter) Create(comp ports.Composition, cfg domain.NodeConfiguration) (blueprints.Node, error) {
	inner, err := m.next.Create(comp, cfg)
	if err != nil {
		return nil, err
	}
	return &meteredNode{Node: inner, meter: m}, nil
}

func unwrap(node blueprints.Node) blueprints.Node {
	if n, ok := node.(*meteredNode); ok {
		return n.Node
	}
	return node
}

// Run charges the visit and delegates.
func (m *FuelMeter) Run(node blueprints.Node, rc *domain.RuneExecutionContext, io ports.IO) {
	if err := rc.Consume(m.cost); err != nil {
		io.Fail()
		return
	}
	m.next.Run(unwrap(node), rc, io)
}

// Fail delegates to the wrapped blueprint.
func (m *FuelMeter) Fail(node blueprints.Node, rc *domain.RuneExecutionContext) {
	m.next.Fail(unwrap(node), rc)
}

// Terminate delegates to the wrapped blueprint.
func (m *FuelMeter) Terminate(node blueprints.Node, rc *domain.RuneExecutionContext) {
	m.next.Terminate(unwrap(node), rc)
}
