package application

import (
	"maps"
	"slices"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var _ ports.Composition = (*nodeComposition)(nil)

// nodeComposition is the wiring of one node inside one chain instance. It
// is built by ChainTemplate.Instantiate and never changes afterwards.
type nodeComposition struct {
	nodeID string
	// inputOrder lists linked input ports in configuration order.
	inputOrder []string
	inputs     map[string]domain.Link
	outputs    map[string][]domain.Link
	consumers  []string
	params     map[string]any
}

// newNodeComposition derives the composition of nodeID from the chain's
// links. Only links touching nodeID are kept. Linked inputs are ordered by
// their declaration in cfg so Inputs is stable. Consumers are listed once
// each in link order, and params is copied.
func newNodeComposition(
	nodeID string,
	cfg domain.NodeConfiguration,
	links []domain.Link,
	params map[string]any,
) *nodeComposition {
	c := &nodeComposition{
		nodeID:  nodeID,
		inputs:  make(map[string]domain.Link),
		outputs: make(map[string][]domain.Link),
		params:  maps.Clone(params),
	}

	seen := make(map[string]struct{})
	for _, l := range links {
		if l.ToNode == nodeID {
			c.inputs[l.ToPort] = l
		}
		if l.FromNode == nodeID {
			c.outputs[l.FromPort] = append(c.outputs[l.FromPort], l)
			if _, ok := seen[l.ToNode]; !ok {
				seen[l.ToNode] = struct{}{}
				c.consumers = append(c.consumers, l.ToNode)
			}
		}
	}

	for _, p := range cfg.Inputs() {
		if _, ok := c.inputs[p.Name]; ok {
			c.inputOrder = append(c.inputOrder, p.Name)
		}
	}
	return c
}

// NodeID returns the id of the node the composition belongs to.
func (c *nodeComposition) NodeID() string { return c.nodeID }

// Input returns the link feeding port. Bound literals are not links, so a
// port fed by Bind reports false here.
func (c *nodeComposition) Input(port string) (domain.Link, bool) {
	l, ok := c.inputs[port]
	return l, ok
}

// Inputs returns every incoming link in port declaration order. The slice
// is fresh on each call.
func (c *nodeComposition) Inputs() []domain.Link {
	out := make([]domain.Link, 0, len(c.inputOrder))
	for _, p := range c.inputOrder {
		out = append(out, c.inputs[p])
	}
	return out
}

// Outputs returns a copy of the links leaving port, in link order. An
// output may feed several consumers; an unlinked port yields an empty
// slice.
func (c *nodeComposition) Outputs(port string) []domain.Link {
	links := c.outputs[port]
	out := make([]domain.Link, len(links))
	copy(out, links)
	return out
}

// Consumers returns the ids of the nodes fed by any output, each once, in
// link order. The driver walks these when propagating a failure.
func (c *nodeComposition) Consumers() []string {
	out := make([]string, len(c.consumers))
	copy(out, c.consumers)
	return out
}

// Param returns the assembly-time parameter name. Parameters are read-only;
// callers must not mutate reference values they receive.
func (c *nodeComposition) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok
}

// ParamNames returns the parameter names in sorted order, so blueprints can
// reject names they do not understand.
func (c *nodeComposition) ParamNames() []string {
	return slices.Sorted(maps.Keys(c.params))
}
