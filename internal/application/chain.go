package application

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// ChainBuilder assembles a chain from blueprints and port links. It is the
// graph-builder side of the engine: it resolves configuration overloads,
// type-checks links and rejects cycles, then compiles an immutable
// ChainTemplate. A builder is not safe for concurrent use.
type ChainBuilder[C any] struct {
	chainID string
	nodes   map[string]*nodeSpec[C]
	topo    *topology
	links   []domain.Link
	// fed tracks input endpoints ("node.port") that already have a link or
	// a bound literal.
	fed      map[string]struct{}
	required []string
}

// nodeSpec is the assembly-time description of one node.
type nodeSpec[C any] struct {
	id        string
	blueprint ports.Blueprint[C]
	params    map[string]any
	// configIndex selects a configuration explicitly; -1 resolves it from
	// the ports the node uses.
	configIndex int
	bound       map[string]any
}

// NewChainBuilder returns an empty builder for the chain chainID.
func NewChainBuilder[C any](chainID string) *ChainBuilder[C] {
	return &ChainBuilder[C]{
		chainID: chainID,
		nodes:   make(map[string]*nodeSpec[C]),
		topo:    newTopology(),
		fed:     make(map[string]struct{}),
	}
}

// AddNode registers a node backed by blueprint. params are handed to the
// node through its composition and are read-only afterwards.
func (b *ChainBuilder[C]) AddNode(id string, blueprint ports.Blueprint[C], params map[string]any) error {
	if id == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if blueprint == nil {
		return fmt.Errorf("node %s: blueprint cannot be nil", id)
	}
	if len(blueprint.Configurations()) == 0 {
		return domain.NewConfigurationError(blueprint.ID(), nil,
			fmt.Errorf("%w: blueprint exposes no configurations", domain.ErrInvalidConfiguration))
	}
	if err := b.topo.addNode(id); err != nil {
		return err
	}

	b.nodes[id] = &nodeSpec[C]{
		id:          id,
		blueprint:   blueprint,
		params:      maps.Clone(params),
		configIndex: -1,
		bound:       make(map[string]any),
	}
	return nil
}

// UseConfiguration pins node id to the configuration at index instead of
// resolving the first match.
func (b *ChainBuilder[C]) UseConfiguration(id string, index int) error {
	spec, ok := b.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownNode, id)
	}
	if n := len(spec.blueprint.Configurations()); index < 0 || index >= n {
		return domain.NewConfigurationError(spec.blueprint.ID(), nil,
			fmt.Errorf("%w: configuration index %d out of range [0,%d)", domain.ErrInvalidConfiguration, index, n))
	}
	spec.configIndex = index
	return nil
}

// Link connects fromNode.fromPort to toNode.toPort. Each input port takes at
// most one link; an output port may feed any number of inputs. Links that
// would close a cycle are rejected. Port names and types are checked by
// Build once configurations are resolved.
func (b *ChainBuilder[C]) Link(fromNode, fromPort, toNode, toPort string) error {
	l := domain.Link{FromNode: fromNode, FromPort: fromPort, ToNode: toNode, ToPort: toPort}

	if _, ok := b.nodes[fromNode]; !ok {
		return domain.NewLinkError(l, fmt.Errorf("%w: %s", domain.ErrUnknownNode, fromNode))
	}
	if _, ok := b.nodes[toNode]; !ok {
		return domain.NewLinkError(l, fmt.Errorf("%w: %s", domain.ErrUnknownNode, toNode))
	}
	if fromPort == "" || toPort == "" {
		return domain.NewLinkError(l, fmt.Errorf("%w: empty port name", domain.ErrUnknownPort))
	}
	if _, ok := b.fed[l.Target()]; ok {
		return domain.NewLinkError(l, domain.ErrInputConnected)
	}
	if err := b.topo.addEdge(fromNode, toNode); err != nil {
		return domain.NewLinkError(l, err)
	}

	b.fed[l.Target()] = struct{}{}
	b.links = append(b.links, l)
	return nil
}

// Bind feeds a literal value to an input port instead of a link.
func (b *ChainBuilder[C]) Bind(nodeID, port string, value any) error {
	spec, ok := b.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownNode, nodeID)
	}
	key := nodeID + "." + port
	if _, ok := b.fed[key]; ok {
		return domain.NewPortError(key, "bind", domain.ErrInputConnected)
	}
	b.fed[key] = struct{}{}
	spec.bound[port] = value
	return nil
}

// Require marks nodes whose success decides the run outcome. Without any
// call every node is required.
func (b *ChainBuilder[C]) Require(ids ...string) error {
	for _, id := range ids {
		if _, ok := b.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownNode, id)
		}
		if !slices.Contains(b.required, id) {
			b.required = append(b.required, id)
		}
	}
	return nil
}

// Build resolves every node's configuration, validates links and inputs and
// compiles the chain. All problems found are reported together.
func (b *ChainBuilder[C]) Build() (*ChainTemplate[C], error) {
	if len(b.nodes) == 0 {
		return nil, fmt.Errorf("chain %s has no nodes", b.chainID)
	}

	order, err := b.topo.sort()
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", b.chainID, err)
	}

	var errs []error
	configs := make(map[string]domain.NodeConfiguration, len(b.nodes))
	for _, id := range order {
		cfg, err := b.resolveConfiguration(b.nodes[id], configs)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", id, err))
			continue
		}
		configs[id] = cfg
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, l := range b.links {
		from, _ := configs[l.FromNode].Port(l.FromPort)
		to, _ := configs[l.ToNode].Port(l.ToPort)
		if !from.Type.CompatibleWith(to.Type) {
			errs = append(errs, domain.NewLinkError(l,
				fmt.Errorf("%w: %s output into %s input", domain.ErrTypeMismatch, from.Type, to.Type)))
		}
	}

	entries := make([]templateEntry[C], 0, len(order))
	for _, id := range order {
		spec, cfg := b.nodes[id], configs[id]

		bound := make(map[string]any, len(spec.bound))
		for port, value := range spec.bound {
			p, _ := cfg.Port(port)
			v, ok := p.Type.Coerce(value)
			if !ok {
				errs = append(errs, domain.NewPortError(id+"."+port, "bind",
					fmt.Errorf("%w: %T is not %s", domain.ErrTypeMismatch, value, p.Type)))
				continue
			}
			bound[port] = v
		}

		for _, p := range cfg.Inputs() {
			if _, fed := b.fed[id+"."+p.Name]; !fed && !p.Optional {
				errs = append(errs, domain.NewPortError(id+"."+p.Name, "build", domain.ErrUnconnectedInput))
			}
		}

		entries = append(entries, templateEntry[C]{
			id:            id,
			blueprint:     spec.blueprint,
			configuration: cfg,
			params:        maps.Clone(spec.params),
			bound:         bound,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	t := &ChainTemplate[C]{
		id:       b.chainID,
		entries:  entries,
		index:    make(map[string]int, len(entries)),
		links:    slices.Clone(b.links),
		required: make(map[string]struct{}),
	}
	for i, e := range entries {
		t.index[e.id] = i
	}
	for _, id := range b.required {
		t.required[id] = struct{}{}
	}
	return t, nil
}

// resolveConfiguration picks the configuration for spec: the pinned one, or
// the first in blueprint order that declares every port the node uses with
// the direction it is used in. Producers are resolved first, so an input
// must also accept the producer's port type, and a bound literal must coerce
// to the input's type.
func (b *ChainBuilder[C]) resolveConfiguration(spec *nodeSpec[C], resolved map[string]domain.NodeConfiguration) (domain.NodeConfiguration, error) {
	used := make(map[string]portUse)
	for _, l := range b.links {
		if l.FromNode == spec.id {
			used[l.FromPort] = portUse{direction: domain.DirectionOutput}
		}
		if l.ToNode == spec.id {
			use := portUse{direction: domain.DirectionInput}
			if producer, ok := resolved[l.FromNode]; ok {
				if p, ok := producer.Port(l.FromPort); ok {
					use.peer = p.Type
				}
			}
			used[l.ToPort] = use
		}
	}
	for port, value := range spec.bound {
		used[port] = portUse{direction: domain.DirectionInput, literal: value, hasLiteral: true}
	}

	configs := spec.blueprint.Configurations()
	if spec.configIndex >= 0 {
		cfg := configs[spec.configIndex]
		if err := declares(cfg, used, false); err != nil {
			return nil, domain.NewConfigurationError(spec.blueprint.ID(), cfg, err)
		}
		return cfg, nil
	}

	for _, cfg := range configs {
		if declares(cfg, used, true) == nil {
			return cfg, nil
		}
	}
	return nil, domain.NewConfigurationError(spec.blueprint.ID(), nil,
		fmt.Errorf("%w: no configuration declares %s", domain.ErrInvalidConfiguration, describePorts(used)))
}

// portUse is how a chain uses one port of a node.
type portUse struct {
	direction domain.Direction
	// peer is the type of the producing port for linked inputs.
	peer       domain.ValueType
	literal    any
	hasLiteral bool
}

// declares checks that cfg has every used port in the right direction. With
// typed set, linked and bound inputs must also match their port types; type
// errors on a pinned configuration are reported by Build instead.
func declares(cfg domain.NodeConfiguration, used map[string]portUse, typed bool) error {
	for name, use := range used {
		p, ok := cfg.Port(name)
		if !ok {
			return domain.NewPortError(name, "resolve", domain.ErrUnknownPort)
		}
		if p.Direction != use.direction {
			return domain.NewPortError(name, "resolve", domain.ErrPortDirection)
		}
		if !typed {
			continue
		}
		if use.peer != "" && !use.peer.CompatibleWith(p.Type) {
			return domain.NewPortError(name, "resolve", domain.ErrTypeMismatch)
		}
		if use.hasLiteral {
			if _, ok := p.Type.Coerce(use.literal); !ok {
				return domain.NewPortError(name, "resolve", domain.ErrTypeMismatch)
			}
		}
	}
	return nil
}

func describePorts(used map[string]portUse) string {
	parts := make([]string, 0, len(used))
	for name, use := range used {
		parts = append(parts, use.direction.String()+" "+name)
	}
	sort.Strings(parts)
	return "[" + strings.Join(parts, ", ") + "]"
}

// ChainTemplate is a compiled, immutable chain definition. It is safe to
// share and to instantiate concurrently; each instance gets its own nodes
// and compositions.
type ChainTemplate[C any] struct {
	id       string
	entries  []templateEntry[C]
	index    map[string]int
	links    []domain.Link
	required map[string]struct{}
}

type templateEntry[C any] struct {
	id            string
	blueprint     ports.Blueprint[C]
	configuration domain.NodeConfiguration
	params        map[string]any
	bound         map[string]any
}

// ID returns the chain id.
func (t *ChainTemplate[C]) ID() string { return t.id }

// NodeIDs returns node ids in execution (topological) order.
func (t *ChainTemplate[C]) NodeIDs() []string {
	ids := make([]string, len(t.entries))
	for i, e := range t.entries {
		ids[i] = e.id
	}
	return ids
}

// Configuration returns the configuration resolved for nodeID.
func (t *ChainTemplate[C]) Configuration(nodeID string) (domain.NodeConfiguration, bool) {
	i, ok := t.index[nodeID]
	if !ok {
		return nil, false
	}
	return t.entries[i].configuration, true
}

// Links returns a copy of the chain's links in the order they were added.
func (t *ChainTemplate[C]) Links() []domain.Link { return slices.Clone(t.links) }

// Instantiate creates a fresh chain instance: one composition and one node
// per entry, created through the blueprint in execution order. If a
// blueprint rejects its node, the partial instance is discarded; no run has
// started so no node is terminated.
func (t *ChainTemplate[C]) Instantiate() (*Chain[C], error) {
	c := &Chain[C]{
		template: t,
		nodes:    make([]ports.Node[C], 0, len(t.entries)),
	}
	for _, e := range t.entries {
		comp := newNodeComposition(e.id, e.configuration, t.links, e.params)
		node, err := e.blueprint.Create(comp, e.configuration)
		if err != nil {
			return nil, fmt.Errorf("chain %s: create node %s: %w", t.id, e.id, err)
		}
		if node == nil {
			return nil, fmt.Errorf("chain %s: blueprint %s returned a nil node for %s", t.id, e.blueprint.ID(), e.id)
		}
		c.nodes = append(c.nodes, node)
	}
	return c, nil
}

// Chain is one instantiated chain. Its nodes belong to it alone and it can
// be executed by exactly one run.
type Chain[C any] struct {
	template *ChainTemplate[C]
	nodes    []ports.Node[C]
	consumed bool
}

// ID returns the chain id.
func (c *Chain[C]) ID() string { return c.template.id }

// Template returns the template the chain was instantiated from.
func (c *Chain[C]) Template() *ChainTemplate[C] { return c.template }

// Nodes returns the node instances in execution order.
func (c *Chain[C]) Nodes() []ports.Node[C] { return slices.Clone(c.nodes) }

// Node returns the instance with the given id.
func (c *Chain[C]) Node(id string) (ports.Node[C], bool) {
	i, ok := c.template.index[id]
	if !ok {
		return nil, false
	}
	return c.nodes[i], true
}

func (c *Chain[C]) bound(i int) map[string]any { return c.template.entries[i].bound }

func (c *Chain[C]) required(id string) bool {
	if len(c.template.required) == 0 {
		return true
	}
	_, ok := c.template.required[id]
	return ok
}
