// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the blueprint and host layers.
// These interfaces enable dependency inversion and make the engine testable.
package ports

import (
	"github.com/ahrav/go-rune/internal/domain"
)

// Blueprint is the stateless descriptor of one kind of node. A blueprint is
// built once, shared by every chain and run in the process, and never
// mutated; all per-run state lives in the execution context C.
//
// During Run a blueprint must do exactly one of: write outputs or call
// IO.Succeed (success), call IO.Fail (failure), or call IO.Yield (run me
// again next pass). Doing none of these is a contract violation that the
// driver turns into a failure. Failure takes precedence over everything else.
type Blueprint[C any] interface {
	// ID returns the registry identifier, e.g. "double".
	ID() string

	// Configurations returns the supported configurations in preference
	// order. The slice is never empty.
	Configurations() []domain.NodeConfiguration

	// Create binds a new node to composition and configuration. It returns
	// a *domain.ConfigurationError wrapping domain.ErrInvalidConfiguration
	// if configuration is not one of Configurations.
	Create(composition Composition, configuration domain.NodeConfiguration) (Node[C], error)

	// Run executes one step of node against ctx.
	Run(node Node[C], ctx C, io IO)

	// Fail is called when node will not run because a node it depends on
	// failed. It is best effort and must not panic.
	Fail(node Node[C], ctx C)

	// Terminate is called once when the node's part in the run ends,
	// whatever the path. It must tolerate being called twice.
	Terminate(node Node[C], ctx C)
}

// Node is a node instance: one blueprint bound to one configuration within
// one composition. Nodes hold no mutable state.
type Node[C any] interface {
	// ID returns the node id, unique within its chain.
	ID() string

	// Blueprint returns the shared blueprint the node was created by.
	Blueprint() Blueprint[C]

	// Configuration returns the configuration bound at creation.
	Configuration() domain.NodeConfiguration

	// Composition returns the node's edges within its chain.
	Composition() Composition
}

// Composition describes how one node is wired into its chain: which link
// feeds each input port, which links leave each output port, and the
// node's assembly-time parameters.
type Composition interface {
	// NodeID returns the id of the node this composition belongs to.
	NodeID() string

	// Input returns the link feeding port, if any.
	Input(port string) (domain.Link, bool)

	// Inputs returns every incoming link ordered by port declaration.
	Inputs() []domain.Link

	// Outputs returns the links leaving port.
	Outputs(port string) []domain.Link

	// Consumers returns the ids of the nodes fed by any output, without
	// duplicates, in link order.
	Consumers() []string

	// Param returns an assembly-time parameter.
	Param(name string) (any, bool)

	// ParamNames returns the names of every assembly-time parameter,
	// sorted.
	ParamNames() []string
}

// IO is the capability handed to Blueprint.Run for a single visit.
type IO interface {
	// Input returns the value delivered to an input port.
	Input(port string) (any, bool)

	// Write sets an output port. It returns an error for unknown ports,
	// input ports and values incompatible with the port type; the driver
	// also records such errors as contract violations.
	Write(port string, value any) error

	// Succeed signals success without writing outputs. Nodes that write an
	// output do not need to call it.
	Succeed()

	// Fail signals that the node could not produce its outputs this step.
	Fail()

	// Yield asks to be run again in a later pass without finishing.
	Yield()
}

// BlueprintRegistry resolves blueprint ids at chain assembly time.
type BlueprintRegistry[C any] interface {
	// Lookup returns the blueprint registered under id.
	Lookup(id string) (Blueprint[C], error)

	// IDs returns every registered id in sorted order.
	IDs() []string
}
