package ports

import (
	"fmt"

	"github.com/ahrav/go-rune/internal/domain"
)

// BaseNode is the plain node instance most blueprints return from Create.
type BaseNode[C any] struct {
	blueprint     Blueprint[C]
	composition   Composition
	configuration domain.NodeConfiguration
}

var _ Node[any] = (*BaseNode[any])(nil)

// NewBaseNode validates configuration against blueprint and binds a node.
func NewBaseNode[C any](
	blueprint Blueprint[C],
	composition Composition,
	configuration domain.NodeConfiguration,
) (*BaseNode[C], error) {
	if err := CheckConfiguration(blueprint, configuration); err != nil {
		return nil, err
	}
	if composition == nil {
		return nil, domain.NewConfigurationError(blueprint.ID(), configuration,
			fmt.Errorf("%w: nil composition", domain.ErrInvalidConfiguration))
	}
	return &BaseNode[C]{
		blueprint:     blueprint,
		composition:   composition,
		configuration: configuration,
	}, nil
}

// ID returns the node id from the composition.
func (n *BaseNode[C]) ID() string { return n.composition.NodeID() }

// Blueprint returns the node's blueprint.
func (n *BaseNode[C]) Blueprint() Blueprint[C] { return n.blueprint }

// Configuration returns the configuration bound at creation.
func (n *BaseNode[C]) Configuration() domain.NodeConfiguration { return n.configuration }

// Composition returns the node's edges.
func (n *BaseNode[C]) Composition() Composition { return n.composition }

// CheckConfiguration reports whether configuration is one of blueprint's
// configurations, compared by identity.
func CheckConfiguration[C any](blueprint Blueprint[C], configuration domain.NodeConfiguration) error {
	if configuration == nil {
		return domain.NewConfigurationError(blueprint.ID(), nil,
			fmt.Errorf("%w: nil configuration", domain.ErrInvalidConfiguration))
	}
	for _, c := range blueprint.Configurations() {
		if c == configuration {
			return nil
		}
	}
	return domain.NewConfigurationError(blueprint.ID(), configuration, domain.ErrInvalidConfiguration)
}
