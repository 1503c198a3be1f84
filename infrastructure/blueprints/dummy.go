package blueprints

import (
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var _ Blueprint = (*DummyBlueprint)(nil)

// DummyBlueprint is the placeholder blueprint. It has a single
// configuration without ports and always fails when run, so chains that
// still contain a placeholder can never succeed by accident.
type DummyBlueprint struct {
	descriptor
	noCleanup
}

// Dummy is the shared placeholder blueprint, registered as "dummy".
var Dummy = &DummyBlueprint{
	descriptor: descriptor{
		id:      "dummy",
		configs: []domain.NodeConfiguration{domain.NewPortConfigurationBuilder().MustBuild()},
	},
}

// Create binds a dummy node.
func (b *DummyBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	return newNode(b, comp, cfg)
}

// Run always signals failure and writes nothing.
func (b *DummyBlueprint) Run(_ Node, _ *domain.RuneExecutionContext, io ports.IO) {
	io.Fail()
}
