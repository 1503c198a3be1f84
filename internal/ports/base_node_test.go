package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rune/internal/domain"
)

var (
	mockPrimary   = domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeNumber).MustBuild()
	mockSecondary = domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeString).MustBuild()
)

// mockBlueprint is a minimal Blueprint over an int context.
type mockBlueprint struct{}

func (mockBlueprint) ID() string { return "mock" }

func (mockBlueprint) Configurations() []domain.NodeConfiguration {
	return []domain.NodeConfiguration{mockPrimary, mockSecondary}
}

func (b mockBlueprint) Create(comp Composition, cfg domain.NodeConfiguration) (Node[int], error) {
	n, err := NewBaseNode[int](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (mockBlueprint) Run(Node[int], int, IO) {}
func (mockBlueprint) Fail(Node[int], int) {}
func (mockBlueprint) Terminate(Node[int], int) {}

// mockComposition is a Composition without links.
type mockComposition struct{ id string }

func (c mockComposition) NodeID() string { return c.id }
func (mockComposition) Input(string) (domain.Link, bool) { return domain.Link{}, false }
func (mockComposition) Inputs() []domain.Link { return nil }
func (mockComposition) Outputs(string) []domain.Link { return nil }
func (mockComposition) Consumers() []string { return nil }
func (mockComposition) ParamNames() []string { return nil }
func (mockComposition) Param(string) (any, bool) { return nil, false }

func TestNewBaseNode_RoundTrip(t *testing.T) {
	bp := mockBlueprint{}
	for _, cfg := range bp.Configurations() {
		node, err := bp.Create(mockComposition{id: "n1"}, cfg)
		require.NoError(t, err)

		assert.Equal(t, "n1", node.ID())
		assert.Same(t, cfg.(*domain.PortConfiguration), node.Configuration().(*domain.PortConfiguration))
		assert.Equal(t, "mock", node.Blueprint().ID())
		assert.Equal(t, "n1", node.Composition().NodeID())
	}
}

func TestNewBaseNode_RejectsForeignConfiguration(t *testing.T) {
	// Structurally identical to mockPrimary but a different value.
	foreign := domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeNumber).MustBuild()

	tests := []struct {
		name string
		cfg  domain.NodeConfiguration
	}{
		{"foreign configuration", foreign},
		{"nil configuration", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := mockBlueprint{}.Create(mockComposition{id: "n1"}, tt.cfg)
			assert.Nil(t, node)
			require.ErrorIs(t, err, domain.ErrInvalidConfiguration)

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "mock", cfgErr.Blueprint)
		})
	}
}

func TestNewBaseNode_RejectsNilComposition(t *testing.T) {
	_, err := NewBaseNode[int](mockBlueprint{}, nil, mockPrimary)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
