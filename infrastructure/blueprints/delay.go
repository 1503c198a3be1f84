package blueprints

import (
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var _ Blueprint = (*DelayBlueprint)(nil)

// DelayParams configures a delay node.
type DelayParams struct {
	// Ticks is the number of passes to wait before forwarding the input.
	Ticks int `yaml:"ticks" validate:"min=0,max=10000"`
}

// DelayBlueprint forwards its input after waiting a number of passes. The
// count of passes already waited is kept in the execution context under a
// key scoped to the node, so the node itself stays immutable.
type DelayBlueprint struct {
	descriptor
}

// Delay is the shared delay blueprint, registered as "delay".
var Delay = &DelayBlueprint{
	descriptor: descriptor{
		id: "delay",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().
				AddInput("in", domain.TypeAny).
				AddOutput("out", domain.TypeAny).
				MustBuild(),
		},
	},
}

type delayNode struct {
	*ports.BaseNode[*domain.RuneExecutionContext]
	params DelayParams
}

// Create binds a delay node. "ticks" defaults to 1.
func (b *DelayBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	base, err := ports.NewBaseNode[*domain.RuneExecutionContext](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	params := DelayParams{Ticks: 1}
	if err := decodeParams(b, comp, &params, "ticks"); err != nil {
		return nil, err
	}
	return &delayNode{BaseNode: base, params: params}, nil
}

func waitedKey(node Node) domain.Key[int] {
	return domain.ScopedKey[int](node.ID(), "delay.waited")
}

// Run yields until the node has waited Ticks passes, then forwards in.
func (b *DelayBlueprint) Run(node Node, rc *domain.RuneExecutionContext, io ports.IO) {
	n, ok := node.(*delayNode)
	if !ok {
		io.Fail()
		return
	}

	key := waitedKey(node)
	waited, _ := domain.Get(rc, key)
	if waited < n.params.Ticks {
		domain.Set(rc, key, waited+1)
		io.Yield()
		return
	}

	domain.Delete(rc, key)
	in, ok := io.Input("in")
	if !ok {
		io.Fail()
		return
	}
	_ = io.Write("out", in)
}

// Fail drops the wait counter.
func (b *DelayBlueprint) Fail(node Node, rc *domain.RuneExecutionContext) {
	domain.Delete(rc, waitedKey(node))
}

// Terminate drops the wait counter. It is safe to call repeatedly.
func (b *DelayBlueprint) Terminate(node Node, rc *domain.RuneExecutionContext) {
	domain.Delete(rc, waitedKey(node))
}
