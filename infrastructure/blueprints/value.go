package blueprints

import (
	"fmt"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var (
	_ Blueprint = (*ConstantBlueprint)(nil)
	_ Blueprint = (*DoubleBlueprint)(nil)
	_ Blueprint = (*AddBlueprint)(nil)
)

// ConstantBlueprint writes the node parameter "value" to its only output.
type ConstantBlueprint struct {
	descriptor
	noCleanup
}

// Constant is the shared constant blueprint, registered as "constant".
var Constant = &ConstantBlueprint{
	descriptor: descriptor{
		id: "constant",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeAny).MustBuild(),
		},
	},
}

type constantNode struct {
	*ports.BaseNode[*domain.RuneExecutionContext]
	value any
}

// Create binds a constant node. The "value" parameter is required.
func (b *ConstantBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	base, err := ports.NewBaseNode[*domain.RuneExecutionContext](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkParamNames(b, comp, "value"); err != nil {
		return nil, err
	}
	v, ok := comp.Param("value")
	if !ok || v == nil {
		return nil, domain.NewConfigurationError(b.ID(), cfg,
			fmt.Errorf("%w: value is required", domain.ErrInvalidParameter))
	}
	return &constantNode{BaseNode: base, value: v}, nil
}

// Run writes the constant.
func (b *ConstantBlueprint) Run(node Node, _ *domain.RuneExecutionContext, io ports.IO) {
	n, ok := node.(*constantNode)
	if !ok {
		io.Fail()
		return
	}
	_ = io.Write("out", n.value)
}

// DoubleBlueprint multiplies its numeric input by two.
type DoubleBlueprint struct {
	descriptor
	noCleanup
}

// Double is the shared doubling blueprint, registered as "double".
var Double = &DoubleBlueprint{
	descriptor: descriptor{
		id: "double",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().
				AddInput("in", domain.TypeNumber).
				AddOutput("out", domain.TypeNumber).
				MustBuild(),
		},
	},
}

// Create binds a double node.
func (b *DoubleBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	return newNode(b, comp, cfg)
}

// Run writes 2*in, or fails without an input.
func (b *DoubleBlueprint) Run(_ Node, _ *domain.RuneExecutionContext, io ports.IO) {
	in, ok := number(io, "in")
	if !ok {
		io.Fail()
		return
	}
	_ = io.Write("out", in*2)
}

// AddBlueprint sums two numbers or concatenates two strings. The numeric
// configuration is preferred when both would fit.
type AddBlueprint struct {
	descriptor
	noCleanup
	numbers domain.NodeConfiguration
	strings domain.NodeConfiguration
}

// Add is the shared addition blueprint, registered as "add".
var Add = newAddBlueprint()

func newAddBlueprint() *AddBlueprint {
	numbers := domain.NewPortConfigurationBuilder().
		AddInput("a", domain.TypeNumber).
		AddInput("b", domain.TypeNumber).
		AddOutput("out", domain.TypeNumber).
		MustBuild()
	strings := domain.NewPortConfigurationBuilder().
		AddInput("a", domain.TypeString).
		AddInput("b", domain.TypeString).
		AddOutput("out", domain.TypeString).
		MustBuild()

	return &AddBlueprint{
		descriptor: descriptor{
			id:      "add",
			configs: []domain.NodeConfiguration{numbers, strings},
		},
		numbers: numbers,
		strings: strings,
	}
}

// Create binds an add node to either overload.
func (b *AddBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	return newNode(b, comp, cfg)
}

// Run adds or concatenates depending on the node's configuration.
func (b *AddBlueprint) Run(node Node, _ *domain.RuneExecutionContext, io ports.IO) {
	if node.Configuration() == b.strings {
		a, okA := io.Input("a")
		c, okB := io.Input("b")
		sa, okSA := a.(string)
		sb, okSB := c.(string)
		if !okA || !okB || !okSA || !okSB {
			io.Fail()
			return
		}
		_ = io.Write("out", sa+sb)
		return
	}

	a, okA := number(io, "a")
	c, okB := number(io, "b")
	if !okA || !okB {
		io.Fail()
		return
	}
	_ = io.Write("out", a+c)
}
