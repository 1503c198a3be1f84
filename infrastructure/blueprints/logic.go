package blueprints

import (
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var (
	_ Blueprint = (*CompareBlueprint)(nil)
	_ Blueprint = (*GateBlueprint)(nil)
)

// CompareParams configures a compare node.
type CompareParams struct {
	// Op is the comparison operator applied as "a op b".
	Op string `yaml:"op" validate:"required,oneof=gt gte lt lte eq ne"`
}

// CompareBlueprint compares two numbers with a configurable operator.
type CompareBlueprint struct {
	descriptor
	noCleanup
}

// Compare is the shared comparison blueprint, registered as "compare".
var Compare = &CompareBlueprint{
	descriptor: descriptor{
		id: "compare",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().
				AddInput("a", domain.TypeNumber).
				AddInput("b", domain.TypeNumber).
				AddOutput("out", domain.TypeBool).
				MustBuild(),
		},
	},
}

type compareNode struct {
	*ports.BaseNode[*domain.RuneExecutionContext]
	params CompareParams
}

// Create binds a compare node. The "op" parameter is validated here so a
// bad operator fails chain instantiation rather than the run.
func (b *CompareBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	base, err := ports.NewBaseNode[*domain.RuneExecutionContext](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	var params CompareParams
	if err := decodeParams(b, comp, &params, "op"); err != nil {
		return nil, err
	}
	return &compareNode{BaseNode: base, params: params}, nil
}

// Run writes the comparison result.
func (b *CompareBlueprint) Run(node Node, _ *domain.RuneExecutionContext, io ports.IO) {
	n, ok := node.(*compareNode)
	if !ok {
		io.Fail()
		return
	}
	a, okA := number(io, "a")
	c, okB := number(io, "b")
	if !okA || !okB {
		io.Fail()
		return
	}

	var result bool
	switch n.params.Op {
	case "gt":
		result = a > c
	case "gte":
		result = a >= c
	case "lt":
		result = a < c
	case "lte":
		result = a <= c
	case "eq":
		result = a == c
	case "ne":
		result = a != c
	}
	_ = io.Write("out", result)
}

// GateBlueprint forwards its value while open is true and fails otherwise,
// cutting off everything downstream.
type GateBlueprint struct {
	descriptor
	noCleanup
}

// Gate is the shared gate blueprint, registered as "gate".
var Gate = &GateBlueprint{
	descriptor: descriptor{
		id: "gate",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().
				AddInput("value", domain.TypeAny).
				AddInput("open", domain.TypeBool).
				AddOutput("out", domain.TypeAny).
				MustBuild(),
		},
	},
}

// Create binds a gate node.
func (b *GateBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	return newNode(b, comp, cfg)
}

// Run forwards value when open.
func (b *GateBlueprint) Run(_ Node, _ *domain.RuneExecutionContext, io ports.IO) {
	open, _ := io.Input("open")
	value, ok := io.Input("value")
	if isOpen, _ := open.(bool); !isOpen || !ok {
		io.Fail()
		return
	}
	_ = io.Write("out", value)
}
