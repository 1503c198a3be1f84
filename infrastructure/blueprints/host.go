package blueprints

import (
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

var (
	_ Blueprint = (*EmitBlueprint)(nil)
	_ Blueprint = (*FuelBlueprint)(nil)
	_ Blueprint = (*OriginBlueprint)(nil)
	_ Blueprint = (*CasterBlueprint)(nil)
)

// EmitParams configures an emit node.
type EmitParams struct {
	// Kind names the staged effect.
	Kind string `yaml:"kind" validate:"required,max=64"`

	// Cost is the fuel charged per emission.
	Cost int64 `yaml:"cost" validate:"min=0,max=1000000"`
}

// EmitBlueprint stages a host effect carrying its optional input.
type EmitBlueprint struct {
	descriptor
	noCleanup
}

// Emit is the shared effect blueprint, registered as "emit".
var Emit = &EmitBlueprint{
	descriptor: descriptor{
		id: "emit",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().
				AddOptionalInput("value", domain.TypeAny).
				MustBuild(),
		},
	},
}

type emitNode struct {
	*ports.BaseNode[*domain.RuneExecutionContext]
	params EmitParams
}

// Create binds an emit node. "kind" is required.
func (b *EmitBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	base, err := ports.NewBaseNode[*domain.RuneExecutionContext](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	var params EmitParams
	if err := decodeParams(b, comp, &params, "kind", "cost"); err != nil {
		return nil, err
	}
	return &emitNode{BaseNode: base, params: params}, nil
}

// Run charges fuel and stages the effect. It fails when the budget cannot
// cover the cost, in which case nothing is staged.
func (b *EmitBlueprint) Run(node Node, rc *domain.RuneExecutionContext, io ports.IO) {
	n, ok := node.(*emitNode)
	if !ok {
		io.Fail()
		return
	}
	if err := rc.Consume(n.params.Cost); err != nil {
		io.Fail()
		return
	}
	value, _ := io.Input("value")
	rc.Stage(domain.Effect{Kind: n.params.Kind, Source: node.ID(), Value: value})
	io.Succeed()
}

// FuelParams configures a fuel node.
type FuelParams struct {
	// Cost is the fuel the node consumes when it runs.
	Cost int64 `yaml:"cost" validate:"min=0,max=1000000"`
}

// FuelBlueprint consumes fuel from the run budget and reports what is left.
// It fails once the budget is exhausted, which stops every dependent node.
type FuelBlueprint struct {
	descriptor
	noCleanup
}

// Fuel is the shared fuel blueprint, registered as "fuel".
var Fuel = &FuelBlueprint{
	descriptor: descriptor{
		id: "fuel",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().
				AddOptionalInput("in", domain.TypeAny).
				AddOutput("remaining", domain.TypeNumber).
				MustBuild(),
		},
	},
}

type fuelNode struct {
	*ports.BaseNode[*domain.RuneExecutionContext]
	params FuelParams
}

// Create binds a fuel node. "cost" defaults to 1.
func (b *FuelBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	base, err := ports.NewBaseNode[*domain.RuneExecutionContext](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	params := FuelParams{Cost: 1}
	if err := decodeParams(b, comp, &params, "cost"); err != nil {
		return nil, err
	}
	return &fuelNode{BaseNode: base, params: params}, nil
}

// Run consumes the cost and writes the remaining budget, -1 if unlimited.
func (b *FuelBlueprint) Run(node Node, rc *domain.RuneExecutionContext, io ports.IO) {
	n, ok := node.(*fuelNode)
	if !ok {
		io.Fail()
		return
	}
	if err := rc.Consume(n.params.Cost); err != nil {
		io.Fail()
		return
	}
	_ = io.Write("remaining", rc.FuelUsage().Remaining())
}

// OriginParams configures an origin node.
type OriginParams struct {
	// Offset is added to the run origin, as [x, y, z].
	Offset []float64 `yaml:"offset" validate:"omitempty,len=3"`
}

// OriginBlueprint outputs the run's world origin, optionally offset.
type OriginBlueprint struct {
	descriptor
	noCleanup
}

// Origin is the shared origin blueprint, registered as "origin".
var Origin = &OriginBlueprint{
	descriptor: descriptor{
		id: "origin",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeVector).MustBuild(),
		},
	},
}

type originNode struct {
	*ports.BaseNode[*domain.RuneExecutionContext]
	offset domain.Vector
}

// Create binds an origin node.
func (b *OriginBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	base, err := ports.NewBaseNode[*domain.RuneExecutionContext](b, comp, cfg)
	if err != nil {
		return nil, err
	}
	var params OriginParams
	if err := decodeParams(b, comp, &params, "offset"); err != nil {
		return nil, err
	}
	n := &originNode{BaseNode: base}
	if len(params.Offset) == 3 {
		n.offset = domain.Vector{X: params.Offset[0], Y: params.Offset[1], Z: params.Offset[2]}
	}
	return n, nil
}

// Run writes the origin plus offset, or fails when the host set no origin.
func (b *OriginBlueprint) Run(node Node, rc *domain.RuneExecutionContext, io ports.IO) {
	n, ok := node.(*originNode)
	origin, found := domain.Get(rc, domain.KeyOrigin)
	if !ok || !found {
		io.Fail()
		return
	}
	_ = io.Write("out", origin.Add(n.offset))
}

// CasterBlueprint outputs the entity that triggered the run.
type CasterBlueprint struct {
	descriptor
	noCleanup
}

// Caster is the shared caster blueprint, registered as "caster".
var Caster = &CasterBlueprint{
	descriptor: descriptor{
		id: "caster",
		configs: []domain.NodeConfiguration{
			domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeEntity).MustBuild(),
		},
	},
}

// Create binds a caster node.
func (b *CasterBlueprint) Create(comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	return newNode(b, comp, cfg)
}

// Run writes the caster, or fails when the host set none.
func (b *CasterBlueprint) Run(_ Node, rc *domain.RuneExecutionContext, io ports.IO) {
	caster, ok := domain.Get(rc, domain.KeyCaster)
	if !ok {
		io.Fail()
		return
	}
	_ = io.Write("out", caster)
}
