// Package blueprints provides the built-in node blueprints that run against
// *domain.RuneExecutionContext. Every blueprint is a process-wide singleton:
// it is stateless, and all per-run progress lives in the execution context.
package blueprints

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// Blueprint is a blueprint over the rune execution context.
type Blueprint = ports.Blueprint[*domain.RuneExecutionContext]

// Node is a node over the rune execution context.
type Node = ports.Node[*domain.RuneExecutionContext]

// Package-level validator instance for parameter validation.
var validate = validator.New()

// All returns every built-in blueprint in registration order.
func All() []Blueprint {
	return []Blueprint{
		Dummy,
		Constant,
		Double,
		Add,
		Compare,
		Gate,
		Delay,
		Emit,
		Fuel,
		Origin,
		Caster,
	}
}

// descriptor carries the id and configurations shared by every blueprint.
type descriptor struct {
	id      string
	configs []domain.NodeConfiguration
}

// ID returns the registry identifier.
func (d descriptor) ID() string { return d.id }

// Configurations returns the supported configurations in preference order.
func (d descriptor) Configurations() []domain.NodeConfiguration { return slices.Clone(d.configs) }

// noCleanup provides Fail and Terminate for blueprints that keep nothing in
// the execution context.
type noCleanup struct{}

// Fail does nothing.
func (noCleanup) Fail(Node, *domain.RuneExecutionContext) {}

// Terminate does nothing.
func (noCleanup) Terminate(Node, *domain.RuneExecutionContext) {}

// newNode binds a plain node, returning a nil interface on error. Plain
// nodes take no parameters.
func newNode(bp Blueprint, comp ports.Composition, cfg domain.NodeConfiguration) (Node, error) {
	if err := checkParamNames(bp, comp); err != nil {
		return nil, err
	}
	n, err := ports.NewBaseNode(bp, comp, cfg)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// checkParamNames rejects composition parameters outside names, so a
// misspelled key fails assembly instead of silently falling back to a
// default.
func checkParamNames(bp Blueprint, comp ports.Composition, names ...string) error {
	var unknown []string
	for _, name := range comp.ParamNames() {
		if !slices.Contains(names, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return domain.NewConfigurationError(bp.ID(), nil,
		fmt.Errorf("%w: unknown parameters %v, accepted %v", domain.ErrInvalidParameter, unknown, names))
}

// decodeParams copies the named composition parameters into dst through a
// YAML round trip and validates the result with its struct tags. Parameters
// outside names are rejected.
func decodeParams(bp Blueprint, comp ports.Composition, dst any, names ...string) error {
	if err := checkParamNames(bp, comp, names...); err != nil {
		return err
	}

	raw := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := comp.Param(name); ok {
			raw[name] = v
		}
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return domain.NewConfigurationError(bp.ID(), nil,
			fmt.Errorf("%w: failed to encode parameters: %w", domain.ErrInvalidParameter, err))
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return domain.NewConfigurationError(bp.ID(), nil,
			fmt.Errorf("%w: %w", domain.ErrInvalidParameter, err))
	}
	if err := validate.Struct(dst); err != nil {
		return domain.NewConfigurationError(bp.ID(), nil,
			fmt.Errorf("%w: %w", domain.ErrInvalidParameter, err))
	}
	return nil
}

// number reads a numeric input. Inputs are coerced to their port type by
// the driver, so numbers always arrive as float64.
func number(io ports.IO, port string) (float64, bool) {
	v, ok := io.Input(port)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
