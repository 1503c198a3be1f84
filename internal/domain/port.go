// Package domain contains pure, dependency-free domain models and types
// for the rune execution engine.
package domain

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Direction describes whether a port receives or produces values.
type Direction int

const (
	// DirectionInput marks a port that receives a value from an upstream node.
	DirectionInput Direction = iota + 1

	// DirectionOutput marks a port that produces a value for downstream nodes.
	DirectionOutput
)

// String returns the lowercase name of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "in"
	case DirectionOutput:
		return "out"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Valid reports whether d is one of the declared directions.
func (d Direction) Valid() bool { return d == DirectionInput || d == DirectionOutput }

// ValueType is the type tag carried by a port. Values crossing a port are
// checked and normalised against it.
type ValueType string

// Supported port value types.
const (
	TypeAny    ValueType = "any"
	TypeNumber ValueType = "number"
	TypeString ValueType = "string"
	TypeBool   ValueType = "bool"
	TypeVector ValueType = "vector"
	TypeEntity ValueType = "entity"
)

// Valid reports whether t is a known type tag.
func (t ValueType) Valid() bool {
	switch t {
	case TypeAny, TypeNumber, TypeString, TypeBool, TypeVector, TypeEntity:
		return true
	default:
		return false
	}
}

// CompatibleWith reports whether values produced as t may flow into a port
// typed target. TypeAny is compatible in both directions.
func (t ValueType) CompatibleWith(target ValueType) bool {
	return t == target || t == TypeAny || target == TypeAny
}

// Coerce checks v against t and returns the normalised value. Numbers of any
// Go numeric kind become float64; vectors may be given as a Vector, a
// three-element slice of numbers, or a map with x, y and z keys.
func (t ValueType) Coerce(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	switch t {
	case TypeAny:
		return v, true
	case TypeNumber:
		f, ok := toFloat(v)
		return f, ok
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeBool:
		b, ok := v.(bool)
		return b, ok
	case TypeVector:
		return toVector(v)
	case TypeEntity:
		switch e := v.(type) {
		case EntityRef:
			return e, e.ID != ""
		case string:
			return EntityRef{ID: e}, e != ""
		}
		return nil, false
	default:
		return nil, false
	}
}

// Vector is a position or direction in host world space.
type Vector struct {
	X, Y, Z float64
}

// Add returns the component-wise sum of v and o.
func (v Vector) Add(o Vector) Vector { return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// EntityRef is an opaque handle to a host entity. The engine never resolves it.
type EntityRef struct {
	ID string
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toVector(v any) (any, bool) {
	switch vec := v.(type) {
	case Vector:
		return vec, true
	case []any:
		if len(vec) != 3 {
			return nil, false
		}
		var c [3]float64
		for i, e := range vec {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			c[i] = f
		}
		return Vector{X: c[0], Y: c[1], Z: c[2]}, true
	case []float64:
		if len(vec) != 3 {
			return nil, false
		}
		return Vector{X: vec[0], Y: vec[1], Z: vec[2]}, true
	case map[string]any:
		var c [3]float64
		for i, k := range []string{"x", "y", "z"} {
			f, ok := toFloat(vec[k])
			if !ok {
				return nil, false
			}
			c[i] = f
		}
		return Vector{X: c[0], Y: c[1], Z: c[2]}, true
	default:
		return nil, false
	}
}

// Port is one named, typed and directed connection point of a node.
type Port struct {
	// Name identifies the port within its configuration.
	Name string

	// Direction says whether the port consumes or produces values.
	Direction Direction

	// Type restricts the values that may cross the port.
	Type ValueType

	// Optional input ports may be left unconnected when a chain is assembled.
	Optional bool
}

// String renders the port as name:type.
func (p Port) String() string {
	s := p.Name + ":" + string(p.Type)
	if p.Optional {
		s += "?"
	}
	return s
}

// NodeConfiguration is one concrete set of ports a blueprint can be
// instantiated with. Blueprints may expose several as overloads. Two
// configurations are the same only if they are the same value.
type NodeConfiguration interface {
	// Ports returns every port in declaration order.
	Ports() []Port

	// Port looks up a port by name.
	Port(name string) (Port, bool)

	// Inputs returns the input ports in declaration order.
	Inputs() []Port

	// Outputs returns the output ports in declaration order.
	Outputs() []Port

	// String renders the signature, e.g. "(a:number, b:number) -> (out:number)".
	String() string
}

var _ NodeConfiguration = (*PortConfiguration)(nil)

// PortConfiguration is the frozen result of a PortConfigurationBuilder.
// It is immutable; accessors return copies.
type PortConfiguration struct {
	ports []Port
	index map[string]int
}

// Ports returns a copy of the ports in declaration order.
func (c *PortConfiguration) Ports() []Port {
	out := make([]Port, len(c.ports))
	copy(out, c.ports)
	return out
}

// Port returns the named port and whether it exists.
func (c *PortConfiguration) Port(name string) (Port, bool) {
	i, ok := c.index[name]
	if !ok {
		return Port{}, false
	}
	return c.ports[i], true
}

// Len returns the number of ports.
func (c *PortConfiguration) Len() int { return len(c.ports) }

// Inputs returns the input ports in declaration order.
func (c *PortConfiguration) Inputs() []Port { return c.filter(DirectionInput) }

// Outputs returns the output ports in declaration order.
func (c *PortConfiguration) Outputs() []Port { return c.filter(DirectionOutput) }

func (c *PortConfiguration) filter(d Direction) []Port {
	out := make([]Port, 0, len(c.ports))
	for _, p := range c.ports {
		if p.Direction == d {
			out = append(out, p)
		}
	}
	return out
}

// String renders the configuration signature.
func (c *PortConfiguration) String() string {
	join := func(ps []Port) string {
		parts := make([]string, len(ps))
		for i, p := range ps {
			parts[i] = p.String()
		}
		return strings.Join(parts, ", ")
	}
	return "(" + join(c.Inputs()) + ") -> (" + join(c.Outputs()) + ")"
}

// PortConfigurationBuilder accumulates ports and freezes them into a
// PortConfiguration. Errors are collected and reported by Build so blueprint
// definitions can chain calls.
type PortConfigurationBuilder struct {
	ports           []Port
	seen            map[string]struct{}
	errs            []error
	requireNonEmpty bool
}

// NewPortConfigurationBuilder returns an empty builder.
func NewPortConfigurationBuilder() *PortConfigurationBuilder {
	return &PortConfigurationBuilder{seen: make(map[string]struct{})}
}

// AddPort registers a port. A name already registered in this builder is
// recorded as ErrDuplicatePort; an empty name, unknown direction or unknown
// type as ErrInvalidPort. Rejected ports are not added.
func (b *PortConfigurationBuilder) AddPort(name string, direction Direction, typ ValueType) *PortConfigurationBuilder {
	return b.add(Port{Name: name, Direction: direction, Type: typ})
}

// AddInput registers a required input port.
func (b *PortConfigurationBuilder) AddInput(name string, typ ValueType) *PortConfigurationBuilder {
	return b.AddPort(name, DirectionInput, typ)
}

// AddOptionalInput registers an input port that may stay unconnected.
func (b *PortConfigurationBuilder) AddOptionalInput(name string, typ ValueType) *PortConfigurationBuilder {
	return b.add(Port{Name: name, Direction: DirectionInput, Type: typ, Optional: true})
}

// AddOutput registers an output port.
func (b *PortConfigurationBuilder) AddOutput(name string, typ ValueType) *PortConfigurationBuilder {
	return b.AddPort(name, DirectionOutput, typ)
}

func (b *PortConfigurationBuilder) add(p Port) *PortConfigurationBuilder {
	switch {
	case p.Name == "":
		b.errs = append(b.errs, NewPortError(p.Name, "add", fmt.Errorf("%w: empty name", ErrInvalidPort)))
		return b
	case !p.Direction.Valid():
		b.errs = append(b.errs, NewPortError(p.Name, "add", fmt.Errorf("%w: %s", ErrInvalidPort, p.Direction)))
		return b
	case !p.Type.Valid():
		b.errs = append(b.errs, NewPortError(p.Name, "add", fmt.Errorf("%w: unknown type %q", ErrInvalidPort, p.Type)))
		return b
	}

	if _, dup := b.seen[p.Name]; dup {
		b.errs = append(b.errs, NewPortError(p.Name, "add", ErrDuplicatePort))
		return b
	}
	b.seen[p.Name] = struct{}{}
	b.ports = append(b.ports, p)
	return b
}

// RequireNonEmpty makes Build fail with ErrEmptyConfiguration when no port
// was added. Zero-port configurations are legal otherwise.
func (b *PortConfigurationBuilder) RequireNonEmpty() *PortConfigurationBuilder {
	b.requireNonEmpty = true
	return b
}

// Build freezes the builder. The builder may keep being used afterwards; the
// returned configuration does not observe later changes.
func (b *PortConfigurationBuilder) Build() (*PortConfiguration, error) {
	errs := b.errs
	if b.requireNonEmpty && len(b.ports) == 0 {
		errs = append(errs, ErrEmptyConfiguration)
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}

	cfg := &PortConfiguration{
		ports: make([]Port, len(b.ports)),
		index: make(map[string]int, len(b.ports)),
	}
	copy(cfg.ports, b.ports)
	for i, p := range cfg.ports {
		cfg.index[p.Name] = i
	}
	return cfg, nil
}

// MustBuild is Build for package-level blueprint definitions. It panics on
// error.
func (b *PortConfigurationBuilder) MustBuild() *PortConfiguration {
	cfg, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("domain: invalid port configuration: %v", err))
	}
	return cfg
}
