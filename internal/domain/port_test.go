package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortConfigurationBuilder_Build(t *testing.T) {
	cfg, err := NewPortConfigurationBuilder().
		AddInput("a", TypeNumber).
		AddOptionalInput("b", TypeNumber).
		AddOutput("out", TypeNumber).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Len())
	assert.Equal(t, []string{"a", "b"}, names(cfg.Inputs()))
	assert.Equal(t, []string{"out"}, names(cfg.Outputs()))
	assert.Equal(t, "(a:number, b:number?) -> (out:number)", cfg.String())

	p, ok := cfg.Port("b")
	require.True(t, ok)
	assert.True(t, p.Optional)
	assert.Equal(t, DirectionInput, p.Direction)

	_, ok = cfg.Port("missing")
	assert.False(t, ok)
}

func TestPortConfigurationBuilder_DuplicatePort(t *testing.T) {
	_, err := NewPortConfigurationBuilder().
		AddInput("x", TypeNumber).
		AddOutput("x", TypeString).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicatePort)

	var portErr *PortError
	require.ErrorAs(t, err, &portErr)
	assert.Equal(t, "x", portErr.Port)
}

func TestPortConfigurationBuilder_InvalidPorts(t *testing.T) {
	tests := []struct {
		name string
		add  func(b *PortConfigurationBuilder)
	}{
		{"empty name", func(b *PortConfigurationBuilder) { b.AddInput("", TypeNumber) }},
		{"unknown direction", func(b *PortConfigurationBuilder) { b.AddPort("p", Direction(9), TypeNumber) }},
		{"unknown type", func(b *PortConfigurationBuilder) { b.AddOutput("p", ValueType("mana")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewPortConfigurationBuilder()
			tt.add(b)
			_, err := b.Build()
			assert.ErrorIs(t, err, ErrInvalidPort)
		})
	}
}

func TestPortConfigurationBuilder_EmptyPolicy(t *testing.T) {
	cfg, err := NewPortConfigurationBuilder().Build()
	require.NoError(t, err, "zero ports is legal by default")
	assert.Equal(t, 0, cfg.Len())
	assert.Equal(t, "() -> ()", cfg.String())

	_, err = NewPortConfigurationBuilder().RequireNonEmpty().Build()
	assert.ErrorIs(t, err, ErrEmptyConfiguration)
}

func TestPortConfiguration_Frozen(t *testing.T) {
	b := NewPortConfigurationBuilder().AddInput("in", TypeAny)
	cfg, err := b.Build()
	require.NoError(t, err)

	b.AddOutput("late", TypeAny)
	assert.Equal(t, 1, cfg.Len(), "later builder calls must not leak into a built configuration")

	ports := cfg.Ports()
	ports[0].Name = "mutated"
	_, ok := cfg.Port("in")
	assert.True(t, ok, "Ports must return a copy")
	assert.Equal(t, "in", cfg.Ports()[0].Name)
}

func TestMustBuild_Panics(t *testing.T) {
	assert.Panics(t, func() {
		NewPortConfigurationBuilder().AddInput("x", TypeAny).AddInput("x", TypeAny).MustBuild()
	})
}

func TestValueType_Coerce(t *testing.T) {
	tests := []struct {
		name   string
		typ    ValueType
		in     any
		want   any
		wantOK bool
	}{
		{"int to number", TypeNumber, 3, float64(3), true},
		{"uint8 to number", TypeNumber, uint8(7), float64(7), true},
		{"float32 to number", TypeNumber, float32(1.5), float64(1.5), true},
		{"string is not number", TypeNumber, "3", nil, false},
		{"string", TypeString, "fire", "fire", true},
		{"bool", TypeBool, true, true, true},
		{"vector from slice", TypeVector, []any{1, 2.5, 3}, Vector{1, 2.5, 3}, true},
		{"vector from map", TypeVector, map[string]any{"x": 1, "y": 2, "z": 3}, Vector{1, 2, 3}, true},
		{"short vector", TypeVector, []any{1, 2}, nil, false},
		{"entity from string", TypeEntity, "player-1", EntityRef{ID: "player-1"}, true},
		{"empty entity", TypeEntity, "", EntityRef{}, false},
		{"any accepts anything", TypeAny, []int{1}, []int{1}, true},
		{"nil rejected", TypeAny, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.typ.Coerce(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValueType_CompatibleWith(t *testing.T) {
	assert.True(t, TypeNumber.CompatibleWith(TypeNumber))
	assert.True(t, TypeAny.CompatibleWith(TypeString))
	assert.True(t, TypeBool.CompatibleWith(TypeAny))
	assert.False(t, TypeNumber.CompatibleWith(TypeString))
}

func TestParsePortRef(t *testing.T) {
	node, port, err := ParsePortRef("source.out")
	require.NoError(t, err)
	assert.Equal(t, "source", node)
	assert.Equal(t, "out", port)

	for _, bad := range []string{"source", ".out", "source.", ""} {
		_, _, err := ParsePortRef(bad)
		assert.ErrorIs(t, err, ErrUnknownPort, bad)
	}
}

func names(ps []Port) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
