package blueprints

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/testutils"
)

// create binds bp's configuration at index to a node "n" with params.
func create(t *testing.T, bp Blueprint, index int, params map[string]any) Node {
	t.Helper()
	comp := &testutils.StaticComposition{ID: "n", Params: params}
	node, err := bp.Create(comp, bp.Configurations()[index])
	require.NoError(t, err)
	return node
}

func newContext(opts ...domain.ContextOption) *domain.RuneExecutionContext {
	return domain.NewRuneExecutionContext("chain", "run", opts...)
}

func TestAll(t *testing.T) {
	foreign := domain.NewPortConfigurationBuilder().MustBuild()
	seen := make(map[string]bool)

	for _, bp := range All() {
		t.Run(bp.ID(), func(t *testing.T) {
			assert.False(t, seen[bp.ID()], "duplicate id")
			seen[bp.ID()] = true
			assert.NotEmpty(t, bp.Configurations())

			_, err := bp.Create(&testutils.StaticComposition{ID: "n"}, foreign)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

func TestCreate_RejectsUnknownParams(t *testing.T) {
	tests := []struct {
		bp     Blueprint
		params map[string]any
	}{
		{bp: Dummy, params: map[string]any{"mode": "loud"}},
		{bp: Constant, params: map[string]any{"value": 1, "vaule": 2}},
		{bp: Double, params: map[string]any{"factor": 3}},
		{bp: Add, params: map[string]any{"sep": "-"}},
		{bp: Compare, params: map[string]any{"operator": "gt"}},
		{bp: Gate, params: map[string]any{"open": true}},
		{bp: Delay, params: map[string]any{"tick": 5}},
		{bp: Emit, params: map[string]any{"kind": "ward", "costs": 2}},
		{bp: Fuel, params: map[string]any{"amount": 2}},
		{bp: Origin, params: map[string]any{"offest": []any{0, 1, 0}}},
		{bp: Caster, params: map[string]any{"entity": "e1"}},
	}
	require.Len(t, tests, len(All()))

	for _, tt := range tests {
		t.Run(tt.bp.ID(), func(t *testing.T) {
			comp := &testutils.StaticComposition{ID: "n", Params: tt.params}
			_, err := tt.bp.Create(comp, tt.bp.Configurations()[0])
			require.ErrorIs(t, err, domain.ErrInvalidParameter)
			assert.ErrorContains(t, err, "unknown parameters")
		})
	}
}

func TestDummy_AlwaysFails(t *testing.T) {
	node := create(t, Dummy, 0, nil)
	io := testutils.NewRecordingIO(nil)

	Dummy.Run(node, newContext(), io)

	assert.Equal(t, 1, io.FailCalls)
	assert.Zero(t, io.SucceedCalls)
	assert.Empty(t, io.Outputs)
	assert.Empty(t, Dummy.Configurations()[0].Ports())
}

func TestConstant(t *testing.T) {
	t.Run("writes its value", func(t *testing.T) {
		node := create(t, Constant, 0, map[string]any{"value": "ember"})
		io := testutils.NewRecordingIO(nil)

		Constant.Run(node, newContext(), io)

		assert.Equal(t, map[string]any{"out": "ember"}, io.Outputs)
	})

	t.Run("requires a value", func(t *testing.T) {
		_, err := Constant.Create(&testutils.StaticComposition{ID: "n"}, Constant.Configurations()[0])
		assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	})
}

func TestDouble(t *testing.T) {
	tests := []struct {
		name     string
		inputs   map[string]any
		want     map[string]any
		wantFail bool
	}{
		{name: "doubles", inputs: map[string]any{"in": 3.0}, want: map[string]any{"out": 6.0}},
		{name: "negative", inputs: map[string]any{"in": -1.5}, want: map[string]any{"out": -3.0}},
		{name: "missing input", inputs: nil, want: map[string]any{}, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := create(t, Double, 0, nil)
			io := testutils.NewRecordingIO(tt.inputs)

			Double.Run(node, newContext(), io)

			assert.Equal(t, tt.want, io.Outputs)
			assert.Equal(t, tt.wantFail, io.FailCalls == 1)
		})
	}
}

func TestAdd_Overloads(t *testing.T) {
	tests := []struct {
		name   string
		config int
		inputs map[string]any
		want   any
	}{
		{name: "numbers", config: 0, inputs: map[string]any{"a": 1.0, "b": 2.5}, want: 3.5},
		{name: "strings", config: 1, inputs: map[string]any{"a": "fire", "b": "ball"}, want: "fireball"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := create(t, Add, tt.config, nil)
			io := testutils.NewRecordingIO(tt.inputs)

			Add.Run(node, newContext(), io)

			assert.Equal(t, tt.want, io.Outputs["out"])
		})
	}

	t.Run("strings overload fails on numbers", func(t *testing.T) {
		node := create(t, Add, 1, nil)
		io := testutils.NewRecordingIO(map[string]any{"a": 1.0, "b": 2.0})
		Add.Run(node, newContext(), io)
		assert.Equal(t, 1, io.FailCalls)
	})
}

func TestCompare(t *testing.T) {
	tests := []struct {
		op   string
		a, b float64
		want bool
	}{
		{op: "gt", a: 2, b: 1, want: true},
		{op: "gt", a: 1, b: 1, want: false},
		{op: "gte", a: 1, b: 1, want: true},
		{op: "lt", a: 0, b: 1, want: true},
		{op: "lte", a: 2, b: 1, want: false},
		{op: "eq", a: 1, b: 1, want: true},
		{op: "ne", a: 1, b: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			node := create(t, Compare, 0, map[string]any{"op": tt.op})
			io := testutils.NewRecordingIO(map[string]any{"a": tt.a, "b": tt.b})

			Compare.Run(node, newContext(), io)

			assert.Equal(t, tt.want, io.Outputs["out"])
		})
	}

	t.Run("rejects unknown operator", func(t *testing.T) {
		comp := &testutils.StaticComposition{ID: "n", Params: map[string]any{"op": "approx"}}
		_, err := Compare.Create(comp, Compare.Configurations()[0])
		assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	})
}

func TestGate(t *testing.T) {
	tests := []struct {
		name     string
		inputs   map[string]any
		wantOut  any
		wantFail bool
	}{
		{name: "open forwards", inputs: map[string]any{"value": "spark", "open": true}, wantOut: "spark"},
		{name: "closed fails", inputs: map[string]any{"value": "spark", "open": false}, wantFail: true},
		{name: "missing value fails", inputs: map[string]any{"open": true}, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := create(t, Gate, 0, nil)
			io := testutils.NewRecordingIO(tt.inputs)

			Gate.Run(node, newContext(), io)

			assert.Equal(t, tt.wantFail, io.FailCalls == 1)
			assert.Equal(t, tt.wantOut, io.Outputs["out"])
		})
	}
}

func TestDelay(t *testing.T) {
	t.Run("yields for the configured passes", func(t *testing.T) {
		node := create(t, Delay, 0, map[string]any{"ticks": 2})
		rc := newContext()

		for i := 0; i < 2; i++ {
			io := testutils.NewRecordingIO(map[string]any{"in": 7.0})
			Delay.Run(node, rc, io)
			assert.Equal(t, 1, io.YieldCalls, "pass %d", i)
			assert.Empty(t, io.Outputs)
		}

		io := testutils.NewRecordingIO(map[string]any{"in": 7.0})
		Delay.Run(node, rc, io)
		assert.Equal(t, map[string]any{"out": 7.0}, io.Outputs)
		assert.Empty(t, rc.Keys())
	})

	t.Run("defaults to one pass", func(t *testing.T) {
		node := create(t, Delay, 0, nil)
		rc := newContext()

		io := testutils.NewRecordingIO(map[string]any{"in": 1.0})
		Delay.Run(node, rc, io)
		assert.Equal(t, 1, io.YieldCalls)

		io = testutils.NewRecordingIO(map[string]any{"in": 1.0})
		Delay.Run(node, rc, io)
		assert.Equal(t, 1.0, io.Outputs["out"])
	})

	t.Run("fail and terminate clear the counter", func(t *testing.T) {
		node := create(t, Delay, 0, map[string]any{"ticks": 5})
		rc := newContext()

		Delay.Run(node, rc, testutils.NewRecordingIO(nil))
		require.NotEmpty(t, rc.Keys())
		Delay.Fail(node, rc)
		assert.Empty(t, rc.Keys())

		Delay.Run(node, rc, testutils.NewRecordingIO(nil))
		Delay.Terminate(node, rc)
		Delay.Terminate(node, rc)
		assert.Empty(t, rc.Keys())
	})

	t.Run("rejects negative ticks", func(t *testing.T) {
		comp := &testutils.StaticComposition{ID: "n", Params: map[string]any{"ticks": -1}}
		_, err := Delay.Create(comp, Delay.Configurations()[0])
		assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	})
}

func TestEmit(t *testing.T) {
	t.Run("stages effects until fuel runs out", func(t *testing.T) {
		node := create(t, Emit, 0, map[string]any{"kind": "ward", "cost": 3})
		rc := newContext(domain.WithFuelLimit(5))

		first := testutils.NewRecordingIO(map[string]any{"value": "north"})
		Emit.Run(node, rc, first)
		second := testutils.NewRecordingIO(nil)
		Emit.Run(node, rc, second)

		assert.Equal(t, 1, first.SucceedCalls)
		assert.Equal(t, 1, second.FailCalls)

		want := []domain.Effect{{Kind: "ward", Source: "n", Value: "north"}}
		if diff := cmp.Diff(want, rc.DrainEffects()); diff != "" {
			t.Errorf("effects mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, int64(3), rc.FuelUsage().Used)
	})

	t.Run("requires a kind", func(t *testing.T) {
		_, err := Emit.Create(&testutils.StaticComposition{ID: "n"}, Emit.Configurations()[0])
		assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	})
}

func TestFuel(t *testing.T) {
	tests := []struct {
		name      string
		limit     int64
		params    map[string]any
		runs      int
		wantOut   []any
		wantFails int
	}{
		{name: "unlimited reports minus one", runs: 2, wantOut: []any{-1.0, -1.0}},
		{name: "counts down", limit: 2, runs: 3, wantOut: []any{1.0, 0.0, nil}, wantFails: 1},
		{name: "custom cost", limit: 10, params: map[string]any{"cost": 4}, runs: 3, wantOut: []any{6.0, 2.0, nil}, wantFails: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := create(t, Fuel, 0, tt.params)
			rc := newContext(domain.WithFuelLimit(tt.limit))

			var got []any
			fails := 0
			for range tt.runs {
				io := testutils.NewRecordingIO(nil)
				Fuel.Run(node, rc, io)
				got = append(got, toFloat(io.Outputs["remaining"]))
				fails += io.FailCalls
			}
			assert.Equal(t, tt.wantOut, got)
			assert.Equal(t, tt.wantFails, fails)
		})
	}
}

func TestCostParams_Bounded(t *testing.T) {
	for _, bp := range []Blueprint{Emit, Fuel} {
		t.Run(bp.ID(), func(t *testing.T) {
			params := map[string]any{"cost": domain.MaxFuelCharge + 1}
			if bp == Emit {
				params["kind"] = "ward"
			}
			_, err := bp.Create(&testutils.StaticComposition{ID: "n", Params: params}, bp.Configurations()[0])
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)

			params["cost"] = domain.MaxFuelCharge
			_, err = bp.Create(&testutils.StaticComposition{ID: "n", Params: params}, bp.Configurations()[0])
			assert.NoError(t, err)
		})
	}
}

// toFloat normalises an output recorded by RecordingIO, which stores values
// as written rather than coerced.
func toFloat(v any) any {
	if n, ok := v.(int64); ok {
		return float64(n)
	}
	return v
}

func TestOrigin(t *testing.T) {
	t.Run("adds the offset", func(t *testing.T) {
		node := create(t, Origin, 0, map[string]any{"offset": []any{0, 1, 0.5}})
		rc := newContext()
		domain.Set(rc, domain.KeyOrigin, domain.Vector{X: 1, Y: 2, Z: 3})

		io := testutils.NewRecordingIO(nil)
		Origin.Run(node, rc, io)

		assert.Equal(t, domain.Vector{X: 1, Y: 3, Z: 3.5}, io.Outputs["out"])
	})

	t.Run("fails without origin", func(t *testing.T) {
		node := create(t, Origin, 0, nil)
		io := testutils.NewRecordingIO(nil)
		Origin.Run(node, newContext(), io)
		assert.Equal(t, 1, io.FailCalls)
	})

	t.Run("rejects short offset", func(t *testing.T) {
		comp := &testutils.StaticComposition{ID: "n", Params: map[string]any{"offset": []any{1, 2}}}
		_, err := Origin.Create(comp, Origin.Configurations()[0])
		assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	})
}

func TestCaster(t *testing.T) {
	node := create(t, Caster, 0, nil)

	io := testutils.NewRecordingIO(nil)
	Caster.Run(node, newContext(), io)
	assert.Equal(t, 1, io.FailCalls)

	rc := newContext()
	domain.Set(rc, domain.KeyCaster, domain.EntityRef{ID: "player-1"})
	io = testutils.NewRecordingIO(nil)
	Caster.Run(node, rc, io)
	assert.Equal(t, domain.EntityRef{ID: "player-1"}, io.Outputs["out"])
}
