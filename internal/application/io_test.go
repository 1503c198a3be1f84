package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-rune/internal/domain"
)

func TestNodeIO_Write(t *testing.T) {
	cfg := domain.NewPortConfigurationBuilder().
		AddInput("in", domain.TypeNumber).
		AddOutput("out", domain.TypeNumber).
		AddOutput("pos", domain.TypeVector).
		MustBuild()

	tests := []struct {
		name    string
		port    string
		value   any
		want    any
		wantErr error
	}{
		{name: "coerces integer to number", port: "out", value: int32(4), want: 4.0},
		{name: "coerces slice to vector", port: "pos", value: []any{1, 2, 3}, want: domain.Vector{X: 1, Y: 2, Z: 3}},
		{name: "rejects unknown port", port: "missing", value: 1, wantErr: domain.ErrUnknownPort},
		{name: "rejects input port", port: "in", value: 1, wantErr: domain.ErrPortDirection},
		{name: "rejects wrong type", port: "out", value: "four", wantErr: domain.ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := newNodeIO(cfg, nil)
			err := io.Write(tt.port, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, io.violations, 1)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, io.outputs[tt.port])
		})
	}
}

func TestNodeIO_Outcome(t *testing.T) {
	cfg := domain.NewPortConfigurationBuilder().AddOutput("out", domain.TypeAny).MustBuild()

	tests := []struct {
		name      string
		signal    func(io *nodeIO)
		want      domain.NodeOutcome
		violation bool
	}{
		{name: "write", signal: func(io *nodeIO) { _ = io.Write("out", 1) }, want: domain.OutcomeSucceeded},
		{name: "succeed", signal: func(io *nodeIO) { io.Succeed() }, want: domain.OutcomeSucceeded},
		{name: "fail", signal: func(io *nodeIO) { io.Fail() }, want: domain.OutcomeFailed},
		{name: "yield", signal: func(io *nodeIO) { io.Yield() }, want: domain.OutcomeYielded},
		{
			name:   "fail wins over success",
			signal: func(io *nodeIO) { io.Succeed(); io.Fail() },
			want:   domain.OutcomeFailed,
		},
		{
			name:   "fail wins over yield",
			signal: func(io *nodeIO) { io.Yield(); io.Fail() },
			want:   domain.OutcomeFailed,
		},
		{
			name:      "no signal",
			signal:    func(*nodeIO) {},
			want:      domain.OutcomeFailed,
			violation: true,
		},
		{
			name:      "yield with output",
			signal:    func(io *nodeIO) { _ = io.Write("out", 1); io.Yield() },
			want:      domain.OutcomeFailed,
			violation: true,
		},
		{
			name:      "rejected write",
			signal:    func(io *nodeIO) { _ = io.Write("nope", 1); io.Succeed() },
			want:      domain.OutcomeFailed,
			violation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := newNodeIO(cfg, map[string]any{})
			tt.signal(io)
			got, err := io.outcome()
			assert.Equal(t, tt.want, got)
			if tt.violation {
				assert.ErrorIs(t, err, domain.ErrContractViolation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNodeIO_Input(t *testing.T) {
	io := newNodeIO(domain.NewPortConfigurationBuilder().MustBuild(), map[string]any{"in": 2.0})

	v, ok := io.Input("in")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = io.Input("other")
	assert.False(t, ok)
}
