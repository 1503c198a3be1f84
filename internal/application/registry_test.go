package application

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/testutils"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *Registry[runeCtx])
		id      string
		wantErr error
		errMsg  string
	}{
		{name: "registers blueprint", id: "double"},
		{name: "rejects empty id", id: "", errMsg: "blueprint ID cannot be empty"},
		{
			name: "rejects duplicate id",
			setup: func(r *Registry[runeCtx]) {
				require.NoError(t, r.Register(testutils.NewRecordingBlueprint[runeCtx]("double")))
			},
			id:      "double",
			wantErr: domain.ErrDuplicateBlueprint,
		},
		{
			name: "duplicates are case-insensitive",
			setup: func(r *Registry[runeCtx]) {
				require.NoError(t, r.Register(testutils.NewRecordingBlueprint[runeCtx]("Double")))
			},
			id:      "DOUBLE",
			wantErr: domain.ErrDuplicateBlueprint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry[runeCtx]()
			if tt.setup != nil {
				tt.setup(r)
			}
			err := r.Register(testutils.NewRecordingBlueprint[runeCtx](tt.id))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				assert.ErrorContains(t, err, tt.errMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}

	t.Run("rejects nil blueprint", func(t *testing.T) {
		assert.Error(t, NewRegistry[runeCtx]().Register(nil))
	})
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name       string
		id         string
		wantID     string
		wantErr    error
		wantSubstr string
	}{
		{name: "exact id", id: "double", wantID: "double"},
		{name: "case-insensitive id", id: "Constant", wantID: "constant"},
		{
			name:       "typo suggests close ids",
			id:         "dubble",
			wantErr:    domain.ErrUnknownBlueprint,
			wantSubstr: "did you mean [double]",
		},
		{
			name:    "unrelated id has no suggestion",
			id:      "qqqqqqq",
			wantErr: domain.ErrUnknownBlueprint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, err := r.Lookup(tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bp)
				if tt.wantSubstr != "" {
					assert.ErrorContains(t, err, tt.wantSubstr)
				} else {
					assert.NotContains(t, err.Error(), "did you mean")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, bp.ID())
		})
	}
}

func TestRegistry_Suggest(t *testing.T) {
	r := NewRegistry[runeCtx]()
	for _, id := range []string{"add", "and", "odd", "adder", "emit"} {
		require.NoError(t, r.Register(testutils.NewRecordingBlueprint[runeCtx](id)))
	}

	assert.Equal(t, []string{"add", "and"}, r.Suggest("ad"))
	assert.Equal(t, []string{"add", "odd"}, r.Suggest("xdd"))
	assert.Equal(t, []string{"emit"}, r.Suggest("EMITT"))
	assert.Empty(t, r.Suggest("zzzzzz"))
}

func TestRegistry_IDs(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{
		"add", "caster", "compare", "constant", "delay", "double",
		"dummy", "emit", "fuel", "gate", "origin",
	}, r.IDs())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry[runeCtx]()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("bp-%d", i)
			assert.NoError(t, r.Register(testutils.NewRecordingBlueprint[runeCtx](id)))
			_, err := r.Lookup(id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, r.IDs(), 20)
}
