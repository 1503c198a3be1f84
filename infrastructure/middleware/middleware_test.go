package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rune/infrastructure/blueprints"
	"github.com/ahrav/go-rune/internal/application"
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// failingChain builds value -> twice -> gate -> after with the gate bound
// closed, so gate fails and after is failed through propagation. Entries in
// bps replace the registered blueprint of the same id.
func failingChain(t *testing.T, bps map[string]blueprints.Blueprint) *application.Chain[*domain.RuneExecutionContext] {
	t.Helper()
	bp := func(id string) blueprints.Blueprint {
		if b, ok := bps[id]; ok {
			return b
		}
		return lookup(t, id)
	}

	b := application.NewChainBuilder[*domain.RuneExecutionContext]("metered")
	require.NoError(t, b.AddNode("value", bp("constant"), map[string]any{"value": 2}))
	require.NoError(t, b.AddNode("twice", bp("double"), nil))
	require.NoError(t, b.AddNode("gate", bp("gate"), nil))
	require.NoError(t, b.Link("value", "out", "twice", "in"))
	require.NoError(t, b.Link("twice", "out", "gate", "value"))
	require.NoError(t, b.Bind("gate", "open", false))
	require.NoError(t, b.AddNode("after", bp("double"), nil))
	require.NoError(t, b.Link("gate", "out", "after", "in"))

	tmpl, err := b.Build()
	require.NoError(t, err)
	chain, err := tmpl.Instantiate()
	require.NoError(t, err)
	return chain
}

func lookup(t *testing.T, id string) blueprints.Blueprint {
	t.Helper()
	bp, err := application.NewDefaultRegistry().Lookup(id)
	require.NoError(t, err)
	return bp
}

func execute(t *testing.T, chain *application.Chain[*domain.RuneExecutionContext], rc *domain.RuneExecutionContext, observers ...ports.Observer) application.Result {
	t.Helper()
	res, _ := application.NewDriver[*domain.RuneExecutionContext](application.WithObservers(observers...)).
		Execute(context.Background(), chain, rc)
	return res
}

func newDelayChain(t *testing.T) *application.Chain[*domain.RuneExecutionContext] {
	t.Helper()
	b := application.NewChainBuilder[*domain.RuneExecutionContext]("delayed")
	require.NoError(t, b.AddNode("value", lookup(t, "constant"), map[string]any{"value": "spark"}))
	require.NoError(t, b.AddNode("wait", lookup(t, "delay"), map[string]any{"ticks": 1}))
	require.NoError(t, b.Link("value", "out", "wait", "in"))
	tmpl, err := b.Build()
	require.NoError(t, err)
	chain, err := tmpl.Instantiate()
	require.NoError(t, err)
	return chain
}

func runEvent() ports.RunEvent {
	return ports.RunEvent{RunID: "run", ChainID: "chain", Outcome: domain.RunSucceeded, Nodes: 1}
}
