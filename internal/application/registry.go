package application

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-rune/infrastructure/blueprints"
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.BlueprintRegistry[*domain.RuneExecutionContext] = (*Registry[*domain.RuneExecutionContext])(nil)

// maxSuggestions bounds the ids offered for an unknown blueprint.
const maxSuggestions = 3

// Registry maps blueprint ids to blueprints for chain assembly. Lookups
// are case-insensitive: ids are folded with Unicode case folding before
// they are stored or compared, so "Delay" and "delay" name the same
// blueprint. The original spelling is kept for listings and suggestions.
// A Registry is safe for concurrent use; the chain loader shares one across
// every document it compiles.
type Registry[C any] struct {
	// blueprints maps case-folded ids to blueprints.
	blueprints map[string]ports.Blueprint[C]
	// mu protects concurrent access to the blueprints map.
	mu sync.RWMutex
}

// NewRegistry creates an empty registry. Use NewDefaultRegistry for one
// pre-populated with the built-in blueprints.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{blueprints: make(map[string]ports.Blueprint[C])}
}

// NewDefaultRegistry creates a registry holding the built-in blueprints
// that run against *domain.RuneExecutionContext.
func NewDefaultRegistry() *Registry[*domain.RuneExecutionContext] {
	r := NewRegistry[*domain.RuneExecutionContext]()
	for _, bp := range blueprints.All() {
		// Built-in ids are distinct; a failure here is a programming error.
		if err := r.Register(bp); err != nil {
			panic(err)
		}
	}
	return r
}

// foldID returns the key id is stored under. A new caser is created per
// call because cases.Caser is not safe for concurrent use.
func foldID(id string) string { return cases.Fold().String(id) }

// Register adds bp under its id. Nil blueprints and empty ids are rejected,
// as is an id that folds to one already registered; the latter error wraps
// domain.ErrDuplicateBlueprint. Registration takes the write lock and may
// run concurrently with lookups.
func (r *Registry[C]) Register(bp ports.Blueprint[C]) error {
	if bp == nil {
		return fmt.Errorf("blueprint cannot be nil")
	}
	if bp.ID() == "" {
		return fmt.Errorf("blueprint ID cannot be empty")
	}

	key := foldID(bp.ID())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.blueprints[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateBlueprint, bp.ID())
	}
	r.blueprints[key] = bp
	return nil
}

// Lookup returns the blueprint registered under id, compared after case
// folding. Unknown ids yield an error wrapping domain.ErrUnknownBlueprint;
// when Suggest finds close matches the message names them so a typo in a
// chain document points at the intended blueprint. The read lock is
// released before suggestions are computed.
func (r *Registry[C]) Lookup(id string) (ports.Blueprint[C], error) {
	key := foldID(id)

	r.mu.RLock()
	bp, ok := r.blueprints[key]
	r.mu.RUnlock()
	if ok {
		return bp, nil
	}

	if s := r.Suggest(id); len(s) > 0 {
		return nil, fmt.Errorf("%w: %q (did you mean %v?)", domain.ErrUnknownBlueprint, id, s)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBlueprint, id)
}

// Suggest returns up to three registered ids closest to id by edit
// distance, nearest first. Ids further away than half of id's length are
// not offered.
func (r *Registry[C]) Suggest(id string) []string {
	key := foldID(id)
	limit := max(len([]rune(key))/2, 1)

	type candidate struct {
		id       string
		distance int
	}

	r.mu.RLock()
	candidates := make([]candidate, 0, len(r.blueprints))
	for k, bp := range r.blueprints {
		if d := levenshtein.ComputeDistance(key, k); d <= limit {
			candidates = append(candidates, candidate{id: bp.ID(), distance: d})
		}
	}
	r.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})

	out := make([]string, 0, maxSuggestions)
	for i := 0; i < len(candidates) && i < maxSuggestions; i++ {
		out = append(out, candidates[i].id)
	}
	return out
}

// IDs returns every registered id in its original spelling, sorted. The
// result is a fresh slice the caller may modify.
func (r *Registry[C]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.blueprints))
	for _, bp := range r.blueprints {
		ids = append(ids, bp.ID())
	}
	sort.Strings(ids)
	return ids
}
