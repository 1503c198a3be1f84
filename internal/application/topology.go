package application

import (
	"fmt"

	"github.com/ahrav/go-rune/internal/domain"
)

// topology is the node-level dependency graph of a chain. Port-level links
// collapse into one edge per ordered node pair. Insertion order is kept so
// the topological order is deterministic.
type topology struct {
	// order lists node ids in insertion order.
	order []string
	// edges maps a node id to the ids that consume its outputs.
	edges map[string][]string
	// edgeSet provides O(1) duplicate edge detection.
	// Key format: "sourceID->targetID"
	edgeSet map[string]struct{}
	// inDegree tracks incoming edges per node for Kahn's algorithm.
	inDegree map[string]int
}

// newTopology creates an empty graph. A topology is owned by one
// ChainBuilder and is not safe for concurrent use.
func newTopology() *topology {
	return &topology{
		edges:    make(map[string][]string),
		edgeSet:  make(map[string]struct{}),
		inDegree: make(map[string]int),
	}
}

// hasNode reports whether id was added with addNode.
func (t *topology) hasNode(id string) bool {
	_, ok := t.inDegree[id]
	return ok
}

// addNode appends id to the graph with no edges. Adding an id twice
// returns an error wrapping domain.ErrDuplicateNode and leaves the graph
// unchanged.
func (t *topology) addNode(id string) error {
	if t.hasNode(id) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateNode, id)
	}
	t.order = append(t.order, id)
	t.edges[id] = make([]string, 0)
	t.inDegree[id] = 0
	return nil
}

// addEdge records that targetID depends on sourceID. Both ids must already
// be nodes; callers check this before linking ports. A second link between
// the same pair is a no-op, since several port links may join two nodes.
// Self-links and edges that would close a cycle return an error wrapping
// domain.ErrCycle, and a rejected edge is rolled back so the graph stays
// acyclic and usable for further links.
func (t *topology) addEdge(sourceID, targetID string) error {
	if sourceID == targetID {
		return fmt.Errorf("%w: %s links to itself", domain.ErrCycle, sourceID)
	}

	edgeKey := sourceID + "->" + targetID
	if _, exists := t.edgeSet[edgeKey]; exists {
		return nil
	}

	t.edges[sourceID] = append(t.edges[sourceID], targetID)
	t.edgeSet[edgeKey] = struct{}{}
	t.inDegree[targetID]++

	if t.hasCycle() {
		t.edges[sourceID] = t.edges[sourceID][:len(t.edges[sourceID])-1]
		delete(t.edgeSet, edgeKey)
		t.inDegree[targetID]--
		return fmt.Errorf("%w: %s -> %s", domain.ErrCycle, sourceID, targetID)
	}
	return nil
}

// sort returns node ids so that producers precede consumers, using Kahn's
// algorithm seeded in insertion order. Independent nodes therefore keep
// the order they were added in, which makes execution order deterministic
// across builds of the same document. The graph itself is not modified;
// in-degrees are copied. domain.ErrCycle is returned if some node could
// not be ordered, which addEdge's rollback should make impossible.
func (t *topology) sort() ([]string, error) {
	inDegree := make(map[string]int, len(t.inDegree))
	for k, v := range t.inDegree {
		inDegree[k] = v
	}

	queue := make([]string, 0)
	for _, id := range t.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(t.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		for _, next := range t.edges[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(t.order) {
		return nil, domain.ErrCycle
	}
	return result, nil
}

// hasCycle performs depth-first search with three-colour marking. A grey
// node reached again lies on the current path, which means a cycle. It
// visits every node, so disconnected components are covered.
func (t *topology) hasCycle() bool {
	// White (0): unvisited, Gray (1): visiting, Black (2): visited.
	colors := make(map[string]int, len(t.order))

	var dfs func(id string) bool
	dfs = func(id string) bool {
		colors[id] = 1
		for _, next := range t.edges[id] {
			if colors[next] == 1 {
				return true
			}
			if colors[next] == 0 && dfs(next) {
				return true
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range t.order {
		if colors[id] == 0 && dfs(id) {
			return true
		}
	}
	return false
}
