package dag

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError names the vertices of a cycle in traversal order. The first
// vertex is repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a vertex with the given ID. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{id: id, downstream: make(map[string]*node)}
	g.order = append(g.order, id)
}

// Has reports whether the vertex exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge records that fromID feeds toID. Both vertices must exist. A
// vertex feeding itself is a one-element cycle. Repeated edges collapse.
func (g *Graph) AddEdge(fromID, toID string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	if fromID == toID {
		return &CycleError{Path: []string{fromID, fromID}}
	}
	if _, dup := fromNode.downstream[toID]; !dup {
		fromNode.downstream[toID] = toNode
		toNode.indegree++
	}
	return nil
}

// DetectCycles returns a *CycleError for the first cycle reachable in
// insertion order, or nil.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	done := make(map[string]bool)
	onStack := make(map[string]int)
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if done[n.id] {
			return nil
		}
		if at, ok := onStack[n.id]; ok {
			path := append(append([]string(nil), stack[at:]...), n.id)
			return &CycleError{Path: path}
		}

		onStack[n.id] = len(stack)
		stack = append(stack, n.id)
		for _, id := range n.sortedDownstream() {
			if err := visit(n.downstream[id]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, n.id)
		done[n.id] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every vertex with producers before consumers.
// Ties are broken by insertion order, so the result is stable for a given
// sequence of AddNode calls.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	position := make(map[string]int, len(g.order))
	var ready []string
	for i, id := range g.order {
		indegree[id] = g.nodes[id].indegree
		position[id] = i
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)

		for _, next := range g.nodes[id].sortedDownstream() {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.SliceStable(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
	}
	return out, nil
}

func (n *node) sortedDownstream() []string {
	keys := make([]string, 0, len(n.downstream))
	for k := range n.downstream {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
