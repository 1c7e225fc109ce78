package dag

import "sync"

// Graph is a set of vertices connected by producer -> consumer edges.
// All operations on the graph are concurrency-safe.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	// order records insertion order so traversals are deterministic.
	order []string
}

type node struct {
	id         string
	downstream map[string]*node
	indegree   int
}
