package topology

import (
	"sort"

	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/routing"
)

// External is a pad of an internal node that other blocks may link to.
type External struct {
	Name      string
	Ref       pad.Ref
	Direction pad.Direction
}

// DynamicRoute is an output whose processing chain is chosen at runtime
// once its format is known.
type DynamicRoute struct {
	Name     string
	Producer string
	// Pattern matches the producer's runtime pad names.
	Pattern  string
	Consumer pad.Ref
	Encoding string
}

// Control is a named boolean toggle bound to one node property.
type Control struct {
	Name     string
	Node     string
	Property string
	// Invert writes the negated value, for properties like a valve's "drop"
	// where on means false.
	Invert bool
}

// Value returns the property value for a toggle position.
func (c Control) Value(on bool) bool {
	return on != c.Invert
}

// Topology is a compiled block instance.
type Topology struct {
	Block         string
	Nodes         []pad.Node
	Links         []pad.Link
	External      map[string]External
	DynamicRoutes []DynamicRoute
	Controls      []Control
	// Plan is the routing analysis the block was compiled from, if any.
	Plan *routing.Plan
	// Warnings are non-fatal findings, such as unrouted source channels.
	Warnings []string
}

// Node returns the node with the given id.
func (t *Topology) Node(id string) (pad.Node, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return pad.Node{}, false
}

// Expose returns the external pad with the given name.
func (t *Topology) Expose(name string) (External, bool) {
	e, ok := t.External[name]
	return e, ok
}

// ExternalNames returns the external pad names of one direction, sorted.
func (t *Topology) ExternalNames(dir pad.Direction) []string {
	var out []string
	for name, e := range t.External {
		if e.Direction == dir {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Control returns the control with the given name.
func (t *Topology) Control(name string) (Control, bool) {
	for _, c := range t.Controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

// CountKind returns the number of nodes of kind.
func (t *Topology) CountKind(kind pad.Kind) int {
	n := 0
	for _, node := range t.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}
