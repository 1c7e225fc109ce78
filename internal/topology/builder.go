package topology

import (
	"errors"
	"fmt"
	"maps"

	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/routing"
)

// Builder accumulates a Topology.
type Builder struct {
	t    Topology
	ids  map[string]struct{}
	errs []error
}

// NewBuilder starts a topology for a block type.
func NewBuilder(block string) *Builder {
	return &Builder{
		t:   Topology{Block: block, External: make(map[string]External)},
		ids: make(map[string]struct{}),
	}
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// AddNode declares a node and returns a reference to it.
func (b *Builder) AddNode(id string, kind pad.Kind, props map[string]any) pad.Ref {
	switch {
	case !pad.ValidNodeID(id):
		b.fail("invalid node id %q", id)
	case b.has(id):
		b.fail("duplicate node id %q", id)
	default:
		b.ids[id] = struct{}{}
		var copied map[string]any
		if len(props) > 0 {
			copied = maps.Clone(props)
		}
		b.t.Nodes = append(b.t.Nodes, pad.Node{ID: id, Kind: kind, Properties: copied})
	}
	return pad.NodeRef(id)
}

func (b *Builder) has(id string) bool {
	_, ok := b.ids[id]
	return ok
}

// Link declares a symbolic link.
func (b *Builder) Link(from, to pad.Ref) {
	b.t.Links = append(b.t.Links, pad.Link{From: from, To: to})
}

// Chain links each reference to the next one through default pads.
func (b *Builder) Chain(refs ...pad.Ref) {
	for i := 1; i < len(refs); i++ {
		b.Link(refs[i-1], refs[i])
	}
}

// Expose publishes an internal pad under name.
func (b *Builder) Expose(name string, ref pad.Ref, dir pad.Direction) {
	if _, dup := b.t.External[name]; dup {
		b.fail("duplicate external pad %q", name)
		return
	}
	b.t.External[name] = External{Name: name, Ref: ref, Direction: dir}
}

// AddDynamicRoute declares a runtime-spliced output.
func (b *Builder) AddDynamicRoute(r DynamicRoute) {
	b.t.DynamicRoutes = append(b.t.DynamicRoutes, r)
}

// AddControl declares a toggle.
func (b *Builder) AddControl(c Control) {
	if _, dup := b.t.Control(c.Name); dup {
		b.fail("duplicate control %q", c.Name)
		return
	}
	b.t.Controls = append(b.t.Controls, c)
}

// SetPlan records the routing analysis.
func (b *Builder) SetPlan(p *routing.Plan) { b.t.Plan = p }

// Warn records a non-fatal finding.
func (b *Builder) Warn(format string, args ...any) {
	b.t.Warnings = append(b.t.Warnings, fmt.Sprintf(format, args...))
}

// Build checks that every reference names a declared node and returns the
// topology, or every problem found joined into one error.
func (b *Builder) Build() (*Topology, error) {
	for _, l := range b.t.Links {
		if !b.has(l.From.Node) {
			b.fail("link %s: unknown source node %q", l, l.From.Node)
		}
		if !b.has(l.To.Node) {
			b.fail("link %s: unknown destination node %q", l, l.To.Node)
		}
	}
	for name, e := range b.t.External {
		if !b.has(e.Ref.Node) {
			b.fail("external pad %q: unknown node %q", name, e.Ref.Node)
		}
	}
	for _, r := range b.t.DynamicRoutes {
		if !b.has(r.Producer) {
			b.fail("dynamic route %q: unknown producer %q", r.Name, r.Producer)
		}
		if !b.has(r.Consumer.Node) {
			b.fail("dynamic route %q: unknown consumer %q", r.Name, r.Consumer.Node)
		}
	}
	for _, c := range b.t.Controls {
		if !b.has(c.Node) {
			b.fail("control %q: unknown node %q", c.Name, c.Node)
		}
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid %s topology: %w", b.t.Block, errors.Join(b.errs...))
	}
	t := b.t
	return &t, nil
}
