package topology

import (
	"maps"

	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Prefixed returns a copy of t with every node id namespaced as
// "instance/id", so several instances of one block can share a graph.
func (t *Topology) Prefixed(instance string) *Topology {
	id := func(node string) string { return instance + "/" + node }
	ref := func(r pad.Ref) pad.Ref { return r.WithNode(id(r.Node)) }

	out := &Topology{
		Block:    t.Block,
		Plan:     t.Plan,
		External: make(map[string]External, len(t.External)),
		Warnings: append([]string(nil), t.Warnings...),
	}
	for _, n := range t.Nodes {
		n.ID = id(n.ID)
		if n.Properties != nil {
			n.Properties = maps.Clone(n.Properties)
		}
		out.Nodes = append(out.Nodes, n)
	}
	for _, l := range t.Links {
		out.Links = append(out.Links, pad.Link{From: ref(l.From), To: ref(l.To)})
	}
	for name, e := range t.External {
		e.Ref = ref(e.Ref)
		out.External[name] = e
	}
	for _, r := range t.DynamicRoutes {
		r.Producer = id(r.Producer)
		r.Consumer = ref(r.Consumer)
		out.DynamicRoutes = append(out.DynamicRoutes, r)
	}
	for _, c := range t.Controls {
		c.Node = id(c.Node)
		out.Controls = append(out.Controls, c)
	}
	return out
}
