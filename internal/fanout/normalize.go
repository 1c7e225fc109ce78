package fanout

import (
	"strconv"
	"strings"

	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Namer picks the id of the distributor inserted behind a source.
type Namer func(from pad.Ref) string

// DefaultNamer derives "<node>_<pad>_tee", or "<node>_tee" for a source
// without a pad name.
func DefaultNamer(from pad.Ref) string {
	if !from.HasPad() {
		return from.Node + "_tee"
	}
	return from.Node + "_" + strings.ReplaceAll(from.Pad, "%", "") + "_tee"
}

// Normalizer inserts distributors of a given kind.
type Normalizer struct {
	// Kind of the synthesized distributor node.
	Kind pad.Kind
	// Output is the distributor's request-pad template, e.g. "src_%u".
	Output pad.Descriptor
	// Name picks distributor ids. Nil means DefaultNamer.
	Name Namer
}

// Default inserts tee elements with "src_%u" outputs.
var Default = Normalizer{
	Kind:   pad.KindTee,
	Output: pad.Descriptor{NamePattern: "src_%u", Direction: pad.Out, Presence: pad.Request},
}

// Result is the rewritten link list plus the distributors it refers to.
// Distributors must be created before any of Links is resolved.
type Result struct {
	Links        []pad.Link
	Distributors []pad.Node
}

// Normalize is Default.Normalize.
func Normalize(links []pad.Link, reserved ...string) Result {
	return Default.Normalize(links, reserved...)
}

// Normalize groups links by their From reference. Groups of one pass through
// unchanged. A group of k > 1 links is replaced, at the position of its first
// member, by from -> D followed by D.out[i] -> to[i] in input order.
// Distributor ids never collide with nodes named in links or in reserved.
func (n Normalizer) Normalize(links []pad.Link, reserved ...string) Result {
	name := n.Name
	if name == nil {
		name = DefaultNamer
	}

	groups := make(map[pad.Ref][]pad.Link)
	var order []pad.Ref
	taken := make(map[string]struct{}, len(reserved))
	for _, id := range reserved {
		taken[id] = struct{}{}
	}
	for _, l := range links {
		if _, seen := groups[l.From]; !seen {
			order = append(order, l.From)
		}
		groups[l.From] = append(groups[l.From], l)
		taken[l.From.Node] = struct{}{}
		taken[l.To.Node] = struct{}{}
	}

	var res Result
	res.Links = make([]pad.Link, 0, len(links)+len(order))
	for _, from := range order {
		group := groups[from]
		if len(group) == 1 {
			res.Links = append(res.Links, group[0])
			continue
		}

		id := unique(name(from), taken)
		taken[id] = struct{}{}
		res.Distributors = append(res.Distributors, pad.Node{ID: id, Kind: n.Kind})
		res.Links = append(res.Links, pad.Link{From: from, To: pad.NodeRef(id)})
		for i, l := range group {
			res.Links = append(res.Links, pad.Link{
				From: pad.PadRef(id, n.Output.Format(i)),
				To:   l.To,
			})
		}
	}
	return res
}

func unique(base string, taken map[string]struct{}) string {
	if _, ok := taken[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
