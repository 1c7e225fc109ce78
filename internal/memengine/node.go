package memengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Node is an in-memory engine.Node.
type Node struct {
	engine *Engine
	id     string
	spec   *catalog.Element

	mu         sync.Mutex
	state      lifecycle.State
	properties map[string]cty.Value
	pads       map[string]*Pad
	padOrder   []string
	// next is the next free index per request template pattern.
	next     map[string]int
	padAdded []engine.PadAddedFunc
}

var _ engine.Node = (*Node)(nil)

func (n *Node) ID() string             { return n.id }
func (n *Node) Kind() pad.Kind         { return n.spec.Kind }
func (n *Node) Spec() *catalog.Element { return n.spec }

func (n *Node) Pads() []engine.Pad {
	pads := n.allPads()
	out := make([]engine.Pad, len(pads))
	for i, p := range pads {
		out[i] = p
	}
	return out
}

func (n *Node) StaticPad(name string) (engine.Pad, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pads[name]
	if !ok {
		return nil, false
	}
	return p, true
}

func (n *Node) Templates() []pad.Descriptor { return n.spec.Templates() }

// RequestPad mints a pad from a Request template. Request pads are not
// reported through pad-added.
func (n *Node) RequestPad(_ context.Context, tmpl pad.Descriptor, name string) (engine.Pad, error) {
	declared := false
	for _, d := range n.spec.Templates() {
		if d.NamePattern == tmpl.NamePattern && d.Presence == pad.Request {
			tmpl, declared = d, true
			break
		}
	}
	if !declared {
		return nil, fmt.Errorf("%w: %s has no request template %q", engine.ErrNotRequestable, n.id, tmpl.NamePattern)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if name == "" {
		for {
			candidate := tmpl.Format(n.next[tmpl.NamePattern])
			n.next[tmpl.NamePattern]++
			if _, taken := n.pads[candidate]; !taken {
				name = candidate
				break
			}
		}
	} else if !tmpl.Accepts(name) {
		return nil, fmt.Errorf("%w: %q does not fit template %q of %s", engine.ErrNotRequestable, name, tmpl.NamePattern, n.id)
	}
	if _, exists := n.pads[name]; exists {
		return nil, fmt.Errorf("%w: %s.%s", engine.ErrPadExists, n.id, name)
	}
	return n.addPadLocked(name, tmpl), nil
}

func (n *Node) OnPadAdded(fn engine.PadAddedFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.padAdded = append(n.padAdded, fn)
}

func (n *Node) State() lifecycle.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Node) SyncStateWithParent(_ context.Context) error {
	n.setState(n.engine.State())
	return nil
}

func (n *Node) PropertySpec(name string) (*catalog.Property, bool) {
	return n.spec.Property(name)
}

func (n *Node) Property(name string) (cty.Value, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.properties[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %s has no property %q", engine.ErrNoSuchProperty, n.id, name)
	}
	return v, nil
}

func (n *Node) SetProperty(_ context.Context, name string, v cty.Value) error {
	p, ok := n.spec.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s has no property %q", engine.ErrNoSuchProperty, n.id, name)
	}
	coerced, err := p.Coerce(v)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.properties[name] = coerced
	return nil
}

func (n *Node) setState(s lifecycle.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = s
}

func (n *Node) addPad(name string, d pad.Descriptor) *Pad {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addPadLocked(name, d)
}

func (n *Node) addPadLocked(name string, d pad.Descriptor) *Pad {
	p := &Pad{
		node:       n,
		name:       name,
		desc:       d,
		properties: make(map[string]cty.Value),
	}
	if props, ok := n.spec.PadProperties[d.NamePattern]; ok {
		p.properties = defaults(props)
	}
	n.pads[name] = p
	n.padOrder = append(n.padOrder, name)
	return p
}

// allPads returns the pads in creation order.
func (n *Node) allPads() []*Pad {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Pad, 0, len(n.padOrder))
	for _, name := range n.padOrder {
		out = append(out, n.pads[name])
	}
	return out
}

// PadNames returns the sorted names of every pad.
func (n *Node) PadNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := append([]string(nil), n.padOrder...)
	sort.Strings(names)
	return names
}
