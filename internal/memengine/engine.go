package memengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Engine implements engine.Engine using maps and a mutex for thread-safe
// concurrent access.
type Engine struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	nodes   map[string]*Node
	state   lifecycle.State
	created map[pad.Kind]int
}

var _ engine.Engine = (*Engine)(nil)

// New creates an empty engine backed by the given catalog.
func New(c *catalog.Catalog) *Engine {
	return &Engine{
		catalog: c,
		nodes:   make(map[string]*Node),
		state:   lifecycle.Stopped,
		created: make(map[pad.Kind]int),
	}
}

// Catalog returns the catalog nodes are instantiated from.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// CreateNode instantiates a node. Always pads are created eagerly and every
// declared property starts at its default. New nodes start Stopped.
func (e *Engine) CreateNode(ctx context.Context, id string, kind pad.Kind, props map[string]cty.Value) (engine.Node, error) {
	spec, ok := e.catalog.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownKind, kind)
	}

	n := &Node{
		engine:     e,
		id:         id,
		spec:       spec,
		state:      lifecycle.Stopped,
		properties: defaults(spec.Properties),
		pads:       make(map[string]*Pad),
		next:       make(map[string]int),
	}
	for name, v := range props {
		p, ok := spec.Property(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no property %q", engine.ErrNoSuchProperty, kind, name)
		}
		coerced, err := p.Coerce(v)
		if err != nil {
			return nil, err
		}
		n.properties[name] = coerced
	}
	for _, d := range spec.StaticPads() {
		n.addPad(d.NamePattern, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %q", engine.ErrDuplicateNode, id)
	}
	e.nodes[id] = n
	e.created[kind]++

	ctxlog.FromContext(ctx).Debug("memengine: Node created.", "node_id", id, "kind", kind)
	return n, nil
}

// Node returns a node by id.
func (e *Engine) Node(id string) (engine.Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[id]
	if !ok {
		return nil, false
	}
	return n, true
}

// RemoveNode unlinks and forgets a node.
func (e *Engine) RemoveNode(ctx context.Context, id string) error {
	e.mu.Lock()
	n, ok := e.nodes[id]
	if ok {
		delete(e.nodes, id)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", engine.ErrNoSuchNode, id)
	}

	for _, p := range n.allPads() {
		p.unlink()
	}
	ctxlog.FromContext(ctx).Debug("memengine: Node removed.", "node_id", id)
	return nil
}

// Connect links src to sink. While the pipeline is past Stopped, both nodes
// must already be in the pipeline's state.
func (e *Engine) Connect(ctx context.Context, src, sink engine.Pad) error {
	s, ok := src.(*Pad)
	if !ok {
		return fmt.Errorf("%w: foreign pad %T", engine.ErrIncompatible, src)
	}
	d, ok := sink.(*Pad)
	if !ok {
		return fmt.Errorf("%w: foreign pad %T", engine.ErrIncompatible, sink)
	}
	if s.desc.Direction != pad.Out || d.desc.Direction != pad.In {
		return fmt.Errorf("%w: %s must be an output and %s an input", engine.ErrIncompatible, engine.RefOf(s), engine.RefOf(d))
	}
	if s.node == d.node {
		return fmt.Errorf("%w: cannot link %s to its own node", engine.ErrIncompatible, engine.RefOf(s))
	}

	if st := e.State(); st != lifecycle.Stopped {
		for _, n := range []*Node{s.node, d.node} {
			if n.State() != st {
				return fmt.Errorf("%w: %s is %s while the pipeline is %s", engine.ErrNotSynced, n.id, n.State(), st)
			}
		}
	}

	// Lock in a stable order so concurrent connects cannot deadlock.
	first, second := s, d
	if engine.RefOf(d).String() < engine.RefOf(s).String() {
		first, second = d, s
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if s.peer != nil || d.peer != nil {
		return fmt.Errorf("%w: %s or %s is already linked", engine.ErrIncompatible, engine.RefOf(s), engine.RefOf(d))
	}
	s.peer, d.peer = d, s

	ctxlog.FromContext(ctx).Debug("memengine: Pads connected.", "src", engine.RefOf(s).String(), "sink", engine.RefOf(d).String())
	return nil
}

// State returns the pipeline state.
func (e *Engine) State() lifecycle.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// SetState moves the pipeline and every node to s.
func (e *Engine) SetState(ctx context.Context, s lifecycle.State) error {
	if !s.Valid() {
		return fmt.Errorf("invalid lifecycle state %d", int(s))
	}
	e.mu.Lock()
	prev := e.state
	e.state = s
	nodes := make([]*Node, 0, len(e.nodes))
	for _, n := range e.nodes {
		nodes = append(nodes, n)
	}
	e.mu.Unlock()

	for _, n := range nodes {
		n.setState(s)
	}
	ctxlog.FromContext(ctx).Debug("memengine: Pipeline state changed.", "from", prev.String(), "to", s.String())
	return nil
}

// CreatedCount returns how many nodes of kind were ever created.
func (e *Engine) CreatedCount(kind pad.Kind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.created[kind]
}

// NodeIDs returns the ids of every live node in sorted order.
func (e *Engine) NodeIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.nodes))
	for id := range e.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Links returns every connection as a link between concrete pads, sorted.
func (e *Engine) Links() []pad.Link {
	var out []pad.Link
	for _, id := range e.NodeIDs() {
		n, ok := e.lookup(id)
		if !ok {
			continue
		}
		for _, p := range n.allPads() {
			if p.desc.Direction != pad.Out {
				continue
			}
			if peer := p.Peer(); peer != nil {
				out = append(out, pad.Link{From: engine.RefOf(p), To: engine.RefOf(peer)})
			}
		}
	}
	return out
}

// EmitPad makes a node produce a Sometimes output named name and delivers
// pad-added to every subscriber on the calling goroutine.
func (e *Engine) EmitPad(ctx context.Context, nodeID, name string) (engine.Pad, error) {
	n, ok := e.lookup(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrNoSuchNode, nodeID)
	}

	var tmpl *pad.Descriptor
	for _, d := range n.spec.Templates() {
		if d.Presence == pad.Sometimes && d.Accepts(name) {
			tmpl = &d
			break
		}
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%s has no sometimes template for pad %q", nodeID, name)
	}

	n.mu.Lock()
	if _, exists := n.pads[name]; exists {
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s.%s", engine.ErrPadExists, nodeID, name)
	}
	p := n.addPadLocked(name, *tmpl)
	handlers := append([]engine.PadAddedFunc(nil), n.padAdded...)
	n.mu.Unlock()

	for _, h := range handlers {
		h(ctx, p)
	}
	return p, nil
}

// NegotiateFormat sets the caps of a pad and delivers the format event to
// every subscriber on the calling goroutine. Repeated calls redeliver.
func (e *Engine) NegotiateFormat(ctx context.Context, p engine.Pad, caps engine.Caps) error {
	mp, ok := p.(*Pad)
	if !ok {
		return fmt.Errorf("%w: foreign pad %T", engine.ErrIncompatible, p)
	}
	mp.mu.Lock()
	mp.caps = &caps
	handlers := append([]engine.FormatFunc(nil), mp.format...)
	mp.mu.Unlock()

	for _, h := range handlers {
		h(ctx, mp, caps)
	}
	return nil
}

func (e *Engine) lookup(id string) (*Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[id]
	return n, ok
}

func defaults(props map[string]*catalog.Property) map[string]cty.Value {
	out := make(map[string]cty.Value, len(props))
	for name, p := range props {
		out[name] = p.Default
	}
	return out
}
