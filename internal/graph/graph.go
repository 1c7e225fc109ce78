package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Graph is the owning context of one graph instance. All methods are safe
// for concurrent use.
type Graph struct {
	id      string
	eng     engine.Engine
	sink    diag.Sink
	metrics *metric.Metrics
	events  *diag.Recorder
	now     func() time.Time

	mu          sync.Mutex
	nodes       map[string]engine.Node
	order       []string
	pending     []Pending
	routes      []*Route
	terminators []Terminator
	closed      bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithID overrides the generated graph id.
func WithID(id string) Option { return func(g *Graph) { g.id = id } }

// WithSink sets where diagnostic events go in addition to the in-memory log.
func WithSink(s diag.Sink) Option { return func(g *Graph) { g.sink = s } }

// WithMetrics enables metrics.
func WithMetrics(m *metric.Metrics) Option { return func(g *Graph) { g.metrics = m } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(g *Graph) { g.now = now } }

// New creates an empty graph bound to an engine.
func New(eng engine.Engine, opts ...Option) *Graph {
	g := &Graph{
		id:     uuid.NewString(),
		eng:    eng,
		events: diag.NewRecorder(256),
		now:    time.Now,
		nodes:  make(map[string]engine.Node),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Graph) ID() string               { return g.id }
func (g *Graph) Engine() engine.Engine    { return g.eng }
func (g *Graph) Metrics() *metric.Metrics { return g.metrics }

// CreateNode instantiates n on the engine and registers it under the graph
// lock before returning it, so runtime callbacks always find the node.
func (g *Graph) CreateNode(ctx context.Context, n pad.Node) (engine.Node, error) {
	return g.createNode(ctx, n, nil)
}

func (g *Graph) createNode(ctx context.Context, n pad.Node, terminates *pad.Ref) (engine.Node, error) {
	props := make(map[string]cty.Value, len(n.Properties))
	spec, ok := g.eng.Catalog().Lookup(n.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q for node %q", engine.ErrUnknownKind, n.Kind, n.ID)
	}
	for name, raw := range n.Properties {
		p, ok := spec.Property(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no property %q (node %q)", engine.ErrNoSuchProperty, n.Kind, name, n.ID)
		}
		v, err := p.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		props[name] = v
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if _, exists := g.nodes[n.ID]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
	}
	created, err := g.eng.CreateNode(ctx, n.ID, n.Kind, props)
	if err != nil {
		return nil, fmt.Errorf("failed to create node %q: %w", n.ID, err)
	}
	g.registerLocked(created)
	if terminates != nil {
		g.terminators = append(g.terminators, Terminator{Node: n.ID, Producer: *terminates, Time: g.now()})
	}
	g.metrics.NodeCreated(string(n.Kind))
	return created, nil
}

// Register adds a node created elsewhere.
func (g *Graph) Register(n engine.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if _, exists := g.nodes[n.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID())
	}
	g.registerLocked(n)
	return nil
}

func (g *Graph) registerLocked(n engine.Node) {
	g.nodes[n.ID()] = n
	g.order = append(g.order, n.ID())
}

// RemoveNode unregisters a node and removes it from the engine, which drops
// its connections.
func (g *Graph) RemoveNode(ctx context.Context, id string) error {
	g.mu.Lock()
	if _, ok := g.nodes[id]; !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", engine.ErrNoSuchNode, id)
	}
	delete(g.nodes, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	g.mu.Unlock()

	if err := g.eng.RemoveNode(ctx, id); err != nil {
		return fmt.Errorf("failed to remove node %q: %w", id, err)
	}
	ctxlog.FromContext(ctx).Debug("Node removed.", "graph", g.id, "node_id", id)
	return nil
}

// Lookup returns a registered node.
func (g *Graph) Lookup(id string) (engine.Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns registered ids in registration order.
func (g *Graph) NodeIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.order...)
}

// AddPending defers link until a pad of producer matching pattern appears.
func (g *Graph) AddPending(ctx context.Context, producer, pattern string, link pad.Link) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.pending = append(g.pending, Pending{Producer: producer, Pattern: pattern, Link: link, Since: g.now()})
	n := len(g.pending)
	g.mu.Unlock()

	g.metrics.SetPending(g.id, n)
	g.Emit(ctx, diag.Event{Kind: diag.KindPendingLink, Node: producer, Pad: pattern, Link: link.String()})
	return nil
}

// ClaimPending removes and returns the first pending link of producer whose
// pattern matches padName.
func (g *Graph) ClaimPending(producer, padName string) (Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, p := range g.pending {
		if p.Producer == producer && pad.MatchesPattern(p.Pattern, padName) {
			g.pending = append(g.pending[:i:i], g.pending[i+1:]...)
			g.metrics.SetPending(g.id, len(g.pending))
			return p, true
		}
	}
	return Pending{}, false
}

// Pending returns a copy of the pending-link table.
func (g *Graph) Pending() []Pending {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Pending(nil), g.pending...)
}

// AddRoute registers a dynamic route.
func (g *Graph) AddRoute(r Route) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	r.Pad = ""
	g.routes = append(g.routes, &r)
	return nil
}

// ClaimRoute binds the first unclaimed route of producer matching padName to
// that pad and returns it.
func (g *Graph) ClaimRoute(producer, padName string) (Route, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.routes {
		if r.Pad == "" && r.Producer == producer && pad.MatchesPattern(r.Pattern, padName) {
			r.Pad = padName
			return *r, true
		}
	}
	return Route{}, false
}

// HasRoutes reports whether producer has any dynamic route.
func (g *Graph) HasRoutes(producer string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.routes {
		if r.Producer == producer {
			return true
		}
	}
	return false
}

// Routes returns a copy of the dynamic routes.
func (g *Graph) Routes() []Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Route, len(g.routes))
	for i, r := range g.routes {
		out[i] = *r
	}
	return out
}

// CreateTerminator instantiates a discarding sink for producer and registers
// it, all under the graph lock. The caller connects it.
func (g *Graph) CreateTerminator(ctx context.Context, producer pad.Ref, n pad.Node) (engine.Node, error) {
	return g.createNode(ctx, n, &producer)
}

// Terminators returns a copy of the terminator registry.
func (g *Graph) Terminators() []Terminator {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Terminator(nil), g.terminators...)
}

// Emit stamps ev with the graph id and time and records it.
func (g *Graph) Emit(ctx context.Context, ev diag.Event) {
	ev.Graph = g.id
	if ev.Time.IsZero() {
		ev.Time = g.now()
	}
	g.events.Emit(ctx, ev)
	g.metrics.Emit(ctx, ev)
	if g.sink != nil {
		g.sink.Emit(ctx, ev)
	}
}

// Diagnostics returns a snapshot of the non-fatal state.
func (g *Graph) Diagnostics() Diagnostics {
	g.mu.Lock()
	d := Diagnostics{
		Graph:       g.id,
		Closed:      g.closed,
		Nodes:       len(g.nodes),
		Pending:     append([]Pending(nil), g.pending...),
		Terminators: append([]Terminator(nil), g.terminators...),
	}
	for _, r := range g.routes {
		d.Routes = append(d.Routes, *r)
	}
	g.mu.Unlock()
	d.Events = g.events.Events()
	return d
}

// Closed reports whether Teardown ran.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Teardown stops the pipeline, discards pending links without error and
// removes every registered node from the engine, newest first. It is
// idempotent.
func (g *Graph) Teardown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("graph", g.id)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	discarded := g.pending
	g.pending = nil
	order := g.order
	g.order = nil
	g.nodes = make(map[string]engine.Node)
	g.routes = nil
	g.mu.Unlock()

	logger.Debug("Teardown: Stopping pipeline.", "nodes", len(order), "pending", len(discarded))
	for _, p := range discarded {
		g.Emit(ctx, diag.Event{Kind: diag.KindPendingDiscarded, Node: p.Producer, Pad: p.Pattern, Link: p.Link.String()})
	}
	g.metrics.ForgetGraph(g.id)

	var errs []error
	if err := g.eng.SetState(ctx, lifecycle.Stopped); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop pipeline: %w", err))
	}
	for i := len(order) - 1; i >= 0; i-- {
		if err := g.eng.RemoveNode(ctx, order[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("teardown of graph %s: %w", g.id, errors.Join(errs...))
	}
	return nil
}
