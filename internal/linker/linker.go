package linker

import (
	"context"
	"errors"
	"sync"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// RouteHandler takes over runtime outputs claimed by a dynamic route. Watch
// is called with the linker lock held and must only subscribe, never link.
// A non-nil result runs once the lock is released.
type RouteHandler interface {
	Watch(ctx context.Context, p engine.Pad, r graph.Route) func(context.Context)
}

// Linker resolves links of one graph.
type Linker struct {
	g      *graph.Graph
	routes RouteHandler
	// terminator is the kind attached to unclaimed outputs.
	terminator pad.Kind

	// mu serializes Resolve against HandlePadAdded.
	mu sync.Mutex
}

// Option configures a Linker.
type Option func(*Linker)

// WithRouteHandler sets the handler for dynamically routed outputs.
func WithRouteHandler(h RouteHandler) Option { return func(l *Linker) { l.routes = h } }

// WithTerminatorKind overrides the discarding sink kind.
func WithTerminatorKind(k pad.Kind) Option { return func(l *Linker) { l.terminator = k } }

// New creates a linker for g.
func New(g *graph.Graph, opts ...Option) *Linker {
	l := &Linker{g: g, terminator: pad.KindFakeSink}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetRouteHandler installs h after construction, for handlers that need the
// linker themselves.
func (l *Linker) SetRouteHandler(h RouteHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes = h
}

// Graph returns the graph the linker works on.
func (l *Linker) Graph() *graph.Graph { return l.g }

func (l *Linker) metrics() *metric.Metrics { return l.g.Metrics() }

// Resolve connects one link, or defers it when its output pad does not exist
// yet. Deferred links return nil.
func (l *Linker) Resolve(ctx context.Context, link pad.Link) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolve(ctx, link)
}

// ResolveAll resolves every link in order and joins the failures. Deferred
// links are not failures.
func (l *Linker) ResolveAll(ctx context.Context, links []pad.Link) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("ResolveAll: Starting link resolution.", "link_count", len(links))

	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, link := range links {
		if err := l.resolve(ctx, link); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Debug("ResolveAll: Link resolution complete.", "failed", len(errs))
	return errors.Join(errs...)
}

func (l *Linker) resolve(ctx context.Context, link pad.Link) error {
	logger := ctxlog.FromContext(ctx).With("link", link.String())

	from, ok := l.g.Lookup(link.From.Node)
	if !ok {
		l.metrics().LinkResolved(metric.OutcomeFailed)
		return elementNotFound(link, link.From.Node, pad.Out)
	}
	to, ok := l.g.Lookup(link.To.Node)
	if !ok {
		l.metrics().LinkResolved(metric.OutcomeFailed)
		return elementNotFound(link, link.To.Node, pad.In)
	}

	src, pattern, err := l.sourcePad(ctx, from, link)
	if err != nil {
		l.metrics().LinkResolved(metric.OutcomeFailed)
		return err
	}
	if src == nil {
		logger.Debug("Output pad does not exist yet, deferring link.", "producer", from.ID(), "pattern", pattern)
		if err := l.g.AddPending(ctx, from.ID(), pattern, link); err != nil {
			return err
		}
		l.metrics().LinkResolved(metric.OutcomeDeferred)
		return nil
	}

	if err := l.linkTo(ctx, link, src, to); err != nil {
		l.metrics().LinkResolved(metric.OutcomeFailed)
		return err
	}
	l.metrics().LinkResolved(metric.OutcomeLinked)
	logger.Debug("Link resolved.", "src", engine.RefOf(src).String())
	return nil
}

// LinkTo connects an existing output pad to the sink side of link, resolving
// the sink pad the same way Resolve does.
func (l *Linker) LinkTo(ctx context.Context, link pad.Link, src engine.Pad) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	to, ok := l.g.Lookup(link.To.Node)
	if !ok {
		return elementNotFound(link, link.To.Node, pad.In)
	}
	return l.linkTo(ctx, link, src, to)
}

func (l *Linker) linkTo(ctx context.Context, link pad.Link, src engine.Pad, to engine.Node) error {
	sink, err := l.sinkPad(ctx, to, link)
	if err != nil {
		return err
	}
	if err := l.g.Engine().Connect(ctx, src, sink); err != nil {
		return &LinkError{Kind: LinkIncompatible, Link: link, Node: to.ID(), Pad: sink.Name(), Direction: pad.In, Err: err}
	}
	return nil
}
