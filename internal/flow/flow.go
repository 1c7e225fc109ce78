package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eyevinn-osaas/strom-sub001/internal/config"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/dag"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/fanout"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/linker"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
	"github.com/eyevinn-osaas/strom-sub001/internal/splice"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
)

// Options configures Build.
type Options struct {
	Registry *registry.Registry
	Engine   engine.Engine
	// ID names the graph. Empty means a random id.
	ID      string
	Sink    diag.Sink
	Metrics *metric.Metrics
	// Rules selects adapter chains for dynamic routes. Nil means
	// splice.DefaultRules.
	Rules splice.Rules
	// State is applied to the pipeline after a successful build.
	State lifecycle.State
}

// Build compiles and instantiates model.
func Build(ctx context.Context, model *config.Model, opts Options) (inst *Instance, err error) {
	start := time.Now()
	defer func() { opts.Metrics.ObserveBuild(time.Since(start), err) }()

	if opts.Registry == nil || opts.Engine == nil {
		return nil, errors.New("flow: registry and engine are required")
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow %q: %w", model.Name, err)
	}

	logger := ctxlog.FromContext(ctx).With("flow", model.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("Build: Compiling flow.", "blocks", len(model.Blocks), "elements", len(model.Elements), "links", len(model.Links))

	plan, err := compile(ctx, model, opts.Registry)
	if err != nil {
		return nil, err
	}

	gopts := []graph.Option{graph.WithSink(opts.Sink), graph.WithMetrics(opts.Metrics)}
	if opts.ID != "" {
		gopts = append(gopts, graph.WithID(opts.ID))
	}
	g := graph.New(opts.Engine, gopts...)
	l := linker.New(g)
	inst = &Instance{
		name:     model.Name,
		g:        g,
		linker:   l,
		splicer:  splice.New(l, opts.Rules),
		blocks:   plan.blocks,
		controls: plan.controls,
		warnings: plan.warnings,
	}
	logger = logger.With("graph", g.ID())
	ctx = ctxlog.WithLogger(ctx, logger)

	if err := inst.instantiate(ctx, plan); err != nil {
		if tdErr := g.Teardown(ctx); tdErr != nil {
			err = errors.Join(err, tdErr)
		}
		logger.Error("Build: Failed, instance torn down.", "error", err)
		return nil, err
	}

	if opts.State != opts.Engine.State() {
		if err := inst.SetState(ctx, opts.State); err != nil {
			if tdErr := g.Teardown(ctx); tdErr != nil {
				err = errors.Join(err, tdErr)
			}
			logger.Error("Build: Failed to reach initial state, instance torn down.", "error", err)
			return nil, err
		}
	}
	logger.Info("Build: Flow is ready.", "nodes", len(plan.nodes), "links", len(plan.links), "pending", len(g.Pending()), "warnings", len(plan.warnings))
	return inst, nil
}

// buildPlan is the flat, namespaced result of compiling a model.
type buildPlan struct {
	nodes    []pad.Node
	links    []pad.Link
	routes   []graph.Route
	blocks   map[string]*topology.Topology
	controls map[string]topology.Control
	warnings []string
}

func compile(ctx context.Context, model *config.Model, reg *registry.Registry) (*buildPlan, error) {
	p := &buildPlan{
		blocks:   make(map[string]*topology.Topology, len(model.Blocks)),
		controls: make(map[string]topology.Control),
	}

	var errs []error
	for _, b := range model.Blocks {
		top, err := reg.Compile(ctx, b.Type, b.Params)
		if err != nil {
			errs = append(errs, fmt.Errorf("block %q: %w", b.Name, err))
			continue
		}
		top = top.Prefixed(b.Name)
		p.blocks[b.Name] = top
		p.nodes = append(p.nodes, top.Nodes...)
		p.links = append(p.links, top.Links...)
		for _, r := range top.DynamicRoutes {
			p.routes = append(p.routes, graph.Route{
				Name:     b.Name + "." + r.Name,
				Producer: r.Producer,
				Pattern:  r.Pattern,
				Consumer: r.Consumer,
				Encoding: r.Encoding,
			})
		}
		for _, c := range top.Controls {
			c.Name = b.Name + "." + c.Name
			p.controls[c.Name] = c
		}
		for _, w := range top.Warnings {
			p.warnings = append(p.warnings, b.Name+": "+w)
		}
	}

	for _, e := range model.Elements {
		if !pad.ValidNodeID(e.ID) {
			errs = append(errs, fmt.Errorf("element %q: invalid identifier", e.ID))
			continue
		}
		n := pad.Node{ID: e.ID, Kind: pad.Kind(e.Kind), Properties: make(map[string]any, len(e.Properties))}
		for k, v := range e.Properties {
			n.Properties[k] = v
		}
		p.nodes = append(p.nodes, n)
	}

	for i, raw := range model.Links {
		from, err := p.mapRef(raw.From, pad.Out)
		if err != nil {
			errs = append(errs, fmt.Errorf("link %d: %w", i, err))
			continue
		}
		to, err := p.mapRef(raw.To, pad.In)
		if err != nil {
			errs = append(errs, fmt.Errorf("link %d: %w", i, err))
			continue
		}
		p.links = append(p.links, pad.Link{From: from, To: to})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to compile flow %q: %w", model.Name, errors.Join(errs...))
	}

	res := fanout.Default.Normalize(p.links, p.nodeIDs()...)
	p.links = res.Links
	p.nodes = append(p.nodes, res.Distributors...)

	if err := p.orderNodes(); err != nil {
		return nil, fmt.Errorf("flow %q: %w", model.Name, err)
	}
	sort.Strings(p.warnings)
	return p, nil
}

// mapRef parses a flow reference and rewrites references to block external
// pads onto the internal pad behind them.
func (p *buildPlan) mapRef(raw string, dir pad.Direction) (pad.Ref, error) {
	ref, err := pad.ParseRef(raw)
	if err != nil {
		return pad.Ref{}, err
	}
	top, isBlock := p.blocks[ref.Node]
	if !isBlock {
		return ref, nil
	}
	if !ref.HasPad() {
		return pad.Ref{}, fmt.Errorf("reference %q names block %q without an external pad (have %v)", raw, ref.Node, top.ExternalNames(dir))
	}
	ext, ok := top.Expose(ref.Pad)
	if !ok {
		return pad.Ref{}, fmt.Errorf("block %q has no external pad %q (have %v)", ref.Node, ref.Pad, top.ExternalNames(dir))
	}
	if ext.Direction != dir {
		return pad.Ref{}, fmt.Errorf("external pad %q of block %q is an %s pad, used as %s", ref.Pad, ref.Node, ext.Direction, dir)
	}
	return ext.Ref, nil
}

func (p *buildPlan) nodeIDs() []string {
	ids := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		ids[i] = n.ID
	}
	return ids
}

// orderNodes rejects cycles across blocks and sorts nodes producers first.
// Links naming unknown nodes are left for the linker to report.
func (p *buildPlan) orderNodes() error {
	g := dag.New()
	for _, n := range p.nodes {
		g.AddNode(n.ID)
	}
	for _, l := range p.links {
		if !g.Has(l.From.Node) || !g.Has(l.To.Node) {
			continue
		}
		if err := g.AddEdge(l.From.Node, l.To.Node); err != nil {
			return fmt.Errorf("link %s: %w", l, err)
		}
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(p.nodes, func(i, j int) bool { return rank[p.nodes[i].ID] < rank[p.nodes[j].ID] })
	return nil
}

// instantiate registers routes, creates every node and resolves every link.
func (inst *Instance) instantiate(ctx context.Context, p *buildPlan) error {
	logger := ctxlog.FromContext(ctx)
	for _, r := range p.routes {
		if err := inst.g.AddRoute(r); err != nil {
			return err
		}
	}

	logger.Debug("Build: Creating nodes.", "count", len(p.nodes))
	for _, n := range p.nodes {
		if _, err := inst.createNode(ctx, n); err != nil {
			return err
		}
	}

	logger.Debug("Build: Resolving links.", "count", len(p.links))
	if err := inst.linker.ResolveAll(ctx, p.links); err != nil {
		return fmt.Errorf("failed to link flow %q: %w", inst.name, err)
	}
	return nil
}

// createNode runs instantiate, sync and attach for one node.
func (inst *Instance) createNode(ctx context.Context, n pad.Node) (engine.Node, error) {
	created, err := inst.g.CreateNode(ctx, n)
	if err != nil {
		return nil, err
	}
	if err := created.SyncStateWithParent(ctx); err != nil {
		return nil, fmt.Errorf("failed to sync node %q: %w", n.ID, err)
	}
	inst.linker.Attach(created)
	return created, nil
}
