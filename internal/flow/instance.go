package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/guard"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/linker"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/splice"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
)

var (
	// ErrUnknownTarget is returned for property targets that do not exist.
	ErrUnknownTarget = errors.New("unknown property target")
	// ErrUnknownControl is returned for control names no block declared.
	ErrUnknownControl = errors.New("unknown control")
)

// Instance is one built flow bound to its graph.
type Instance struct {
	name     string
	g        *graph.Graph
	linker   *linker.Linker
	splicer  *splice.Splicer
	blocks   map[string]*topology.Topology
	controls map[string]topology.Control
	warnings []string
}

// Name returns the flow name.
func (inst *Instance) Name() string { return inst.name }

// Graph returns the graph owning the instance's nodes.
func (inst *Instance) Graph() *graph.Graph { return inst.g }

// Splicer returns the splicer serving the instance's dynamic routes.
func (inst *Instance) Splicer() *splice.Splicer { return inst.splicer }

// Block returns the compiled, namespaced topology of a block instance.
func (inst *Instance) Block(name string) (*topology.Topology, bool) {
	t, ok := inst.blocks[name]
	return t, ok
}

// Warnings returns the non-fatal compile findings, prefixed by block name.
func (inst *Instance) Warnings() []string {
	return append([]string(nil), inst.warnings...)
}

// Controls returns the names of every control, sorted.
func (inst *Instance) Controls() []string {
	out := make([]string, 0, len(inst.controls))
	for name := range inst.controls {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// target resolves "node" or "node.pad" to a property holder.
func (inst *Instance) target(raw string) (engine.PropertyHolder, error) {
	ref, err := pad.ParseRef(raw)
	if err != nil {
		return nil, err
	}
	n, ok := inst.g.Lookup(ref.Node)
	if !ok {
		return nil, fmt.Errorf("%w: node %q", ErrUnknownTarget, ref.Node)
	}
	if !ref.HasPad() {
		return n, nil
	}
	p, ok := n.StaticPad(ref.Pad)
	if !ok {
		return nil, fmt.Errorf("%w: pad %q", ErrUnknownTarget, raw)
	}
	return p, nil
}

// UpdateProperty writes a property on a node ("node") or pad ("node.pad")
// after checking its mutability against the pipeline state. The value is
// coerced to the declared type first.
func (inst *Instance) UpdateProperty(ctx context.Context, target, name string, value any) error {
	logger := ctxlog.FromContext(ctx).With("target", target, "property", name)
	m := inst.g.Metrics()

	holder, err := inst.target(target)
	if err != nil {
		m.PropertyUpdate(metric.ResultFailed)
		return err
	}
	spec, ok := holder.PropertySpec(name)
	if !ok {
		m.PropertyUpdate(metric.ResultFailed)
		return fmt.Errorf("%w: %s has no property %q", engine.ErrNoSuchProperty, target, name)
	}

	state := inst.g.Engine().State()
	if err := guard.Check(target, name, spec.Mutability, value, state); err != nil {
		m.PropertyUpdate(metric.ResultRejected)
		logger.Warn("Property update rejected.", "state", state.String(), "error", err)
		return err
	}

	v, err := spec.Coerce(value)
	if err != nil {
		m.PropertyUpdate(metric.ResultFailed)
		return fmt.Errorf("failed to update %s: %w", target, err)
	}
	if err := holder.SetProperty(ctx, name, v); err != nil {
		m.PropertyUpdate(metric.ResultFailed)
		return fmt.Errorf("failed to update %s: %w", target, err)
	}
	m.PropertyUpdate(metric.ResultApplied)
	logger.Debug("Property updated.", "value", v.GoString())
	return nil
}

// GetProperty reads a property of a node or pad.
func (inst *Instance) GetProperty(_ context.Context, target, name string) (cty.Value, error) {
	holder, err := inst.target(target)
	if err != nil {
		return cty.NilVal, err
	}
	return holder.Property(name)
}

// PropertySpec returns the declaration of a node or pad property.
func (inst *Instance) PropertySpec(target, name string) (*catalog.Property, error) {
	holder, err := inst.target(target)
	if err != nil {
		return nil, err
	}
	spec, ok := holder.PropertySpec(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no property %q", engine.ErrNoSuchProperty, target, name)
	}
	return spec, nil
}

// SetControl flips a named toggle, such as a mixer route, without
// rebuilding the graph.
func (inst *Instance) SetControl(ctx context.Context, name string, on bool) error {
	c, ok := inst.controls[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return inst.UpdateProperty(ctx, c.Node, c.Property, c.Value(on))
}

// Control reports the current position of a named toggle.
func (inst *Instance) Control(ctx context.Context, name string) (bool, error) {
	c, ok := inst.controls[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	v, err := inst.GetProperty(ctx, c.Node, c.Property)
	if err != nil {
		return false, err
	}
	if v.Type() != cty.Bool || v.IsNull() {
		return false, fmt.Errorf("control %q: property %s.%s is not a bool", name, c.Node, c.Property)
	}
	return v.True() != c.Invert, nil
}

// AddElement inserts a node into the graph, which may be running, and
// resolves links touching it. The node is synced to the pipeline state
// before any of its links is connected.
func (inst *Instance) AddElement(ctx context.Context, n pad.Node, links []pad.Link) error {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID)
	if !pad.ValidNodeID(n.ID) {
		return fmt.Errorf("element %q: invalid identifier", n.ID)
	}
	if _, err := inst.createNode(ctx, n); err != nil {
		return err
	}
	if err := inst.linker.ResolveAll(ctx, links); err != nil {
		logger.Error("Runtime element could not be fully linked.", "error", err)
		return err
	}
	logger.Info("Runtime element added.", "kind", string(n.Kind), "links", len(links))
	return nil
}

// State returns the pipeline state.
func (inst *Instance) State() lifecycle.State { return inst.g.Engine().State() }

// SetState moves the pipeline to s.
func (inst *Instance) SetState(ctx context.Context, s lifecycle.State) error {
	if inst.g.Closed() {
		return graph.ErrClosed
	}
	if err := inst.g.Engine().SetState(ctx, s); err != nil {
		return fmt.Errorf("failed to set state %s: %w", s, err)
	}
	ctxlog.FromContext(ctx).Info("Pipeline state changed.", "graph", inst.g.ID(), "state", s.String())
	return nil
}

// Teardown stops the pipeline and removes every node. Pending links are
// discarded without error.
func (inst *Instance) Teardown(ctx context.Context) error {
	return inst.g.Teardown(ctx)
}

// Diagnostics is a snapshot of the instance's non-fatal state.
type Diagnostics struct {
	graph.Diagnostics
	Flow     string            `json:"flow"`
	State    string            `json:"state"`
	Splices  map[string]string `json:"splices"`
	Warnings []string          `json:"warnings"`
}

// Diagnostics returns the current snapshot.
func (inst *Instance) Diagnostics() Diagnostics {
	d := Diagnostics{
		Diagnostics: inst.g.Diagnostics(),
		Flow:        inst.name,
		State:       inst.State().String(),
		Splices:     make(map[string]string),
		Warnings:    inst.Warnings(),
	}
	for ref, st := range inst.splicer.States() {
		d.Splices[ref] = st.String()
	}
	return d
}
