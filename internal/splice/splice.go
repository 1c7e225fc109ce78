package splice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/linker"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Splicer builds adapter chains for dynamically routed outputs. It
// implements linker.RouteHandler.
type Splicer struct {
	g     *graph.Graph
	l     *linker.Linker
	rules Rules

	mu    sync.Mutex
	cells map[pad.Ref]*Cell
}

// New creates a splicer and installs it as l's route handler. A nil rules
// set means DefaultRules.
func New(l *linker.Linker, rules Rules) *Splicer {
	if rules == nil {
		rules = DefaultRules()
	}
	s := &Splicer{g: l.Graph(), l: l, rules: rules, cells: make(map[pad.Ref]*Cell)}
	l.SetRouteHandler(s)
	return s
}

// Watch installs the one-shot format observer on p. Caps already fixed on p
// are replayed by the returned func, which must run without the linker lock.
func (s *Splicer) Watch(ctx context.Context, p engine.Pad, r graph.Route) func(context.Context) {
	ref := engine.RefOf(p)
	s.mu.Lock()
	cell, ok := s.cells[ref]
	if !ok {
		cell = &Cell{}
		s.cells[ref] = cell
	}
	s.mu.Unlock()
	if ok {
		return nil
	}

	ctxlog.FromContext(ctx).Debug("Watching output format.", "pad", ref.String(), "route", r.Name)
	p.OnFormat(func(ctx context.Context, p engine.Pad, caps engine.Caps) {
		s.onFormat(ctx, cell, p, r, caps)
	})
	if _, fixed := p.Caps(); !fixed {
		return nil
	}
	return func(ctx context.Context) {
		if caps, ok := p.Caps(); ok {
			ctxlog.FromContext(ctx).Debug("Replaying format fixed before watch.", "pad", ref.String(), "caps", caps.String())
			s.onFormat(ctx, cell, p, r, caps)
		}
	}
}

// Cell returns the splice cell of an output.
func (s *Splicer) Cell(ref pad.Ref) (*Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[ref]
	return c, ok
}

// States returns the splice state per watched output.
func (s *Splicer) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.cells))
	for ref, c := range s.cells {
		out[ref.String()] = c.State()
	}
	return out
}

// Watched returns the watched outputs in sorted order.
func (s *Splicer) Watched() []pad.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pad.Ref, 0, len(s.cells))
	for ref := range s.cells {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *Splicer) onFormat(ctx context.Context, cell *Cell, p engine.Pad, r graph.Route, caps engine.Caps) {
	ref := engine.RefOf(p)
	logger := ctxlog.FromContext(ctx).With("pad", ref.String(), "route", r.Name, "caps", caps.String())

	if !cell.Claim() {
		logger.Debug("Output already handled, ignoring format event.")
		return
	}
	if s.g.Closed() {
		cell.Finish(Unsupported, Unknown)
		return
	}

	format := Classify(caps)
	rule, ok := s.rules.Lookup(format, r.Encoding)
	if !ok {
		cell.Finish(Unsupported, format)
		logger.Warn("No adapter chain for format, discarding output.", "format", format.String(), "encoding", r.Encoding)
		s.g.Emit(ctx, diag.Event{Kind: diag.KindUnsupportedFormat, Node: ref.Node, Pad: ref.Pad, Format: caps.String(),
			Message: fmt.Sprintf("no rule for %s to %q", format, r.Encoding)})
		s.terminate(ctx, p)
		return
	}

	if err := s.splice(ctx, p, r, rule); err != nil {
		cell.Finish(Unsupported, format)
		logger.Error("Failed to splice adapter chain.", "error", err)
		s.g.Emit(ctx, diag.Event{Kind: diag.KindLinkFailed, Node: ref.Node, Pad: ref.Pad, Format: caps.String(),
			Link: pad.Link{From: ref, To: r.Consumer}.String(), Message: err.Error()})
		s.terminate(ctx, p)
		return
	}

	cell.Finish(Spliced, format)
	logger.Info("Adapter chain spliced.", "format", format.String(), "adapters", len(rule.Adapters))
	s.g.Emit(ctx, diag.Event{Kind: diag.KindSpliced, Node: ref.Node, Pad: ref.Pad, Format: caps.String(),
		Link: pad.Link{From: ref, To: r.Consumer}.String()})
}

// splice creates the adapters in order, each one instantiated and synced
// before anything is connected to it, and ends at the route's consumer. On
// failure every adapter created so far is removed again, leaving the
// producer pad unlinked.
func (s *Splicer) splice(ctx context.Context, producer engine.Pad, r graph.Route, rule Rule) (err error) {
	ref := engine.RefOf(producer)
	var created []string
	defer func() {
		if err != nil {
			err = errors.Join(err, s.rollback(ctx, created))
		}
	}()

	src := producer
	for _, kind := range rule.Adapters {
		id := fmt.Sprintf("%s_%s_%s", ref.Node, ref.Pad, kind)
		n, err := s.g.CreateNode(ctx, pad.Node{ID: id, Kind: kind})
		if err != nil {
			return err
		}
		created = append(created, id)
		if err := n.SyncStateWithParent(ctx); err != nil {
			return fmt.Errorf("failed to sync adapter %q: %w", id, err)
		}
		if err := s.l.LinkTo(ctx, pad.Link{From: engine.RefOf(src), To: pad.NodeRef(id)}, src); err != nil {
			return err
		}

		out, ok := n.Spec().DefaultPad(pad.Out)
		if !ok {
			return fmt.Errorf("adapter %s has no default output", kind)
		}
		next, ok := n.StaticPad(out.NamePattern)
		if !ok {
			return fmt.Errorf("adapter %q lost its output pad %q", id, out.NamePattern)
		}
		src = next
	}
	return s.l.LinkTo(ctx, pad.Link{From: engine.RefOf(src), To: r.Consumer}, src)
}

// rollback removes adapters newest first.
func (s *Splicer) rollback(ctx context.Context, ids []string) error {
	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		if err := s.g.RemoveNode(ctx, ids[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(ids) > 0 {
		ctxlog.FromContext(ctx).Debug("Partial adapter chain removed.", "adapters", len(ids))
	}
	return errors.Join(errs...)
}

func (s *Splicer) terminate(ctx context.Context, p engine.Pad) {
	if err := s.l.Terminate(ctx, p); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to attach terminator.", "pad", engine.RefOf(p).String(), "error", err)
	}
}
