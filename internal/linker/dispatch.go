package linker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Attach subscribes the dispatcher to runtime outputs of n.
func (l *Linker) Attach(n engine.Node) {
	n.OnPadAdded(l.HandlePadAdded)
}

// HandlePadAdded dispatches a new pad: a matching pending link consumes it
// first, then a dynamic route. A pad left without a peer gets a discarding
// terminator.
func (l *Linker) HandlePadAdded(ctx context.Context, p engine.Pad) {
	if p.Direction() != pad.Out {
		return
	}
	if l.g.Closed() {
		return
	}

	l.mu.Lock()
	after := l.dispatch(ctx, p)
	l.mu.Unlock()
	if after != nil {
		after(ctx)
	}
}

func (l *Linker) dispatch(ctx context.Context, p engine.Pad) func(context.Context) {
	producer := p.Node().ID()
	logger := ctxlog.FromContext(ctx).With("node_id", producer, "pad", p.Name())
	logger.Debug("HandlePadAdded: New output pad.")

	if pending, ok := l.g.ClaimPending(producer, p.Name()); ok {
		err := l.completePending(ctx, pending.Link, p)
		if err == nil {
			l.metrics().LinkResolved(metric.OutcomeLinked)
			l.g.Emit(ctx, diag.Event{Kind: diag.KindPendingResolved, Node: producer, Pad: p.Name(), Link: pending.Link.String()})
			logger.Debug("Pending link resolved.", "link", pending.Link.String())
			return nil
		}
		l.metrics().LinkResolved(metric.OutcomeFailed)
		l.g.Emit(ctx, diag.Event{Kind: diag.KindLinkFailed, Node: producer, Pad: p.Name(), Link: pending.Link.String(), Message: err.Error()})
		logger.Error("Failed to resolve pending link.", "link", pending.Link.String(), "error", err)
	} else if route, ok := l.g.ClaimRoute(producer, p.Name()); ok {
		if l.routes != nil {
			logger.Debug("Output claimed by dynamic route.", "route", route.Name)
			return l.routes.Watch(ctx, p, route)
		}
		logger.Warn("Dynamic route has no handler.", "route", route.Name)
	}

	if p.IsLinked() {
		return nil
	}
	if err := l.terminate(ctx, p); err != nil {
		logger.Error("Failed to attach terminator.", "error", err)
	}
	return nil
}

func (l *Linker) completePending(ctx context.Context, link pad.Link, src engine.Pad) error {
	to, ok := l.g.Lookup(link.To.Node)
	if !ok {
		return elementNotFound(link, link.To.Node, pad.In)
	}
	return l.linkTo(ctx, link, src, to)
}

// Terminate connects p to a new non-blocking discarding sink.
func (l *Linker) Terminate(ctx context.Context, p engine.Pad) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.terminate(ctx, p)
}

func (l *Linker) terminate(ctx context.Context, p engine.Pad) error {
	producer := engine.RefOf(p)
	id := l.terminatorID(producer)

	n, err := l.g.CreateTerminator(ctx, producer, pad.Node{
		ID:         id,
		Kind:       l.terminator,
		Properties: map[string]any{"sync": false, "async": false},
	})
	if err != nil {
		return fmt.Errorf("failed to create terminator for %s: %w", producer, err)
	}
	if err := n.SyncStateWithParent(ctx); err != nil {
		return fmt.Errorf("failed to sync terminator %q: %w", id, err)
	}

	link := pad.Link{From: producer, To: pad.NodeRef(id)}
	sink, err := l.defaultPad(ctx, n, link, pad.In)
	if err != nil {
		return err
	}
	if err := l.g.Engine().Connect(ctx, p, sink); err != nil {
		return &LinkError{Kind: LinkIncompatible, Link: link, Node: id, Pad: sink.Name(), Direction: pad.In, Err: err}
	}

	l.g.Emit(ctx, diag.Event{Kind: diag.KindTerminator, Node: producer.Node, Pad: producer.Pad, Link: link.String(),
		Message: "unclaimed output discarded"})
	return nil
}

func (l *Linker) terminatorID(producer pad.Ref) string {
	base := producer.Node + "_" + producer.Pad + "_discard"
	id := base
	for i := 1; ; i++ {
		if _, taken := l.g.Lookup(id); !taken {
			return id
		}
		id = base + "_" + strconv.Itoa(i)
	}
}
