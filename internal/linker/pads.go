package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// sourcePad finds or requests the output pad of link. A nil pad with a
// non-empty pattern means the pad will only appear at runtime.
func (l *Linker) sourcePad(ctx context.Context, n engine.Node, link pad.Link) (engine.Pad, string, error) {
	name := link.From.Pad
	if name == "" {
		p, err := l.defaultPad(ctx, n, link, pad.Out)
		if err == nil {
			return p, "", nil
		}
		// A node whose only output is a Sometimes template is matched by the
		// template's base name once it produces.
		if t, ok := soleTemplate(n, pad.Out, pad.Sometimes); ok {
			return produced(n, t.BaseName()), t.BaseName(), nil
		}
		return nil, "", err
	}

	p, err := l.namedPad(ctx, n, link, name, pad.Out)
	if err == nil {
		return p, "", nil
	}
	for _, t := range templates(n, pad.Out, pad.Sometimes) {
		if t.Accepts(name) || fitsPrefix(t, name) {
			return produced(n, name), name, nil
		}
	}
	return nil, "", err
}

// sinkPad finds or requests the input pad of link.
func (l *Linker) sinkPad(ctx context.Context, n engine.Node, link pad.Link) (engine.Pad, error) {
	if link.To.HasPad() {
		return l.namedPad(ctx, n, link, link.To.Pad, pad.In)
	}

	if n.Spec().IsAggregator() {
		if !link.From.HasPad() {
			ctxlog.FromContext(ctx).Warn("Linking default pads into an aggregator is ambiguous, requesting a new sink pad.",
				"link", link.String(), "node_id", n.ID())
		}
		t, ok := soleTemplate(n, pad.In, pad.Request)
		if !ok {
			return nil, &LinkError{Kind: TemplateNotFound, Link: link, Node: n.ID(), Direction: pad.In,
				Err: fmt.Errorf("aggregator %s has no single request sink template", n.Kind())}
		}
		p, err := n.RequestPad(ctx, t, "")
		if err != nil {
			return nil, &LinkError{Kind: TemplateNotFound, Link: link, Node: n.ID(), Pad: t.NamePattern, Direction: pad.In, Err: err}
		}
		return p, nil
	}
	return l.defaultPad(ctx, n, link, pad.In)
}

// namedPad resolves an explicit pad name on one side of a link.
func (l *Linker) namedPad(ctx context.Context, n engine.Node, link pad.Link, name string, dir pad.Direction) (engine.Pad, error) {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID(), "pad", name, "direction", dir.String())

	if p, ok := n.StaticPad(name); ok {
		if p.Direction() != dir {
			return nil, &LinkError{Kind: LinkIncompatible, Link: link, Node: n.ID(), Pad: name, Direction: dir,
				Err: fmt.Errorf("pad is an %s pad", p.Direction())}
		}
		return p, nil
	}

	requestable := templates(n, dir, pad.Request)
	for _, t := range requestable {
		if !t.Accepts(name) {
			continue
		}
		p, err := n.RequestPad(ctx, t, name)
		if err == nil {
			return p, nil
		}
		logger.Debug("Exact pad request failed, trying template fallback.", "template", t.NamePattern, "error", err)
	}
	for _, t := range requestable {
		if !fitsPrefix(t, name) {
			continue
		}
		p, err := n.RequestPad(ctx, t, "")
		if err != nil {
			return nil, &LinkError{Kind: TemplateNotFound, Link: link, Node: n.ID(), Pad: name, Direction: dir, Err: err}
		}
		logger.Debug("Requested pad from template.", "template", t.NamePattern, "assigned", p.Name())
		return p, nil
	}

	return nil, &LinkError{Kind: TemplateNotFound, Link: link, Node: n.ID(), Pad: name, Direction: dir,
		Err: fmt.Errorf("%s has no pad or template matching %q", n.Kind(), name)}
}

// defaultPad resolves an empty pad name: the sole Always pad in dir, else a
// pad requested from the sole Request template in dir.
func (l *Linker) defaultPad(ctx context.Context, n engine.Node, link pad.Link, dir pad.Direction) (engine.Pad, error) {
	if d, ok := n.Spec().DefaultPad(dir); ok {
		if p, ok := n.StaticPad(d.NamePattern); ok {
			return p, nil
		}
	}
	if t, ok := soleTemplate(n, dir, pad.Request); ok {
		p, err := n.RequestPad(ctx, t, "")
		if err != nil {
			return nil, &LinkError{Kind: TemplateNotFound, Link: link, Node: n.ID(), Pad: t.NamePattern, Direction: dir, Err: err}
		}
		return p, nil
	}
	return nil, &LinkError{Kind: TemplateNotFound, Link: link, Node: n.ID(), Direction: dir,
		Err: fmt.Errorf("%s has no single default %s pad", n.Kind(), dir)}
}

// fitsPrefix reports whether name addresses template t loosely: the bare base
// name ("src" for "src_%u") or any name starting with the fixed prefix.
func fitsPrefix(t pad.Descriptor, name string) bool {
	if name == t.BaseName() {
		return true
	}
	prefix := t.Prefix()
	return prefix != "" && strings.HasPrefix(name, prefix)
}

// produced returns an unlinked Sometimes output the node already emitted
// that matches pattern, so links resolved after the pad appeared are not
// left pending forever.
func produced(n engine.Node, pattern string) engine.Pad {
	for _, p := range n.Pads() {
		if p.Direction() == pad.Out && p.Presence() == pad.Sometimes && !p.IsLinked() && pad.MatchesPattern(pattern, p.Name()) {
			return p
		}
	}
	return nil
}

func templates(n engine.Node, dir pad.Direction, presence pad.Presence) []pad.Descriptor {
	var out []pad.Descriptor
	for _, t := range n.Templates() {
		if t.Direction == dir && t.Presence == presence {
			out = append(out, t)
		}
	}
	return out
}

func soleTemplate(n engine.Node, dir pad.Direction, presence pad.Presence) (pad.Descriptor, bool) {
	ts := templates(n, dir, presence)
	if len(ts) != 1 {
		return pad.Descriptor{}, false
	}
	return ts[0], true
}
