package memengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Pad is an in-memory engine.Pad.
type Pad struct {
	node *Node
	name string
	desc pad.Descriptor

	mu         sync.Mutex
	peer       *Pad
	caps       *engine.Caps
	format     []engine.FormatFunc
	properties map[string]cty.Value
}

var _ engine.Pad = (*Pad)(nil)

func (p *Pad) Name() string             { return p.name }
func (p *Pad) Direction() pad.Direction { return p.desc.Direction }
func (p *Pad) Presence() pad.Presence   { return p.desc.Presence }
func (p *Pad) Node() engine.Node        { return p.node }

func (p *Pad) Peer() engine.Pad {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer == nil {
		return nil
	}
	return p.peer
}

func (p *Pad) IsLinked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer != nil
}

func (p *Pad) OnFormat(fn engine.FormatFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.format = append(p.format, fn)
}

func (p *Pad) Caps() (engine.Caps, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.caps == nil {
		return engine.Caps{}, false
	}
	return *p.caps, true
}

func (p *Pad) PropertySpec(name string) (*catalog.Property, bool) {
	return p.node.spec.PadProperty(p.name, name)
}

func (p *Pad) Property(name string) (cty.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.properties[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %s.%s has no property %q", engine.ErrNoSuchProperty, p.node.id, p.name, name)
	}
	return v, nil
}

func (p *Pad) SetProperty(_ context.Context, name string, v cty.Value) error {
	spec, ok := p.PropertySpec(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s has no property %q", engine.ErrNoSuchProperty, p.node.id, p.name, name)
	}
	coerced, err := spec.Coerce(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.properties[name] = coerced
	return nil
}

// unlink drops the connection on both sides.
func (p *Pad) unlink() {
	p.mu.Lock()
	peer := p.peer
	p.peer = nil
	p.mu.Unlock()
	if peer != nil {
		peer.mu.Lock()
		if peer.peer == p {
			peer.peer = nil
		}
		peer.mu.Unlock()
	}
}
