package app

import (
	"context"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/flow"
	"github.com/eyevinn-osaas/strom-sub001/internal/memengine"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// simulate plays the part of the media runtime for a dry run: it produces
// every output a pending link or dynamic route waits for, then negotiates a
// raw format on route outputs so their adapter chains get spliced.
func simulate(ctx context.Context, eng *memengine.Engine, inst *flow.Instance) error {
	logger := ctxlog.FromContext(ctx)
	g := inst.Graph()

	for _, p := range g.Pending() {
		name, err := padName(eng, p.Producer, p.Pattern)
		if err != nil {
			return err
		}
		logger.Debug("Simulate: Emitting pad for pending link.", "node_id", p.Producer, "pad", name)
		if _, err := eng.EmitPad(ctx, p.Producer, name); err != nil {
			return err
		}
	}

	for _, r := range g.Routes() {
		if r.Pad != "" {
			continue
		}
		name, err := padName(eng, r.Producer, r.Pattern)
		if err != nil {
			return err
		}
		logger.Debug("Simulate: Emitting pad for dynamic route.", "route", r.Name, "node_id", r.Producer, "pad", name)
		p, err := eng.EmitPad(ctx, r.Producer, name)
		if err != nil {
			return err
		}
		if err := eng.NegotiateFormat(ctx, p, rawCaps(r.Encoding)); err != nil {
			return err
		}
	}
	return nil
}

// padName returns pattern itself when it is a concrete pad name of one of
// the node's Sometimes templates, otherwise the first free "<pattern>_<n>".
func padName(eng engine.Engine, nodeID, pattern string) (string, error) {
	n, ok := eng.Node(nodeID)
	if !ok {
		return "", fmt.Errorf("%w: %q", engine.ErrNoSuchNode, nodeID)
	}
	for _, t := range n.Templates() {
		if t.Presence == pad.Sometimes && t.Accepts(pattern) {
			if _, exists := n.StaticPad(pattern); !exists {
				return pattern, nil
			}
		}
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s_%d", pattern, i)
		if _, exists := n.StaticPad(name); !exists {
			return name, nil
		}
	}
}

// rawCaps returns the format a simulated source produces for encoding.
func rawCaps(encoding string) engine.Caps {
	switch encoding {
	case "h265":
		return engine.Caps{MediaType: "video/x-h265", Fields: map[string]any{"stream-format": "byte-stream"}}
	case "h264":
		return engine.Caps{MediaType: "video/x-raw", Fields: map[string]any{"format": "I420", "width": 1280, "height": 720}}
	default:
		return engine.Caps{MediaType: "audio/x-raw", Fields: map[string]any{"format": "S16LE", "rate": 48000, "channels": 2}}
	}
}
