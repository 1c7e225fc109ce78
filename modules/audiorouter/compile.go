package audiorouter

import (
	"context"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/routing"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
)

// Parameter bounds.
const (
	MaxStreams  = 16
	MaxChannels = 64
)

// Params defines the parameters of the audiorouter block.
type Params struct {
	// Inputs is the channel count of every input stream.
	Inputs []int `param:"inputs,required"`
	// Outputs is the channel count of every output stream.
	Outputs []int `param:"outputs,required"`
	// Matrix maps "stream:channel" of an input onto output channels.
	Matrix map[string][]string `param:"matrix"`
	// Strict rejects input channels the matrix does not route.
	Strict bool `param:"strict"`
}

// DefaultParams returns the parameter defaults.
func DefaultParams() *Params {
	return &Params{}
}

func (p *Params) validate() error {
	check := func(what string, counts []int) error {
		if len(counts) < 1 || len(counts) > MaxStreams {
			return fmt.Errorf("%s: stream count %d out of range [1, %d]", what, len(counts), MaxStreams)
		}
		for i, c := range counts {
			if c < 0 || c > MaxChannels {
				return fmt.Errorf("%s[%d]: channel count %d out of range [0, %d]", what, i, c, MaxChannels)
			}
		}
		return nil
	}
	if err := check("inputs", p.Inputs); err != nil {
		return err
	}
	return check("outputs", p.Outputs)
}

// Node ids.
func inQueue(s int) string   { return fmt.Sprintf("in%d_queue", s) }
func inConvert(s int) string { return fmt.Sprintf("in%d_convert", s) }
func inSplit(s int) string   { return fmt.Sprintf("in%d_split", s) }
func outMerge(s int) string   { return fmt.Sprintf("out%d_merge", s) }
func outConvert(s int) string { return fmt.Sprintf("out%d_convert", s) }

func mixID(k routing.Key) string { return fmt.Sprintf("mix_out%d_ch%d", k.Stream, k.Channel) }

func routeQueue(src, dst routing.Key) string {
	return fmt.Sprintf("route_in%d_ch%d_out%d_ch%d", src.Stream, src.Channel, dst.Stream, dst.Channel)
}

const fillerID = "filler"

// Compile builds the router. Every input stream gets
// queue -> audioconvert -> deinterleave, every output stream
// interleave -> audioconvert. Routing decisions then connect the
// deinterleaved channels to interleave inputs: directly, through an
// audiomixer for destinations with several sources, or from a shared silent
// source for destinations with none. Sources routed to several destinations
// get one queue per route; the fan-out itself is left to the normalizer.
func Compile(ctx context.Context, p *Params) (*topology.Topology, error) {
	logger := ctxlog.FromContext(ctx)
	if err := p.validate(); err != nil {
		return nil, err
	}
	matrix, err := routing.ParseMatrix(p.Matrix)
	if err != nil {
		return nil, err
	}
	layout := routing.Layout{Inputs: p.Inputs, Outputs: p.Outputs}
	plan, err := routing.Resolve(layout, matrix, routing.Options{Strict: p.Strict})
	if err != nil {
		return nil, err
	}

	b := topology.NewBuilder(BlockType)
	b.SetPlan(plan)

	for s, channels := range p.Inputs {
		if channels == 0 {
			continue
		}
		q := b.AddNode(inQueue(s), pad.KindQueue, nil)
		conv := b.AddNode(inConvert(s), pad.KindAudioConvert, nil)
		split := b.AddNode(inSplit(s), pad.KindDeinterleave, nil)
		b.Chain(q, conv, split)
		b.Expose(fmt.Sprintf("in_%d", s), pad.PadRef(inQueue(s), "sink"), pad.In)
	}
	for s, channels := range p.Outputs {
		if channels == 0 {
			continue
		}
		merge := b.AddNode(outMerge(s), pad.KindInterleave, nil)
		conv := b.AddNode(outConvert(s), pad.KindAudioConvert, nil)
		b.Chain(merge, conv)
		b.Expose(fmt.Sprintf("out_%d", s), pad.PadRef(outConvert(s), "src"), pad.Out)
	}

	// feeds collects, per destination, the refs that carry its sources.
	feeds := make(map[routing.Key][]pad.Ref)
	for _, src := range plan.Sources {
		out := pad.PadRef(inSplit(src.Key.Stream), fmt.Sprintf("src_%d", src.Key.Channel))
		if src.FanOut() == routing.Single {
			feeds[src.Targets[0]] = append(feeds[src.Targets[0]], out)
			continue
		}
		for _, dst := range src.Targets {
			q := b.AddNode(routeQueue(src.Key, dst), pad.KindQueue, nil)
			b.Link(out, q)
			feeds[dst] = append(feeds[dst], pad.PadRef(q.Node, "src"))
		}
	}

	fillers := plan.Fillers()
	if len(fillers) > 0 {
		b.AddNode(fillerID, pad.KindTestSource, map[string]any{"wave": "silence", "is-live": true})
	}
	for _, d := range plan.Destinations {
		sink := pad.PadRef(outMerge(d.Key.Stream), fmt.Sprintf("sink_%d", d.Key.Channel))
		switch d.Decision {
		case routing.Direct:
			b.Link(feeds[d.Key][0], sink)
		case routing.Aggregate:
			mix := b.AddNode(mixID(d.Key), pad.KindAudioMixer, nil)
			for _, ref := range feeds[d.Key] {
				b.Link(ref, mix)
			}
			b.Link(pad.PadRef(mix.Node, "src"), sink)
		case routing.Filler:
			b.Link(pad.PadRef(fillerID, "src"), sink)
		}
	}

	for _, k := range plan.Unrouted {
		b.Warn("input channel %s is not routed", k)
	}
	logger.Debug("Router compiled.",
		"destinations", len(plan.Destinations), "aggregators", len(plan.Aggregators()), "fillers", len(fillers), "unrouted", len(plan.Unrouted))
	return b.Build()
}
