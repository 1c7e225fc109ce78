package dynamicinput

import (
	"context"
	"fmt"
	"slices"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
)

// MaxOutputs bounds the number of routed outputs.
const MaxOutputs = 16

// Encodings lists the target encodings an output may ask for.
var Encodings = []string{"opus", "aac", "h264", "h265"}

// Params defines the parameters of the dynamicinput block.
type Params struct {
	// Outputs holds the target encoding of every output, in claim order.
	Outputs []string `param:"outputs"`
	// Pattern matches the demultiplexer's runtime pad names.
	Pattern string `param:"pattern"`
}

// DefaultParams returns the parameter defaults.
func DefaultParams() *Params {
	return &Params{Outputs: []string{"opus"}, Pattern: "src"}
}

func (p *Params) validate() error {
	if len(p.Outputs) < 1 || len(p.Outputs) > MaxOutputs {
		return fmt.Errorf("outputs: count %d out of range [1, %d]", len(p.Outputs), MaxOutputs)
	}
	for i, enc := range p.Outputs {
		if !slices.Contains(Encodings, enc) {
			return fmt.Errorf("outputs[%d]: unsupported encoding %q, want one of %v", i, enc, Encodings)
		}
	}
	if !pad.ValidNodeID(p.Pattern) {
		return fmt.Errorf("pattern: invalid pad name %q", p.Pattern)
	}
	return nil
}

const demuxID = "demux"

func outQueue(i int) string { return fmt.Sprintf("out%d", i) }

// Compile builds the block. The demultiplexer is exposed as "in" and each
// output i as "out_<i>". Runtime pads are claimed by routes in output order;
// pads beyond the last route are discarded.
func Compile(ctx context.Context, p *Params) (*topology.Topology, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	b := topology.NewBuilder(BlockType)
	demux := b.AddNode(demuxID, pad.KindDemux, nil)
	b.Expose("in", pad.PadRef(demux.Node, "sink"), pad.In)

	for i, enc := range p.Outputs {
		q := b.AddNode(outQueue(i), pad.KindQueue, nil)
		name := fmt.Sprintf("out_%d", i)
		b.Expose(name, pad.PadRef(q.Node, "src"), pad.Out)
		b.AddDynamicRoute(topology.DynamicRoute{
			Name:     name,
			Producer: demux.Node,
			Pattern:  p.Pattern,
			Consumer: q,
			Encoding: enc,
		})
	}

	ctxlog.FromContext(ctx).Debug("Dynamic input compiled.", "outputs", len(p.Outputs))
	return b.Build()
}
