package mixer

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/routing"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
)

// Parameter bounds.
const (
	MinChannels = 1
	MaxChannels = 32
	MaxAuxBuses = 8
	MaxGroups   = 8
)

// MainBus is the name of the main mix bus.
const MainBus = "main"

// Params defines the parameters of the mixer block.
type Params struct {
	Channels int `param:"channels"`
	AuxBuses int `param:"aux_buses"`
	Groups   int `param:"groups"`
	// Enabled holds the initial enable state per channel. Missing entries
	// are enabled.
	Enabled []bool `param:"enabled"`
	// Gains holds the linear gain per channel. Missing entries are 1.
	Gains []float64 `param:"gains"`
	// Routes maps a channel index to the buses it feeds ("main", "aux0",
	// "group1"). Channels not listed feed the main bus.
	Routes map[string][]string `param:"routes"`
}

// DefaultParams returns the parameter defaults.
func DefaultParams() *Params {
	return &Params{Channels: 2}
}

// buses returns every bus name in routing order: main, aux, then groups.
func (p *Params) buses() []string {
	out := []string{MainBus}
	for i := 0; i < p.AuxBuses; i++ {
		out = append(out, fmt.Sprintf("aux%d", i))
	}
	for i := 0; i < p.Groups; i++ {
		out = append(out, groupBus(i))
	}
	return out
}

func groupBus(i int) string { return fmt.Sprintf("group%d", i) }

// channelRoutes returns the buses per channel after applying defaults.
func (p *Params) channelRoutes() (map[int][]string, error) {
	index := make(map[string]int)
	for i, b := range p.buses() {
		index[b] = i
	}

	routes := make(map[int][]string, p.Channels)
	for ch := 0; ch < p.Channels; ch++ {
		routes[ch] = []string{MainBus}
	}

	keys := make([]string, 0, len(p.Routes))
	for k := range p.Routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ch, err := strconv.Atoi(k)
		if err != nil || ch < 0 || ch >= p.Channels {
			return nil, fmt.Errorf("routes: channel %q out of range [0, %d)", k, p.Channels)
		}
		seen := make(map[string]bool)
		for _, bus := range p.Routes[k] {
			if _, ok := index[bus]; !ok {
				return nil, fmt.Errorf("routes: channel %d: unknown bus %q", ch, bus)
			}
			if seen[bus] {
				return nil, fmt.Errorf("routes: channel %d: bus %q listed twice", ch, bus)
			}
			seen[bus] = true
		}
		routes[ch] = append([]string(nil), p.Routes[k]...)
	}
	return routes, nil
}

func (p *Params) validate() error {
	switch {
	case p.Channels < MinChannels || p.Channels > MaxChannels:
		return fmt.Errorf("channels: %d out of range [%d, %d]", p.Channels, MinChannels, MaxChannels)
	case p.AuxBuses < 0 || p.AuxBuses > MaxAuxBuses:
		return fmt.Errorf("aux_buses: %d out of range [0, %d]", p.AuxBuses, MaxAuxBuses)
	case p.Groups < 0 || p.Groups > MaxGroups:
		return fmt.Errorf("groups: %d out of range [0, %d]", p.Groups, MaxGroups)
	case len(p.Enabled) > p.Channels:
		return fmt.Errorf("enabled: %d entries for %d channels", len(p.Enabled), p.Channels)
	case len(p.Gains) > p.Channels:
		return fmt.Errorf("gains: %d entries for %d channels", len(p.Gains), p.Channels)
	}
	for i, g := range p.Gains {
		if g < 0 || g > 10 {
			return fmt.Errorf("gains[%d]: %g out of range [0, 10]", i, g)
		}
	}
	return nil
}

func (p *Params) enabled(ch int) bool {
	return ch >= len(p.Enabled) || p.Enabled[ch]
}

func (p *Params) gain(ch int) float64 {
	if ch < len(p.Gains) {
		return p.Gains[ch]
	}
	return 1
}

// ChannelControl names the enable toggle of a channel.
func ChannelControl(ch int) string { return fmt.Sprintf("channel.%d.enabled", ch) }

// RouteControl names the toggle of one channel-to-bus route.
func RouteControl(ch int, bus string) string { return fmt.Sprintf("route.%d.%s", ch, bus) }

func strip(ch int, stage string) string { return fmt.Sprintf("ch%d_%s", ch, stage) }
func gate(ch int, bus string) string    { return fmt.Sprintf("ch%d_to_%s", ch, bus) }
func busMix(bus string) string          { return fmt.Sprintf("bus_%s_mix", bus) }
func busOut(bus string) string          { return fmt.Sprintf("bus_%s_out", bus) }

const fillerID = "filler"

// Compile builds the console. Each channel is a
// queue -> audioconvert -> volume -> valve strip; each (channel, bus) route
// passes its own valve. Buses are routing destinations: one with several
// feeds gets an audiomixer, one with none is fed silence. Groups are
// additional sources of the main bus.
func Compile(ctx context.Context, p *Params) (*topology.Topology, error) {
	logger := ctxlog.FromContext(ctx)
	if err := p.validate(); err != nil {
		return nil, err
	}
	routes, err := p.channelRoutes()
	if err != nil {
		return nil, err
	}

	buses := p.buses()
	busIndex := make(map[string]int, len(buses))
	for i, bus := range buses {
		busIndex[bus] = i
	}

	// Channels are sources 0..n-1, groups follow as sources n..n+g-1.
	layout := routing.Layout{}
	matrix := routing.Matrix{}
	for ch := 0; ch < p.Channels; ch++ {
		layout.Inputs = append(layout.Inputs, 1)
		var targets []routing.Key
		for _, bus := range routes[ch] {
			targets = append(targets, routing.Key{Stream: busIndex[bus]})
		}
		matrix[routing.Key{Stream: ch}] = targets
	}
	for g := 0; g < p.Groups; g++ {
		layout.Inputs = append(layout.Inputs, 1)
		matrix[routing.Key{Stream: p.Channels + g}] = []routing.Key{{Stream: busIndex[MainBus]}}
	}
	for range buses {
		layout.Outputs = append(layout.Outputs, 1)
	}
	plan, err := routing.Resolve(layout, matrix, routing.Options{})
	if err != nil {
		return nil, err
	}

	b := topology.NewBuilder(BlockType)
	b.SetPlan(plan)
	for _, k := range plan.Unrouted {
		b.Warn("channel %d feeds no bus", k.Stream)
	}

	for _, bus := range buses {
		b.AddNode(busOut(bus), pad.KindAudioConvert, nil)
		b.Expose(bus, pad.PadRef(busOut(bus), "src"), pad.Out)
	}

	for ch := 0; ch < p.Channels; ch++ {
		q := b.AddNode(strip(ch, "queue"), pad.KindQueue, nil)
		conv := b.AddNode(strip(ch, "convert"), pad.KindAudioConvert, nil)
		vol := b.AddNode(strip(ch, "volume"), pad.KindVolume, map[string]any{"volume": p.gain(ch)})
		enable := b.AddNode(strip(ch, "enable"), pad.KindValve, map[string]any{"drop": !p.enabled(ch)})
		b.Chain(q, conv, vol, enable)
		b.Expose(fmt.Sprintf("in_%d", ch), pad.PadRef(q.Node, "sink"), pad.In)
		b.AddControl(topology.Control{Name: ChannelControl(ch), Node: enable.Node, Property: "drop", Invert: true})

		for _, bus := range routes[ch] {
			g := b.AddNode(gate(ch, bus), pad.KindValve, map[string]any{"drop": false})
			b.Link(pad.PadRef(enable.Node, "src"), g)
			b.AddControl(topology.Control{Name: RouteControl(ch, bus), Node: g.Node, Property: "drop", Invert: true})
		}
	}

	// A routing edge from a channel is carried by that route's gate.
	feedFor := func(src routing.Key, dst routing.Key) pad.Ref {
		if src.Stream < p.Channels {
			return pad.PadRef(gate(src.Stream, buses[dst.Stream]), "src")
		}
		return pad.PadRef(busOut(groupBus(src.Stream-p.Channels)), "src")
	}

	if len(plan.Fillers()) > 0 {
		b.AddNode(fillerID, pad.KindTestSource, map[string]any{"wave": "silence", "is-live": true})
	}
	for _, d := range plan.Destinations {
		bus := buses[d.Key.Stream]
		out := pad.NodeRef(busOut(bus))
		switch d.Decision {
		case routing.Direct:
			b.Link(feedFor(d.Sources[0], d.Key), out)
		case routing.Aggregate:
			mix := b.AddNode(busMix(bus), pad.KindAudioMixer, nil)
			for _, src := range d.Sources {
				b.Link(feedFor(src, d.Key), mix)
			}
			b.Link(pad.PadRef(mix.Node, "src"), out)
		case routing.Filler:
			b.Link(pad.PadRef(fillerID, "src"), out)
		}
	}

	logger.Debug("Mixer compiled.", "channels", p.Channels, "buses", len(buses), "aggregated_buses", len(plan.Aggregators()))
	return b.Build()
}
