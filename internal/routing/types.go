package routing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key addresses one channel of one stream.
type Key struct {
	Stream  int
	Channel int
}

// String renders the key as "stream:channel".
func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Stream, k.Channel)
}

// less orders keys by stream, then channel.
func (k Key) less(o Key) bool {
	if k.Stream != o.Stream {
		return k.Stream < o.Stream
	}
	return k.Channel < o.Channel
}

// ParseKey parses "stream:channel".
func ParseKey(raw string) (Key, error) {
	streamStr, channelStr, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Key{}, fmt.Errorf("invalid routing key %q: expected 'stream:channel'", raw)
	}
	stream, err := strconv.Atoi(streamStr)
	if err != nil {
		return Key{}, fmt.Errorf("invalid stream index in routing key %q: %w", raw, err)
	}
	channel, err := strconv.Atoi(channelStr)
	if err != nil {
		return Key{}, fmt.Errorf("invalid channel index in routing key %q: %w", raw, err)
	}
	return Key{Stream: stream, Channel: channel}, nil
}

// Matrix maps a source channel onto the list of destination channels it
// feeds. List order defines distributor output order, not semantics.
type Matrix map[Key][]Key

// ParseMatrix builds a Matrix from its textual form, e.g.
// {"0:0": ["0:0", "1:0"]}.
func ParseMatrix(raw map[string][]string) (Matrix, error) {
	m := make(Matrix, len(raw))
	for srcRaw, dstsRaw := range raw {
		src, err := ParseKey(srcRaw)
		if err != nil {
			return nil, err
		}
		if _, dup := m[src]; dup {
			return nil, fmt.Errorf("routing source %s declared more than once", src)
		}
		dsts := make([]Key, 0, len(dstsRaw))
		for _, d := range dstsRaw {
			dst, err := ParseKey(d)
			if err != nil {
				return nil, err
			}
			dsts = append(dsts, dst)
		}
		m[src] = dsts
	}
	return m, nil
}

// Layout declares the channel count of every source and destination stream.
type Layout struct {
	Inputs  []int
	Outputs []int
}

func (l Layout) validInput(k Key) bool {
	return k.Stream >= 0 && k.Stream < len(l.Inputs) && k.Channel >= 0 && k.Channel < l.Inputs[k.Stream]
}

func (l Layout) validOutput(k Key) bool {
	return k.Stream >= 0 && k.Stream < len(l.Outputs) && k.Channel >= 0 && k.Channel < l.Outputs[k.Stream]
}

// Decision is how one destination channel is fed.
type Decision int

const (
	// Filler destinations have no source and are fed silence.
	Filler Decision = iota
	// Direct destinations have exactly one source.
	Direct
	// Aggregate destinations have two or more sources mixed together.
	Aggregate
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Filler:
		return "filler"
	case Direct:
		return "direct"
	case Aggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// FanOut is how one source channel is distributed.
type FanOut int

const (
	// NotRouted sources have no destination.
	NotRouted FanOut = iota
	// Single sources connect straight to their only destination.
	Single
	// Distribute sources feed a distributor with one output per destination.
	Distribute
)

// String returns the fan-out name.
func (f FanOut) String() string {
	switch f {
	case NotRouted:
		return "not_routed"
	case Single:
		return "single"
	case Distribute:
		return "distribute"
	default:
		return fmt.Sprintf("fanout(%d)", int(f))
	}
}

// Destination is the resolved decision for one destination channel.
type Destination struct {
	Key      Key
	Decision Decision
	// Sources feeding this destination, ordered by key.
	Sources []Key
}

// Source is the resolved fan-out for one source key of the matrix.
type Source struct {
	Key Key
	// Targets in matrix list order.
	Targets []Key
}

// FanOut classifies the source by its number of targets.
func (s Source) FanOut() FanOut {
	switch {
	case len(s.Targets) == 0:
		return NotRouted
	case len(s.Targets) == 1:
		return Single
	default:
		return Distribute
	}
}

// Plan is the full routing analysis.
type Plan struct {
	// Destinations covers every declared destination channel, ordered by key.
	Destinations []Destination
	// Sources covers every key present in the matrix, ordered by key.
	Sources []Source
	// Unrouted lists declared source channels that feed nothing.
	Unrouted []Key
}

// Destination looks up the decision for a destination key.
func (p *Plan) Destination(k Key) (Destination, bool) {
	for _, d := range p.Destinations {
		if d.Key == k {
			return d, true
		}
	}
	return Destination{}, false
}

// Source looks up the fan-out for a source key.
func (p *Plan) Source(k Key) (Source, bool) {
	for _, s := range p.Sources {
		if s.Key == k {
			return s, true
		}
	}
	return Source{}, false
}

// Fillers returns every destination that is fed by the shared filler.
func (p *Plan) Fillers() []Key {
	var out []Key
	for _, d := range p.Destinations {
		if d.Decision == Filler {
			out = append(out, d.Key)
		}
	}
	return out
}

// FillerFanOut reports how the shared filler node is connected: not at all,
// directly to one destination, or through a distributor.
func (p *Plan) FillerFanOut() FanOut {
	return Source{Targets: p.Fillers()}.FanOut()
}

// Aggregators returns the destinations that need an aggregator node.
func (p *Plan) Aggregators() []Destination {
	var out []Destination
	for _, d := range p.Destinations {
		if d.Decision == Aggregate {
			out = append(out, d)
		}
	}
	return out
}

var (
	// ErrOutOfRange is returned for keys outside the declared layout.
	ErrOutOfRange = errors.New("routing key out of range")
	// ErrDuplicateDestination is returned when one source lists the same
	// destination twice.
	ErrDuplicateDestination = errors.New("duplicate routing destination")
	// ErrUnroutedSource is returned in strict mode for source channels that
	// feed nothing.
	ErrUnroutedSource = errors.New("unrouted source channel")
)
