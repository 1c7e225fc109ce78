package pad

import (
	"fmt"
	"strings"
)

// Direction is the data flow direction of a pad.
type Direction int

const (
	// In pads consume data (sink pads).
	In Direction = iota
	// Out pads produce data (source pads).
	Out
)

// String returns "in" or "out".
func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Presence describes when a pad exists on a node.
type Presence int

const (
	// Always pads exist for the whole lifetime of the node.
	Always Presence = iota
	// Request pads are created on demand from a template.
	Request
	// Sometimes pads appear at runtime once the node produces that output.
	Sometimes
)

// String returns the lowercase presence name.
func (p Presence) String() string {
	switch p {
	case Always:
		return "always"
	case Request:
		return "request"
	case Sometimes:
		return "sometimes"
	default:
		return fmt.Sprintf("presence(%d)", int(p))
	}
}

// ParsePresence converts a presence name into a Presence.
func ParsePresence(raw string) (Presence, error) {
	switch strings.ToLower(raw) {
	case "always", "":
		return Always, nil
	case "request":
		return Request, nil
	case "sometimes":
		return Sometimes, nil
	default:
		return Always, fmt.Errorf("unknown pad presence %q", raw)
	}
}

// ParseDirection converts "in"/"sink" or "out"/"src" into a Direction.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(raw) {
	case "in", "sink":
		return In, nil
	case "out", "src", "source":
		return Out, nil
	default:
		return In, fmt.Errorf("unknown pad direction %q", raw)
	}
}

// Kind identifies the concrete processing type of a node.
type Kind string

// Node kinds the compiler and the runtime engine synthesize themselves.
// Every other kind is plain catalog data.
const (
	KindQueue         Kind = "queue"
	KindAudioConvert  Kind = "audioconvert"
	KindAudioResample Kind = "audioresample"
	KindVolume        Kind = "volume"
	KindValve         Kind = "valve"
	KindTee           Kind = "tee"
	KindAudioMixer    Kind = "audiomixer"
	KindDeinterleave  Kind = "deinterleave"
	KindInterleave    Kind = "interleave"
	KindTestSource    Kind = "audiotestsrc"
	KindFakeSink      Kind = "fakesink"
	KindDemux         Kind = "parsebin"
	KindOpusEncoder   Kind = "opusenc"
	KindAACEncoder    Kind = "avenc_aac"
	KindOpusParse     Kind = "opusparse"
	KindAACParse      Kind = "aacparse"
	KindVideoConvert  Kind = "videoconvert"
	KindH264Encoder   Kind = "x264enc"
	KindH264Parse     Kind = "h264parse"
	KindH265Parse     Kind = "h265parse"
)

// Node is a node declared by the compiler or synthesized at runtime, before
// it is instantiated in the execution engine. Properties are applied at
// construction time and therefore may include construct-only values.
type Node struct {
	ID         string
	Kind       Kind
	Properties map[string]any
}

// Link is a directional symbolic connection from a source pad to a sink pad.
type Link struct {
	From Ref
	To   Ref
}

// String renders the link as "from -> to".
func (l Link) String() string {
	return l.From.String() + " -> " + l.To.String()
}
