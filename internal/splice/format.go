package splice

import (
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Format is the closed set of formats the splicer knows.
type Format int

const (
	Unknown Format = iota
	RawAudio
	Opus
	AAC
	RawVideo
	H264
	H265
	VP8
)

var formatNames = map[Format]string{
	Unknown:  "unknown",
	RawAudio: "raw-audio",
	Opus:     "opus",
	AAC:      "aac",
	RawVideo: "raw-video",
	H264:     "h264",
	H265:     "h265",
	VP8:      "vp8",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return formatNames[Unknown]
}

// Classify maps negotiated caps onto a Format. Anything unrecognised is
// Unknown.
func Classify(c engine.Caps) Format {
	switch c.MediaType {
	case "audio/x-raw":
		return RawAudio
	case "audio/x-opus":
		return Opus
	case "audio/mpeg":
		if v, ok := c.Field("mpegversion"); ok && v == "4" {
			return AAC
		}
		return Unknown
	case "video/x-raw":
		return RawVideo
	case "video/x-h264":
		return H264
	case "video/x-h265":
		return H265
	case "video/x-vp8":
		return VP8
	default:
		return Unknown
	}
}

// Rule names the adapters that turn Format into Encoding.
type Rule struct {
	Format   Format
	Encoding string
	Adapters []pad.Kind
}

// Rules is an ordered rule set. The first applicable rule wins.
type Rules []Rule

// Lookup returns the first rule for f that produces encoding. An empty
// encoding accepts the first rule for f.
func (rs Rules) Lookup(f Format, encoding string) (Rule, bool) {
	if f == Unknown {
		return Rule{}, false
	}
	for _, r := range rs {
		if r.Format != f {
			continue
		}
		if encoding == "" || r.Encoding == "" || r.Encoding == encoding {
			return r, true
		}
	}
	return Rule{}, false
}

// DefaultRules covers the audio and video formats the catalog has adapters
// for. Raw audio defaults to Opus.
func DefaultRules() Rules {
	return Rules{
		{Format: RawAudio, Encoding: "opus", Adapters: []pad.Kind{pad.KindAudioConvert, pad.KindAudioResample, pad.KindOpusEncoder}},
		{Format: RawAudio, Encoding: "aac", Adapters: []pad.Kind{pad.KindAudioConvert, pad.KindAudioResample, pad.KindAACEncoder}},
		{Format: Opus, Encoding: "opus", Adapters: []pad.Kind{pad.KindOpusParse}},
		{Format: AAC, Encoding: "aac", Adapters: []pad.Kind{pad.KindAACParse}},
		{Format: RawVideo, Encoding: "h264", Adapters: []pad.Kind{pad.KindVideoConvert, pad.KindH264Encoder, pad.KindH264Parse}},
		{Format: H264, Encoding: "h264", Adapters: []pad.Kind{pad.KindH264Parse}},
		{Format: H265, Encoding: "h265", Adapters: []pad.Kind{pad.KindH265Parse}},
	}
}
