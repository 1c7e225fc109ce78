package pad

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesPattern(t *testing.T) {
	for i := 0; i <= 999; i++ {
		name := fmt.Sprintf("output_%d", i)
		assert.True(t, MatchesPattern("output", name), name)
	}

	testCases := []struct {
		pattern string
		name    string
		matches bool
	}{
		{"output", "output", true},
		{"output", "outputx", false},
		{"output", "output_x", false},
		{"output", "output_", false},
		{"output", "output_1a", false},
		{"output", "other_output_0", false},
		{"src_0", "src_0", true},
		{"src_0", "src_0_1", true},
		{"src", "sink_0", false},
	}
	for _, tc := range testCases {
		t.Run(tc.pattern+"/"+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matches, MatchesPattern(tc.pattern, tc.name))
		})
	}
}

func TestDescriptor_Template(t *testing.T) {
	tmpl := Descriptor{NamePattern: "output_%u", Direction: Out, Presence: Request}
	literal := Descriptor{NamePattern: "sink", Direction: In, Presence: Always}

	assert.True(t, tmpl.IsTemplate())
	assert.False(t, literal.IsTemplate())
	assert.Equal(t, "output_", tmpl.Prefix())
	assert.Equal(t, "output", tmpl.BaseName())
	assert.Equal(t, "sink", literal.Prefix())
	assert.Equal(t, "output_7", tmpl.Format(7))
	assert.Equal(t, "sink", literal.Format(7))

	assert.True(t, tmpl.Accepts("output_0"))
	assert.True(t, tmpl.Accepts("output_42"))
	assert.False(t, tmpl.Accepts("output_"))
	assert.False(t, tmpl.Accepts("output_x"))
	assert.False(t, tmpl.Accepts("other_0"))
	assert.True(t, literal.Accepts("sink"))
	assert.False(t, literal.Accepts("sink_0"))

	withSuffix := Descriptor{NamePattern: "ch%d_out"}
	assert.True(t, withSuffix.Accepts("ch3_out"))
	assert.False(t, withSuffix.Accepts("ch_out"))
	assert.Equal(t, "ch", withSuffix.BaseName())
}

func TestParsePresenceAndDirection(t *testing.T) {
	p, err := ParsePresence("Sometimes")
	assert.NoError(t, err)
	assert.Equal(t, Sometimes, p)
	_, err = ParsePresence("never")
	assert.Error(t, err)

	d, err := ParseDirection("src")
	assert.NoError(t, err)
	assert.Equal(t, Out, d)
	_, err = ParseDirection("sideways")
	assert.Error(t, err)
	assert.Equal(t, "in", In.String())
	assert.Equal(t, "request", Request.String())
}
