package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	testCases := []struct {
		raw       string
		expected  State
		expectErr bool
	}{
		{raw: "stopped", expected: Stopped},
		{raw: "READY", expected: Ready},
		{raw: "Paused", expected: Paused},
		{raw: "running", expected: Running},
		{raw: "playing", expectErr: true},
		{raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			st, err := ParseState(tc.raw)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, st)
			assert.Equal(t, tc.expected, must(ParseState(st.String())))
		})
	}
}

func must(st State, err error) State {
	if err != nil {
		panic(err)
	}
	return st
}

func TestStateSet(t *testing.T) {
	set := SetOf(Paused, Running)

	assert.True(t, set.Has(Paused))
	assert.True(t, set.Has(Running))
	assert.False(t, set.Has(Ready))
	assert.False(t, set.Has(Stopped))
	assert.False(t, set.Has(State(9)))
	assert.Equal(t, "paused|running", set.String())
	assert.Equal(t, []State{Paused, Running}, set.States())

	var empty StateSet
	assert.True(t, empty.Empty())
	assert.Equal(t, "none", empty.String())
	assert.True(t, empty.With(Ready).Has(Ready))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "state(7)", State(7).String())
	assert.False(t, State(-1).Valid())
}
