package fanout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

func link(from, to string) pad.Link {
	return pad.Link{From: pad.MustParseRef(from), To: pad.MustParseRef(to)}
}

func TestNormalize_ThreeConsumers(t *testing.T) {
	res := Normalize([]pad.Link{link("A.src", "X"), link("A.src", "Y"), link("A.src", "Z")})

	require.Len(t, res.Distributors, 1)
	d := res.Distributors[0]
	assert.Equal(t, "A_src_tee", d.ID)
	assert.Equal(t, pad.KindTee, d.Kind)

	expected := []pad.Link{
		link("A.src", "A_src_tee"),
		link("A_src_tee.src_0", "X"),
		link("A_src_tee.src_1", "Y"),
		link("A_src_tee.src_2", "Z"),
	}
	if diff := cmp.Diff(expected, res.Links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_PassThroughAndOrder(t *testing.T) {
	in := []pad.Link{
		link("a.src", "b.sink"),
		link("c.src_0", "m"),
		link("x", "y"),
		link("c.src_0", "n"),
	}
	res := Normalize(in)

	expected := []pad.Link{
		link("a.src", "b.sink"),
		link("c.src_0", "c_src_0_tee"),
		link("c_src_0_tee.src_0", "m"),
		link("c_src_0_tee.src_1", "n"),
		link("x", "y"),
	}
	assert.Equal(t, expected, res.Links)
	assert.Len(t, res.Distributors, 1)
}

func TestNormalize_NodeOnlySourceAndCollision(t *testing.T) {
	res := Normalize([]pad.Link{
		link("src", "src_tee"),
		link("filler", "p"),
		link("filler", "q"),
		link("src", "other"),
	})
	require.Len(t, res.Distributors, 2)
	assert.Equal(t, "src_tee_1", res.Distributors[0].ID)
	assert.Equal(t, "filler_tee", res.Distributors[1].ID)
}

func TestNormalize_AvoidsReservedIDs(t *testing.T) {
	res := Normalize([]pad.Link{link("x.src", "a"), link("x.src", "b")}, "x", "a", "b", "x_src_tee")

	require.Len(t, res.Distributors, 1)
	assert.Equal(t, "x_src_tee_1", res.Distributors[0].ID)
	assert.Equal(t, link("x.src", "x_src_tee_1"), res.Links[0])
}

func TestNormalize_CustomNormalizer(t *testing.T) {
	n := Normalizer{
		Kind:   "splitter",
		Output: pad.Descriptor{NamePattern: "out_%u", Direction: pad.Out, Presence: pad.Request},
		Name:   func(from pad.Ref) string { return "D" },
	}
	res := n.Normalize([]pad.Link{link("A", "X"), link("A", "Y")})
	assert.Equal(t, []pad.Node{{ID: "D", Kind: "splitter"}}, res.Distributors)
	assert.Equal(t, []pad.Link{link("A", "D"), link("D.out_0", "X"), link("D.out_1", "Y")}, res.Links)
}

// TestNormalize_Properties checks distributor singularity and idempotence on
// random link lists.
func TestNormalize_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 100; iter++ {
		var links []pad.Link
		for i := 0; i < 1+rng.Intn(12); i++ {
			from := fmt.Sprintf("n%d.src_%d", rng.Intn(3), rng.Intn(2))
			to := fmt.Sprintf("m%d.sink_%d", rng.Intn(4), i)
			links = append(links, link(from, to))
		}

		first := Normalize(links)
		seen := map[pad.Ref]int{}
		for _, l := range first.Links {
			seen[l.From]++
		}
		for ref, count := range seen {
			require.Equal(t, 1, count, "ref %s feeds %d links", ref, count)
		}

		second := Normalize(first.Links)
		assert.Empty(t, second.Distributors)
		require.Empty(t, cmp.Diff(first.Links, second.Links))
	}
}
