package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/hcl_adapter"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
	"github.com/eyevinn-osaas/strom-sub001/modules/audiorouter"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(hcl_adapter.NewConverter())
	(&audiorouter.Module{}).Register(r)
	return r
}

func ints(vals ...int) cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberIntVal(int64(v))
	}
	return cty.TupleVal(out)
}

func TestCompileNormalizesFanOut(t *testing.T) {
	r := newRegistry(t)
	top, err := r.Compile(context.Background(), audiorouter.BlockType, map[string]cty.Value{
		"inputs":  ints(1),
		"outputs": ints(3),
		"matrix": cty.ObjectVal(map[string]cty.Value{
			"0:0": cty.TupleVal([]cty.Value{cty.StringVal("0:0")}),
		}),
	})
	require.NoError(t, err)

	// Two filled destinations share the filler through a tee.
	tee, ok := top.Node("filler_src_tee")
	require.True(t, ok)
	assert.Equal(t, pad.KindTee, tee.Kind)

	seen := make(map[pad.Ref]bool)
	for _, l := range top.Links {
		assert.False(t, seen[l.From], "source %s feeds more than one link", l.From)
		seen[l.From] = true
	}
	assert.NoError(t, registry.CheckAcyclic(top))
}

func TestCompileErrors(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Compile(ctx, "nope", nil)
	assert.ErrorIs(t, err, registry.ErrUnknownBlock)

	_, err = r.Compile(ctx, audiorouter.BlockType, map[string]cty.Value{"inputs": ints(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameters for block 'audiorouter'")

	_, err = r.Compile(ctx, audiorouter.BlockType, map[string]cty.Value{"inputs": ints(), "outputs": ints(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile block 'audiorouter'")
}

func TestRegisterBlockPanicsOnDuplicate(t *testing.T) {
	r := newRegistry(t)
	assert.PanicsWithValue(t, "block with name 'audiorouter' already registered", func() {
		(&audiorouter.Module{}).Register(r)
	})
	assert.Equal(t, []string{audiorouter.BlockType}, r.Types())
}

type dupParams struct {
	A int `param:"gain"`
	B int `param:"gain,required"`
}

func TestValidate(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Validate(context.Background()))

	noop := func(context.Context, *dupParams) (*topology.Topology, error) { return nil, nil }
	r.RegisterBlock("dup", registry.Block[dupParams]{Fn: noop})
	err := r.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parameter "gain" declared by both A and B`)
}

func TestCheckAcyclic(t *testing.T) {
	link := func(from, to string) pad.Link {
		return pad.Link{From: pad.MustParseRef(from), To: pad.MustParseRef(to)}
	}
	top := &topology.Topology{
		Nodes: []pad.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Links: []pad.Link{link("a.src", "b"), link("b.src", "c"), link("c.src", "a")},
	}
	err := registry.CheckAcyclic(top)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")

	top.Links = top.Links[:2]
	assert.NoError(t, registry.CheckAcyclic(top))
}
