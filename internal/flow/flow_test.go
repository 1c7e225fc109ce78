package flow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/flow"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/guard"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/linker"
	"github.com/eyevinn-osaas/strom-sub001/internal/memengine"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
	"github.com/eyevinn-osaas/strom-sub001/internal/splice"
	"github.com/eyevinn-osaas/strom-sub001/internal/testutil"
)

func link(from, to string) pad.Link {
	return pad.Link{From: pad.MustParseRef(from), To: pad.MustParseRef(to)}
}

func options(f *testutil.Fixture) flow.Options {
	return flow.Options{Registry: f.Registry, Engine: f.Engine, ID: "test", Sink: f.Events, Metrics: f.Metrics}
}

const routerFlow = `
	name = "studio"

	block "audiorouter" "router" {
	  inputs  = [2]
	  outputs = [2]
	  matrix = {
	    "0:0" = ["0:0", "0:1"]
	  }
	}

	element "audiotestsrc" "tone" {}
	element "fakesink" "monitor" {}

	link {
	  from = "tone"
	  to   = "router.in_0"
	}
	link {
	  from = "router.out_0"
	  to   = "monitor"
	}
`

func TestBuildMapsExternalPads(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, routerFlow), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })

	assert.Equal(t, "studio", inst.Name())
	assert.Subset(t, f.Engine.Links(), []pad.Link{
		link("tone.src", "router/in0_queue.sink"),
		link("router/out0_convert.src", "monitor.sink"),
	})
	assert.Equal(t, []string{"router: input channel 0:1 is not routed"}, inst.Warnings())

	top, ok := inst.Block("router")
	require.True(t, ok)
	_, ok = top.Node("router/in0_split")
	assert.True(t, ok)

	count, err := promtestutil.GatherAndCount(f.Gatherer, "strom_flow_build_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBuildDefersRuntimeOutputs(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, routerFlow), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })

	pending := inst.Graph().Pending()
	require.Len(t, pending, 1, "the routed channel waits for its deinterleaved pad")
	assert.Equal(t, "router/in0_split", pending[0].Producer)
	assert.Equal(t, "src_0", pending[0].Pattern)

	_, err = f.Engine.EmitPad(ctx, "router/in0_split", "src_0")
	require.NoError(t, err)
	_, err = f.Engine.EmitPad(ctx, "router/in0_split", "src_1")
	require.NoError(t, err)

	assert.Empty(t, inst.Graph().Pending())
	assert.Contains(t, f.Engine.Links(), link("router/in0_split.src_0", "router/in0_split_src_0_tee.sink"))
	terms := inst.Graph().Terminators()
	require.Len(t, terms, 1)
	assert.Equal(t, pad.PadRef("router/in0_split", "src_1"), terms[0].Producer)
	assert.Equal(t, 1, f.Events.Count(diag.KindPendingResolved))
	assert.Equal(t, 1, f.Events.Count(diag.KindTerminator))
}

const cameraFlow = `
	name = "ingest"

	block "dynamicinput" "cam" {
	  outputs = ["opus"]
	}

	element "fakesink" "out" {}

	link {
	  from = "cam.out_0"
	  to   = "out"
	}
`

func TestBuildSplicesDynamicRoutes(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, cameraFlow), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })
	require.NoError(t, inst.SetState(ctx, lifecycle.Running))

	routes := inst.Graph().Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "cam.out_0", routes[0].Name)
	assert.Equal(t, "opus", routes[0].Encoding)

	p, err := f.Engine.EmitPad(ctx, "cam/demux", "src_0")
	require.NoError(t, err)
	require.NoError(t, f.Engine.NegotiateFormat(ctx, p, engine.Caps{MediaType: "audio/x-raw", Fields: map[string]any{"channels": 2}}))

	assert.Subset(t, f.Engine.Links(), []pad.Link{
		link("cam/demux.src_0", "cam/demux_src_0_audioconvert.sink"),
		link("cam/demux_src_0_opusenc.src", "cam/out0.sink"),
		link("cam/out0.src", "out.sink"),
	})
	assert.Equal(t, map[string]string{"cam/demux.src_0": splice.Spliced.String()}, inst.Diagnostics().Splices)

	// Only one route exists, so the next output is discarded.
	_, err = f.Engine.EmitPad(ctx, "cam/demux", "src_1")
	require.NoError(t, err)
	_, ok := inst.Graph().Lookup("cam/demux_src_1_discard")
	assert.True(t, ok)
}

func TestBuildFailureTearsDown(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	model := testutil.ParseFlow(ctx, t, `
		element "fakesink" "monitor" {}
		element "audiotestsrc" "tone" {}
		link {
		  from = "tone"
		  to   = "monitor"
		}
		link {
		  from = "ghost"
		  to   = "monitor"
		}
	`)
	_, err := flow.Build(ctx, model, options(f))
	require.Error(t, err)

	var le *linker.LinkError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, linker.ElementNotFound, le.Kind)
	assert.ErrorIs(t, err, linker.ErrElementNotFound)
	assert.Empty(t, f.Engine.NodeIDs(), "a failed build leaves no nodes behind")
}

func TestBuildRejectsBadReferences(t *testing.T) {
	testCases := []struct {
		name        string
		from, to    string
		errContains string
	}{
		{name: "block without pad", from: "router", to: "monitor", errContains: `names block "router" without an external pad`},
		{name: "unknown external", from: "router.out_9", to: "monitor", errContains: `has no external pad "out_9"`},
		{name: "wrong direction", from: "router.in_0", to: "monitor", errContains: "is an in pad, used as out"},
		{name: "bad reference", from: "tone.", to: "monitor", errContains: "invalid pad name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			f := testutil.NewFixture(t)
			model := testutil.ParseFlow(ctx, t, fmt.Sprintf(`
				block "audiorouter" "router" {
				  inputs  = [1]
				  outputs = [1]
				  matrix  = { "0:0" = ["0:0"] }
				}
				element "fakesink" "monitor" {}
				element "audiotestsrc" "tone" {}
				link {
				  from = %q
				  to   = %q
				}
			`, tc.from, tc.to))

			_, err := flow.Build(ctx, model, options(f))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errContains)
			assert.Empty(t, f.Engine.NodeIDs())
		})
	}
}

func TestBuildRejectsUnknownBlockAndCycles(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	_, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		block "nope" "x" {}
	`), options(f))
	assert.ErrorIs(t, err, registry.ErrUnknownBlock)

	_, err = flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		element "volume" "a" {}
		element "volume" "b" {}
		link {
		  from = "a"
		  to   = "b"
		}
		link {
		  from = "b"
		  to   = "a"
		}
	`), options(f))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected: a -> b -> a")
}

func TestBuildNormalizesFlowFanOut(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		element "audiotestsrc" "tone" {}
		element "fakesink" "left" {}
		element "fakesink" "right" {}
		link {
		  from = "tone"
		  to   = "left"
		}
		link {
		  from = "tone"
		  to   = "right"
		}
	`), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })

	assert.Equal(t, 1, f.Engine.CreatedCount(pad.KindTee))
	assert.Subset(t, f.Engine.Links(), []pad.Link{
		link("tone.src", "tone_tee.sink"),
		link("tone_tee.src_0", "left.sink"),
		link("tone_tee.src_1", "right.sink"),
	})
	assert.Equal(t, []string{"tone", "tone_tee", "left", "right"}, inst.Graph().NodeIDs(), "producers are created first")
}

// stuckEngine refuses every pipeline state change.
type stuckEngine struct{ *memengine.Engine }

var errStuck = errors.New("state change refused")

func (stuckEngine) SetState(context.Context, lifecycle.State) error { return errStuck }

func TestBuildInitialStateFailureTearsDown(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		element "audiotestsrc" "tone" {}
		element "fakesink" "out" {}
		link {
		  from = "tone"
		  to   = "out"
		}
	`), flow.Options{Registry: f.Registry, Engine: stuckEngine{f.Engine}, State: lifecycle.Running})
	require.Error(t, err)
	assert.Nil(t, inst)
	assert.ErrorIs(t, err, errStuck)
	assert.Contains(t, err.Error(), "failed to set state running")
	assert.Contains(t, err.Error(), "failed to stop pipeline", "the teardown error is reported too")
	assert.Empty(t, f.Engine.NodeIDs())
}

func TestBuildDistributorAvoidsDeclaredElement(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		element "audiotestsrc" "tone" {}
		element "fakesink" "tone_tee" {}
		element "fakesink" "left" {}
		element "fakesink" "right" {}
		link {
		  from = "tone"
		  to   = "left"
		}
		link {
		  from = "tone"
		  to   = "right"
		}
	`), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })

	assert.Subset(t, f.Engine.Links(), []pad.Link{
		link("tone.src", "tone_tee_1.sink"),
		link("tone_tee_1.src_0", "left.sink"),
		link("tone_tee_1.src_1", "right.sink"),
	})
	n, ok := inst.Graph().Lookup("tone_tee")
	require.True(t, ok)
	assert.Equal(t, pad.KindFakeSink, n.Kind())
}

const propertyFlow = `
	element "audiotestsrc" "tone" {
	  is-live = true
	}
	element "volume" "vol" {}
	element "fakesink" "monitor" {}
	link {
	  from = "tone"
	  to   = "vol"
	}
	link {
	  from = "vol"
	  to   = "monitor"
	}
`

func TestUpdateProperty(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, propertyFlow), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })

	err = inst.UpdateProperty(ctx, "monitor", "sync", false)
	var ge *guard.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, guard.WrongState, ge.Reason)
	assert.ErrorIs(t, err, guard.ErrWrongState)

	require.NoError(t, inst.SetState(ctx, lifecycle.Ready))
	require.NoError(t, inst.UpdateProperty(ctx, "monitor", "sync", false))
	v, err := inst.GetProperty(ctx, "monitor", "sync")
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.False))

	assert.ErrorIs(t, inst.UpdateProperty(ctx, "tone", "is-live", false), guard.ErrConstructOnly)

	require.NoError(t, inst.UpdateProperty(ctx, "vol", "volume", "0.25"))
	v, err = inst.GetProperty(ctx, "vol", "volume")
	require.NoError(t, err)
	got, _ := v.AsBigFloat().Float64()
	assert.Equal(t, 0.25, got)

	assert.Error(t, inst.UpdateProperty(ctx, "vol", "volume", "loud"))
	assert.ErrorIs(t, inst.UpdateProperty(ctx, "ghost", "volume", 1), flow.ErrUnknownTarget)
	assert.ErrorIs(t, inst.UpdateProperty(ctx, "vol.nope", "volume", 1), flow.ErrUnknownTarget)
	assert.ErrorIs(t, inst.UpdateProperty(ctx, "vol", "nope", 1), engine.ErrNoSuchProperty)
}

func TestSetControl(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		block "mixer" "console" {
		  channels = 2
		}
	`), options(f))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })
	require.NoError(t, inst.SetState(ctx, lifecycle.Running))

	assert.Equal(t, []string{
		"console.channel.0.enabled",
		"console.channel.1.enabled",
		"console.route.0.main",
		"console.route.1.main",
	}, inst.Controls())

	on, err := inst.Control(ctx, "console.route.0.main")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, inst.SetControl(ctx, "console.route.0.main", false))
	drop, err := inst.GetProperty(ctx, "console/ch0_to_main", "drop")
	require.NoError(t, err)
	assert.True(t, drop.RawEquals(cty.True))
	on, err = inst.Control(ctx, "console.route.0.main")
	require.NoError(t, err)
	assert.False(t, on)

	// Bus inputs carry per-pad gain.
	require.NoError(t, inst.UpdateProperty(ctx, "console/bus_main_mix.sink_1", "volume", 0.5))

	assert.ErrorIs(t, inst.SetControl(ctx, "console.route.9.main", true), flow.ErrUnknownControl)
}

func TestAddElementWhileRunning(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		element "audiotestsrc" "tone" {}
	`), flow.Options{Registry: f.Registry, Engine: f.Engine, State: lifecycle.Running})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })
	assert.Equal(t, lifecycle.Running, inst.State())

	late := pad.Node{ID: "late", Kind: pad.KindFakeSink, Properties: map[string]any{"sync": false}}
	require.NoError(t, inst.AddElement(ctx, late, []pad.Link{link("tone", "late")}))
	assert.Contains(t, f.Engine.Links(), link("tone.src", "late.sink"))
	n, ok := f.Engine.Node("late")
	require.True(t, ok)
	assert.Equal(t, lifecycle.Running, n.State())

	assert.ErrorIs(t, inst.AddElement(ctx, late, nil), graph.ErrDuplicateNode)
	err = inst.AddElement(ctx, pad.Node{ID: "orphan", Kind: pad.KindFakeSink}, []pad.Link{link("ghost", "orphan")})
	assert.ErrorIs(t, err, linker.ErrElementNotFound)
}

func TestTeardownDiscardsPending(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, `
		name = "pending"
		element "parsebin" "demux" {}
		element "fakesink" "sink" {}
		link {
		  from = "demux.src_0"
		  to   = "sink"
		}
	`), options(f))
	require.NoError(t, err)
	require.Len(t, inst.Graph().Pending(), 1)

	raw, err := json.Marshal(inst.Diagnostics())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"flow":"pending"`)
	assert.Contains(t, string(raw), `"graph":"test"`)

	require.NoError(t, inst.Teardown(ctx))
	require.NoError(t, inst.Teardown(ctx))
	assert.Empty(t, f.Engine.NodeIDs())
	assert.Equal(t, 1, f.Events.Count(diag.KindPendingDiscarded))
	assert.ErrorIs(t, inst.SetState(ctx, lifecycle.Running), graph.ErrClosed)
}
