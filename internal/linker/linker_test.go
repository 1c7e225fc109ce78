package linker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/memengine"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

type fixture struct {
	eng    *memengine.Engine
	g      *graph.Graph
	l      *Linker
	events *diag.Recorder
}

func newFixture(t *testing.T, nodes ...pad.Node) *fixture {
	t.Helper()
	ctx := context.Background()
	eng := memengine.New(catalog.Default())
	rec := diag.NewRecorder(0)
	g := graph.New(eng, graph.WithID("test"), graph.WithSink(rec))
	l := New(g)
	for _, n := range nodes {
		created, err := g.CreateNode(ctx, n)
		require.NoError(t, err)
		l.Attach(created)
	}
	return &fixture{eng: eng, g: g, l: l, events: rec}
}

func link(from, to string) pad.Link {
	return pad.Link{From: pad.MustParseRef(from), To: pad.MustParseRef(to)}
}

func TestResolveStatic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "q", Kind: pad.KindQueue},
		pad.Node{ID: "conv", Kind: pad.KindAudioConvert},
	)

	require.NoError(t, f.l.Resolve(ctx, link("q", "conv")))
	assert.Equal(t, []pad.Link{link("q.src", "conv.sink")}, f.eng.Links())
}

func TestResolveNamedPads(t *testing.T) {
	testCases := []struct {
		name   string
		link   pad.Link
		expect pad.Link
	}{
		{name: "exact static pads", link: link("q.src", "conv.sink"), expect: link("q.src", "conv.sink")},
		{name: "request template accepts the name", link: link("t.src_3", "conv.sink"), expect: link("t.src_3", "conv.sink")},
		{name: "base name falls back to an assigned pad", link: link("t.src", "conv"), expect: link("t.src_0", "conv.sink")},
		{name: "prefix falls back to an assigned pad", link: link("t.src_x", "conv"), expect: link("t.src_0", "conv.sink")},
		{name: "named aggregator sink", link: link("q.src", "mix.sink_5"), expect: link("q.src", "mix.sink_5")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t,
				pad.Node{ID: "q", Kind: pad.KindQueue},
				pad.Node{ID: "t", Kind: pad.KindTee},
				pad.Node{ID: "conv", Kind: pad.KindAudioConvert},
				pad.Node{ID: "mix", Kind: pad.KindAudioMixer},
			)
			require.NoError(t, f.l.Resolve(ctx, tc.link))
			assert.Equal(t, []pad.Link{tc.expect}, f.eng.Links())
		})
	}
}

func TestResolveAggregatorRequestsFreshPads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "a", Kind: pad.KindQueue},
		pad.Node{ID: "b", Kind: pad.KindQueue},
		pad.Node{ID: "c", Kind: pad.KindQueue},
		pad.Node{ID: "mix", Kind: pad.KindAudioMixer},
	)

	require.NoError(t, f.l.ResolveAll(ctx, []pad.Link{
		link("a.src", "mix"),
		link("b.src", "mix"),
		link("c", "mix"),
	}))
	assert.ElementsMatch(t, []pad.Link{
		link("a.src", "mix.sink_0"),
		link("b.src", "mix.sink_1"),
		link("c.src", "mix.sink_2"),
	}, f.eng.Links())
}

func TestResolveErrors(t *testing.T) {
	testCases := []struct {
		name     string
		link     pad.Link
		sentinel error
		kind     Kind
		node     string
	}{
		{name: "missing source node", link: link("ghost", "conv"), sentinel: ErrElementNotFound, kind: ElementNotFound, node: "ghost"},
		{name: "missing sink node", link: link("q", "ghost"), sentinel: ErrElementNotFound, kind: ElementNotFound, node: "ghost"},
		{name: "unknown source pad", link: link("q.bogus", "conv"), sentinel: ErrTemplateNotFound, kind: TemplateNotFound, node: "q"},
		{name: "unknown sink pad", link: link("q", "conv.bogus"), sentinel: ErrTemplateNotFound, kind: TemplateNotFound, node: "conv"},
		{name: "no default output on a sink", link: link("fs", "conv"), sentinel: ErrTemplateNotFound, kind: TemplateNotFound, node: "fs"},
		{name: "wrong direction", link: link("q.sink", "conv"), sentinel: ErrLinkIncompatible, kind: LinkIncompatible, node: "q"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t,
				pad.Node{ID: "q", Kind: pad.KindQueue},
				pad.Node{ID: "conv", Kind: pad.KindAudioConvert},
				pad.Node{ID: "fs", Kind: pad.KindFakeSink},
			)
			err := f.l.Resolve(ctx, tc.link)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)

			var le *LinkError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tc.kind, le.Kind)
			assert.Equal(t, tc.node, le.Node)
			assert.Equal(t, tc.link, le.Link)
			assert.Contains(t, le.Error(), tc.link.String())
		})
	}
}

func TestResolveConnectFailureIsIncompatible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "q", Kind: pad.KindQueue},
		pad.Node{ID: "a", Kind: pad.KindAudioConvert},
		pad.Node{ID: "b", Kind: pad.KindAudioConvert},
	)
	require.NoError(t, f.l.Resolve(ctx, link("q", "a")))
	err := f.l.Resolve(ctx, link("q", "b"))
	assert.ErrorIs(t, err, ErrLinkIncompatible)
}

func TestResolveAllJoinsErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "q", Kind: pad.KindQueue},
		pad.Node{ID: "conv", Kind: pad.KindAudioConvert},
		pad.Node{ID: "demux", Kind: pad.KindDemux},
	)

	err := f.l.ResolveAll(ctx, []pad.Link{
		link("ghost", "conv"),
		link("q", "conv"),
		link("demux.src_0", "q"),
		link("q.nope", "conv"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.NotErrorIs(t, err, ErrPadUnavailable, "deferred links are not errors")
	assert.Len(t, err.(interface{ Unwrap() []error }).Unwrap(), 2)

	assert.Equal(t, []pad.Link{link("q.src", "conv.sink")}, f.eng.Links())
	require.Len(t, f.g.Pending(), 1)
}

func TestDeferredLinkResolvesOnPadAdded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "demux", Kind: pad.KindDemux},
		pad.Node{ID: "q0", Kind: pad.KindQueue},
		pad.Node{ID: "q1", Kind: pad.KindQueue},
	)

	require.NoError(t, f.l.Resolve(ctx, link("demux", "q0")))
	require.NoError(t, f.l.Resolve(ctx, link("demux.src_1", "q1")))
	pending := f.g.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "src", pending[0].Pattern)
	assert.Equal(t, "src_1", pending[1].Pattern)
	assert.Empty(t, f.eng.Links())

	_, err := f.eng.EmitPad(ctx, "demux", "src_1")
	require.NoError(t, err)
	assert.Equal(t, []pad.Link{link("demux.src_1", "q0.sink")}, f.eng.Links(), "the first matching pending link wins")
	assert.Equal(t, 1, f.events.Count(diag.KindPendingResolved))

	// "src_1" is an exact pattern and does not match src_0.
	_, err = f.eng.EmitPad(ctx, "demux", "src_0")
	require.NoError(t, err)
	require.Len(t, f.g.Pending(), 1)
	assert.Equal(t, "src_1", f.g.Pending()[0].Pattern)
	require.Len(t, f.g.Terminators(), 1)
	assert.Equal(t, pad.PadRef("demux", "src_0"), f.g.Terminators()[0].Producer)
}

func TestResolveUsesAlreadyEmittedPad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pad.Node{ID: "q", Kind: pad.KindQueue})
	eng := f.eng
	// Not attached, so the pad stays unlinked.
	_, err := f.g.CreateNode(ctx, pad.Node{ID: "demux", Kind: pad.KindDemux})
	require.NoError(t, err)

	_, err = eng.EmitPad(ctx, "demux", "src_0")
	require.NoError(t, err)
	require.NoError(t, f.l.Resolve(ctx, link("demux", "q")))
	assert.Equal(t, []pad.Link{link("demux.src_0", "q.sink")}, eng.Links())
	assert.Empty(t, f.g.Pending())
}

func TestUnclaimedPadGetsTerminator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "demux", Kind: pad.KindDemux},
		pad.Node{ID: "q", Kind: pad.KindQueue},
	)
	require.NoError(t, f.l.Resolve(ctx, link("demux.src_5", "q")))

	_, err := f.eng.EmitPad(ctx, "demux", "src_0")
	require.NoError(t, err)

	terms := f.g.Terminators()
	require.Len(t, terms, 1)
	assert.Equal(t, "demux_src_0_discard", terms[0].Node)
	assert.Equal(t, pad.PadRef("demux", "src_0"), terms[0].Producer)
	assert.Equal(t, []pad.Link{link("demux.src_0", "demux_src_0_discard.sink")}, f.eng.Links())
	assert.Equal(t, 1, f.events.Count(diag.KindTerminator))

	term, ok := f.g.Lookup("demux_src_0_discard")
	require.True(t, ok)
	for _, name := range []string{"sync", "async"} {
		v, err := term.Property(name)
		require.NoError(t, err)
		assert.False(t, v.True(), name)
	}
	require.Len(t, f.g.Pending(), 1, "the unrelated pending link stays")
}

func TestInputPadsAreIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pad.Node{ID: "q", Kind: pad.KindQueue})
	sink, ok := mustNode(t, f.g, "q").StaticPad("sink")
	require.True(t, ok)

	f.l.HandlePadAdded(ctx, sink)
	assert.Empty(t, f.g.Terminators())
}

func TestLinkedPadGetsNoTerminator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "q", Kind: pad.KindQueue},
		pad.Node{ID: "conv", Kind: pad.KindAudioConvert},
	)
	require.NoError(t, f.l.Resolve(ctx, link("q", "conv")))
	src, _ := mustNode(t, f.g, "q").StaticPad("src")

	f.l.HandlePadAdded(ctx, src)
	assert.Empty(t, f.g.Terminators())
}

func TestTerminatorIDIsUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		pad.Node{ID: "demux", Kind: pad.KindDemux},
		pad.Node{ID: "demux_src_0_discard", Kind: pad.KindQueue},
	)
	_, err := f.eng.EmitPad(ctx, "demux", "src_0")
	require.NoError(t, err)

	terms := f.g.Terminators()
	require.Len(t, terms, 1)
	assert.Equal(t, "demux_src_0_discard_1", terms[0].Node)
}

type recordingHandler struct {
	mu     sync.Mutex
	routes []graph.Route
	after  func(context.Context, engine.Pad)
}

func (h *recordingHandler) Watch(_ context.Context, p engine.Pad, r graph.Route) func(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, r)
	if h.after == nil {
		return nil
	}
	return func(ctx context.Context) { h.after(ctx, p) }
}

func TestRouteClaimsPad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pad.Node{ID: "demux", Kind: pad.KindDemux}, pad.Node{ID: "mix", Kind: pad.KindAudioMixer})
	h := &recordingHandler{}
	f.l.SetRouteHandler(h)
	require.NoError(t, f.g.AddRoute(graph.Route{Name: "r0", Producer: "demux", Pattern: "src", Consumer: pad.NodeRef("mix")}))

	_, err := f.eng.EmitPad(ctx, "demux", "src_0")
	require.NoError(t, err)
	require.Len(t, h.routes, 1)
	assert.Equal(t, "src_0", h.routes[0].Pad)
	assert.Empty(t, f.g.Terminators(), "claimed pads are left to the route handler")

	_, err = f.eng.EmitPad(ctx, "demux", "src_1")
	require.NoError(t, err)
	assert.Len(t, h.routes, 1)
	assert.Len(t, f.g.Terminators(), 1)
}

func TestRouteHandlerFollowUpRunsUnlocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pad.Node{ID: "demux", Kind: pad.KindDemux}, pad.Node{ID: "mix", Kind: pad.KindAudioMixer})
	h := &recordingHandler{}
	h.after = func(ctx context.Context, p engine.Pad) {
		// Terminate takes the linker lock.
		assert.NoError(t, f.l.Terminate(ctx, p))
	}
	f.l.SetRouteHandler(h)
	require.NoError(t, f.g.AddRoute(graph.Route{Name: "r0", Producer: "demux", Pattern: "src", Consumer: pad.NodeRef("mix")}))

	src, err := f.eng.EmitPad(ctx, "demux", "src_0")
	require.NoError(t, err)
	require.Len(t, h.routes, 1)
	require.Len(t, f.g.Terminators(), 1)
	assert.True(t, src.IsLinked())
}

func TestConcurrentPadsAndResolve(t *testing.T) {
	ctx := context.Background()
	const n = 16
	nodes := []pad.Node{{ID: "demux", Kind: pad.KindDemux}}
	for i := 0; i < n; i++ {
		nodes = append(nodes, pad.Node{ID: queueID(i), Kind: pad.KindQueue})
	}
	f := newFixture(t, nodes...)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			// Losing the race to the terminator makes the link itself fail.
			err := f.l.Resolve(ctx, pad.Link{From: pad.PadRef("demux", padName(i)), To: pad.NodeRef(queueID(i))})
			if err != nil {
				assert.ErrorIs(t, err, ErrLinkIncompatible)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := f.eng.EmitPad(ctx, "demux", padName(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	toQueues := 0
	for i := 0; i < n; i++ {
		p, ok := mustNode(t, f.g, "demux").StaticPad(padName(i))
		require.True(t, ok)
		require.True(t, p.IsLinked(), padName(i))
		if p.Peer().Node().ID() == queueID(i) {
			toQueues++
		}
	}
	assert.Equal(t, n, toQueues+len(f.g.Terminators()))
	assert.Empty(t, f.g.Pending())
}

func queueID(i int) string { return "q" + string(rune('a'+i)) }
func padName(i int) string { return pad.Descriptor{NamePattern: "src_%u"}.Format(i) }

func mustNode(t *testing.T, g *graph.Graph, id string) engine.Node {
	t.Helper()
	n, ok := g.Lookup(id)
	require.True(t, ok)
	return n
}
