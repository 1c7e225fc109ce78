package diag

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(2)
	r.Emit(ctx, Event{Kind: KindPendingLink, Link: "a -> b"})
	r.Emit(ctx, Event{Kind: KindTerminator, Node: "a"})
	r.Emit(ctx, Event{Kind: KindTerminator, Node: "c"})

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Node)
	assert.Equal(t, 2, r.Count(KindTerminator))
	assert.Equal(t, 0, r.Count(KindPendingLink))
}

func TestMultiAndLogSink(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	r := NewRecorder(0)
	var seen []Kind
	m := Multi{r, nil, LogSink{}, SinkFunc(func(_ context.Context, ev Event) { seen = append(seen, ev.Kind) })}
	m.Emit(ctx, Event{Kind: KindUnsupportedFormat, Node: "demux", Pad: "src_0", Format: "video/x-vp9"})

	assert.Equal(t, []Kind{KindUnsupportedFormat}, seen)
	assert.Len(t, r.Events(), 1)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "format=video/x-vp9")
}

func TestSocketIOSink(t *testing.T) {
	var gotEvent string
	var gotPayload map[string]any
	sink := NewSocketIOSink("", func(event string, args ...any) error {
		gotEvent = event
		gotPayload = args[0].(map[string]any)
		return nil
	}, nil)

	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink.Emit(context.Background(), Event{Kind: KindSpliced, Graph: "g", Node: "demux", Pad: "src_0", Format: "raw_audio", Time: when})
	sink.Close()

	assert.Equal(t, DefaultEventName, gotEvent)
	assert.Equal(t, "spliced", gotPayload["kind"])
	assert.Equal(t, "demux", gotPayload["node"])
	assert.Equal(t, "2026-01-02T03:04:05Z", gotPayload["time"])
}

func TestSocketIOSink_ErrorsAreSwallowed(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	sink := NewSocketIOSink("custom", func(string, ...any) error { return errors.New("offline") }, nil)

	assert.NotPanics(t, func() { sink.Emit(ctx, Event{Kind: KindTerminator}) })
	assert.Contains(t, buf.String(), "offline")
}
