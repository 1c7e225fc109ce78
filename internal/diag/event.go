package diag

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
)

// Kind classifies an event.
type Kind string

const (
	// KindPendingLink is recorded when a link is deferred until its output
	// pad appears.
	KindPendingLink Kind = "pending_link"
	// KindPendingResolved is recorded when a new pad satisfied a pending link.
	KindPendingResolved Kind = "pending_resolved"
	// KindPendingDiscarded is recorded for every pending link dropped at
	// teardown.
	KindPendingDiscarded Kind = "pending_discarded"
	// KindTerminator is recorded when an unclaimed output got a discarding
	// terminator.
	KindTerminator Kind = "terminator"
	// KindSpliced is recorded when an adapter chain was spliced in.
	KindSpliced Kind = "spliced"
	// KindUnsupportedFormat is recorded when no chain rule matched a format.
	KindUnsupportedFormat Kind = "unsupported_format"
	// KindLinkFailed is recorded for a link that failed at runtime, after
	// the build returned.
	KindLinkFailed Kind = "link_failed"
)

// Event is one diagnostic record.
type Event struct {
	Kind    Kind      `json:"kind"`
	Graph   string    `json:"graph"`
	Node    string    `json:"node,omitempty"`
	Pad     string    `json:"pad,omitempty"`
	Link    string    `json:"link,omitempty"`
	Format  string    `json:"format,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Sink receives events. Emit is called from engine callbacks and must not
// block.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// LogSink writes events to the context logger. Terminators and unsupported
// formats are warnings, everything else is debug output.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, ev Event) {
	level := slog.LevelDebug
	switch ev.Kind {
	case KindTerminator, KindUnsupportedFormat, KindLinkFailed:
		level = slog.LevelWarn
	}
	ctxlog.FromContext(ctx).Log(ctx, level, "Diagnostic event.",
		"kind", string(ev.Kind),
		"graph", ev.Graph,
		"node_id", ev.Node,
		"pad", ev.Pad,
		"link", ev.Link,
		"format", ev.Format,
		"message", ev.Message,
	)
}

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewRecorder keeps at most limit events; limit <= 0 means unbounded.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.limit:]...)
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}
