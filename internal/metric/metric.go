// Package metric exposes Prometheus metrics for graph construction and
// runtime linking. A nil *Metrics is valid and records nothing.
package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
)

const namespace = "strom"

// Metrics holds every collector of the topology core.
type Metrics struct {
	linksTotal      *prometheus.CounterVec   // outcome: linked, deferred, failed
	nodesCreated    *prometheus.CounterVec   // kind
	diagnostics     *prometheus.CounterVec   // kind
	propertyUpdates *prometheus.CounterVec   // result: applied, rejected, failed
	pendingLinks    *prometheus.GaugeVec     // graph
	buildDuration   *prometheus.HistogramVec // result: ok, error
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		linksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "linker",
			Name:      "links_total",
			Help:      "Symbolic links processed, by outcome.",
		}, []string{"outcome"}),
		nodesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes_created_total",
			Help:      "Nodes instantiated on the engine, by kind.",
		}, []string{"kind"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "diagnostics_total",
			Help:      "Non-fatal diagnostic events, by kind.",
		}, []string{"kind"}),
		propertyUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "property_updates_total",
			Help:      "Property update requests, by result.",
		}, []string{"result"}),
		pendingLinks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "linker",
			Name:      "pending_links",
			Help:      "Links waiting for their output pad to appear.",
		}, []string{"graph"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "build_duration_seconds",
			Help:      "Time to build a flow instance.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.linksTotal, m.nodesCreated, m.diagnostics, m.propertyUpdates, m.pendingLinks, m.buildDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewRegistry returns a registry with Go runtime and process collectors and
// the core metrics registered.
func NewRegistry() (*prometheus.Registry, *Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := New(reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, m, nil
}

// Link outcomes.
const (
	OutcomeLinked   = "linked"
	OutcomeDeferred = "deferred"
	OutcomeFailed   = "failed"
)

// Property update results.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

func (m *Metrics) LinkResolved(outcome string) {
	if m == nil {
		return
	}
	m.linksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NodeCreated(kind string) {
	if m == nil {
		return
	}
	m.nodesCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) PropertyUpdate(result string) {
	if m == nil {
		return
	}
	m.propertyUpdates.WithLabelValues(result).Inc()
}

func (m *Metrics) SetPending(graph string, n int) {
	if m == nil {
		return
	}
	m.pendingLinks.WithLabelValues(graph).Set(float64(n))
}

// ForgetGraph drops the per-graph series of a torn down graph.
func (m *Metrics) ForgetGraph(graph string) {
	if m == nil {
		return
	}
	m.pendingLinks.DeleteLabelValues(graph)
}

func (m *Metrics) ObserveBuild(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.buildDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Emit counts diagnostic events, so Metrics can be used as a diag.Sink.
func (m *Metrics) Emit(_ context.Context, ev diag.Event) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(string(ev.Kind)).Inc()
}

var _ diag.Sink = (*Metrics)(nil)
