// Package middleware provides cross-cutting concerns for the rune engine:
// metrics and tracing observers for the driver and blueprint decorators.
package middleware

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-rune/internal/ports"
)

var _ ports.Observer = (*PrometheusObserver)(nil)

// PrometheusObserver records run and node metrics in Prometheus. It keeps
// no per-run state and may be shared by concurrent runs.
type PrometheusObserver struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runPasses       *prometheus.HistogramVec
	runsInFlight    *prometheus.GaugeVec
	nodeVisits      *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	nodesPropagated *prometheus.CounterVec
	nodesTerminated *prometheus.CounterVec
}

// NewPrometheusObserver creates the metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusObserver{
		// Run-level metrics.
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rune_runs_total",
				Help: "Total number of finished chain runs by outcome.",
			},
			[]string{"chain_id", "outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rune_run_duration_seconds",
				Help:    "Wall time of chain runs from start to the last terminate.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain_id"},
		),
		runPasses: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rune_run_passes",
				Help:    "Number of passes a chain run took.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"chain_id"},
		),
		runsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rune_runs_in_flight",
				Help: "Number of chain runs started but not finished.",
			},
			[]string{"chain_id"},
		),

		// Node-level metrics.
		nodeVisits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rune_node_visits_total",
				Help: "Total number of node visits by blueprint and outcome.",
			},
			[]string{"blueprint", "outcome"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rune_node_run_duration_seconds",
				Help:    "Time spent inside blueprint Run calls.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"blueprint"},
		),
		nodesPropagated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rune_node_propagated_failures_total",
				Help: "Total number of nodes failed because a node they depend on failed.",
			},
			[]string{"blueprint"},
		),
		nodesTerminated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rune_node_terminations_total",
				Help: "Total number of node terminations.",
			},
			[]string{"blueprint"},
		),
	}
}

// RunStarted implements ports.Observer.
func (o *PrometheusObserver) RunStarted(ctx context.Context, ev ports.RunEvent) context.Context {
	o.runsInFlight.WithLabelValues(ev.ChainID).Inc()
	return ctx
}

// NodeStarted implements ports.Observer.
func (o *PrometheusObserver) NodeStarted(ctx context.Context, _ ports.NodeEvent) context.Context {
	return ctx
}

// NodeFinished implements ports.Observer by counting the visit and
// recording its duration.
func (o *PrometheusObserver) NodeFinished(_ context.Context, ev ports.NodeEvent) {
	o.nodeVisits.WithLabelValues(ev.BlueprintID, ev.Outcome.String()).Inc()
	o.nodeDuration.WithLabelValues(ev.BlueprintID).Observe(ev.Elapsed.Seconds())
}

// NodeFailed implements ports.Observer.
func (o *PrometheusObserver) NodeFailed(_ context.Context, ev ports.NodeEvent) {
	o.nodesPropagated.WithLabelValues(ev.BlueprintID).Inc()
}

// NodeTerminated implements ports.Observer.
func (o *PrometheusObserver) NodeTerminated(_ context.Context, ev ports.NodeEvent) {
	o.nodesTerminated.WithLabelValues(ev.BlueprintID).Inc()
}

// RunFinished implements ports.Observer.
func (o *PrometheusObserver) RunFinished(_ context.Context, ev ports.RunEvent) {
	o.runsInFlight.WithLabelValues(ev.ChainID).Dec()
	o.runsTotal.WithLabelValues(ev.ChainID, ev.Outcome.String()).Inc()
	o.runDuration.WithLabelValues(ev.ChainID).Observe(ev.Elapsed.Seconds())
	o.runPasses.WithLabelValues(ev.ChainID).Observe(float64(ev.Passes))
}
