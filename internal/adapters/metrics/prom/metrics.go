package prom

import (
	"fmt"
	"time"

	"github.com/bnema/convtree/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "convtree"

// Metrics records engine activity into a prometheus registry.
type Metrics struct {
	registry  *prometheus.Registry
	recompute prometheus.Histogram
	load      prometheus.Histogram
	failures  *prometheus.CounterVec
}

var _ ports.Metrics = (*Metrics)(nil)

// New registers the engine collectors on registry, or on a fresh one when nil.
func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		recompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_pass_seconds",
			Help:      "Duration of a full derived-state recompute pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		load: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_seconds",
			Help:      "Duration of a successful two-phase load.",
			Buckets:   prometheus.DefBuckets,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Store fetches that failed, by operation.",
		}, []string{"operation"}),
	}

	for _, collector := range []prometheus.Collector{m.recompute, m.load, m.failures} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecomputePass(elapsed time.Duration) {
	m.recompute.Observe(elapsed.Seconds())
}

func (m *Metrics) LoadCompleted(elapsed time.Duration) {
	m.load.Observe(elapsed.Seconds())
}

func (m *Metrics) FetchFailed(operation string) {
	m.failures.WithLabelValues(operation).Inc()
}

// WriteTextfile dumps the registry in text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
