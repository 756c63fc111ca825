package buffer

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
)

// bufferMetrics holds the optional Prometheus metrics for a single buffer.
// The prefix names the buffer within the shared registry, e.g. "rfid".
type bufferMetrics struct {
	writes      prometheus.Counter
	snapshots   prometheus.Counter
	overflows   prometheus.Counter
	drops       prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "buffer",
			Name:        "writes_total",
			Help:        "Total items appended to the buffer",
			ConstLabels: prometheus.Labels{"buffer": prefix},
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "buffer",
			Name:        "snapshots_total",
			Help:        "Total snapshot reads taken from the buffer",
			ConstLabels: prometheus.Labels{"buffer": prefix},
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "buffer",
			Name:        "overflows_total",
			Help:        "Writes that found the buffer full",
			ConstLabels: prometheus.Labels{"buffer": prefix},
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "buffer",
			Name:        "drops_total",
			Help:        "Items discarded by the overflow policy",
			ConstLabels: prometheus.Labels{"buffer": prefix},
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "buffer",
			Name:        "size",
			Help:        "Current number of items in the buffer",
			ConstLabels: prometheus.Labels{"buffer": prefix},
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "buffer",
			Name:        "utilization_ratio",
			Help:        "Buffer fill ratio from 0 to 1",
			ConstLabels: prometheus.Labels{"buffer": prefix},
		}),
	}

	component := fmt.Sprintf("buffer.%s", prefix)
	registrations := []struct {
		name string
		c    prometheus.Collector
		reg  func() error
	}{
		{"writes_total", m.writes, func() error { return registry.RegisterCounter(component, "writes_total", m.writes) }},
		{"snapshots_total", m.snapshots, func() error { return registry.RegisterCounter(component, "snapshots_total", m.snapshots) }},
		{"overflows_total", m.overflows, func() error { return registry.RegisterCounter(component, "overflows_total", m.overflows) }},
		{"drops_total", m.drops, func() error { return registry.RegisterCounter(component, "drops_total", m.drops) }},
		{"size", m.size, func() error { return registry.RegisterGauge(component, "size", m.size) }},
		{"utilization_ratio", m.utilization, func() error { return registry.RegisterGauge(component, "utilization_ratio", m.utilization) }},
	}
	for _, r := range registrations {
		if err := r.reg(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int) {
	m.writes.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordSnapshot() {
	m.snapshots.Inc()
}

func (m *bufferMetrics) recordOverflow() {
	m.overflows.Inc()
}

func (m *bufferMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	if capacity > 0 {
		m.utilization.Set(float64(size) / float64(capacity))
	}
}
