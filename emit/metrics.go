package emit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
)

// Metrics holds Prometheus metrics for the emitter.
type Metrics struct {
	eventsWritten prometheus.Counter
	bytesWritten  prometheus.Counter
	writeErrors   prometheus.Counter
	published     prometheus.Counter
	publishDrops  prometheus.Counter
}

// newMetrics creates and registers emitter metrics. Returns nil when no
// registry is provided.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		eventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "emit",
			Name:      "events_written_total",
			Help:      "Events appended to the JSONL log",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "emit",
			Name:      "bytes_written_total",
			Help:      "Bytes appended to the JSONL log",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "emit",
			Name:      "write_errors_total",
			Help:      "Failed event log writes",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "emit",
			Name:      "published_total",
			Help:      "Events fanned out to NATS",
		}),
		publishDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "emit",
			Name:      "publish_drops_total",
			Help:      "NATS fan-out publishes dropped",
		}),
	}

	registry.RegisterCounter("emit", "events_written", m.eventsWritten)
	registry.RegisterCounter("emit", "bytes_written", m.bytesWritten)
	registry.RegisterCounter("emit", "write_errors", m.writeErrors)
	registry.RegisterCounter("emit", "published", m.published)
	registry.RegisterCounter("emit", "publish_drops", m.publishDrops)

	return m
}
