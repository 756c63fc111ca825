package receiver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
)

// Metrics holds Prometheus metrics for the receiver.
type Metrics struct {
	connects        prometheus.Counter
	linesReceived   prometheus.Counter
	bytesReceived   prometheus.Counter
	decodeErrors    prometheus.Counter
	unknownDatasets prometheus.Counter
	lastActivity    prometheus.Gauge
}

// newMetrics creates and registers receiver metrics. Returns nil when no
// registry is provided (nil input = nil feature pattern).
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "receiver",
			Name:      "connects_total",
			Help:      "Successful connections to the telemetry source",
		}),
		linesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "receiver",
			Name:      "lines_received_total",
			Help:      "Stream lines received, including the banner",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "receiver",
			Name:      "bytes_received_total",
			Help:      "Bytes received from the telemetry source",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "receiver",
			Name:      "decode_errors_total",
			Help:      "Lines skipped because they failed to decode",
		}),
		unknownDatasets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "receiver",
			Name:      "unknown_datasets_total",
			Help:      "Frames dropped because the dataset tag is unknown",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "receiver",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received line",
		}),
	}

	registry.RegisterCounter("receiver", "connects", m.connects)
	registry.RegisterCounter("receiver", "lines_received", m.linesReceived)
	registry.RegisterCounter("receiver", "bytes_received", m.bytesReceived)
	registry.RegisterCounter("receiver", "decode_errors", m.decodeErrors)
	registry.RegisterCounter("receiver", "unknown_datasets", m.unknownDatasets)
	registry.RegisterGauge("receiver", "last_activity", m.lastActivity)

	return m
}
