package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus namespace shared by every sentinel metric.
const Namespace = "sentinel"

// Metrics contains the core pipeline metrics shared across components.
// Component-specific metrics are registered separately through the
// MetricsRegistry.
type Metrics struct {
	ComponentStatus   *prometheus.GaugeVec
	RecordsReceived   *prometheus.CounterVec
	RecordsDropped    *prometheus.CounterVec
	DetectionsEmitted *prometheus.CounterVec
	DetectionDuration prometheus.Histogram
	TicksSkipped      prometheus.Counter
	DetectorFailures  *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all core pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "component",
				Name:      "status",
				Help:      "Component lifecycle status (0=created, 1=initialized, 2=started, 3=stopped, 4=failed)",
			},
			[]string{"component"},
		),

		RecordsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "records",
				Name:      "received_total",
				Help:      "Telemetry records decoded and buffered, by dataset",
			},
			[]string{"dataset"},
		),

		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "records",
				Name:      "dropped_total",
				Help:      "Records dropped before buffering, by reason (malformed, unknown_dataset)",
			},
			[]string{"reason"},
		),

		DetectionsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "detect",
				Name:      "events_emitted_total",
				Help:      "Detection events accepted after dedup, by kind",
			},
			[]string{"event_name"},
		),

		DetectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "detect",
				Name:      "tick_duration_seconds",
				Help:      "Wall-clock duration of one detection tick",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),

		TicksSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "detect",
				Name:      "ticks_skipped_total",
				Help:      "Detection ticks skipped because the previous tick was still running",
			},
		),

		DetectorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "detect",
				Name:      "detector_failures_total",
				Help:      "Detector errors or panics isolated by the engine, by detector",
			},
			[]string{"detector"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors, by component and class",
			},
			[]string{"component", "class"},
		),
	}
}
