package buffer

import "github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"

// bufferOptions holds configuration applied via functional options.
type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]
	metricsReg     *metric.MetricsRegistry
	metricsPrefix  string
}

// Option configures a buffer at construction.
type Option[T any] func(*bufferOptions[T])

// WithOverflowPolicy sets the behavior when writing to a full buffer.
// The default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *bufferOptions[T]) {
		o.overflowPolicy = policy
	}
}

// WithDropCallback registers a callback invoked with each item discarded
// by the overflow policy or by Clear.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *bufferOptions[T]) {
		o.dropCallback = cb
	}
}

// WithMetrics enables Prometheus metrics for the buffer. The prefix
// distinguishes multiple buffers registered against the same registry,
// e.g. "rfid" or "pos".
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(o *bufferOptions[T]) {
		o.metricsReg = registry
		o.metricsPrefix = prefix
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy: DropOldest,
	}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}
