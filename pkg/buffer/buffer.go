// Package buffer provides a generic, thread-safe bounded circular buffer.
//
// The buffer is the holding area between the receiver's append path and the
// detection engine's read path. There is no notion of "consumed": readers
// take non-destructive snapshots, and the same item stays visible to
// successive snapshots until capacity eviction pushes it out.
//
// Statistics are always collected; Prometheus metrics are optional via the
// WithMetrics functional option.
package buffer

// Buffer is a bounded, order-preserving buffer of items of type T.
type Buffer[T any] interface {
	// Write appends an item. When the buffer is full the overflow policy
	// decides which item is dropped; Write itself never blocks.
	Write(item T) error

	// Snapshot returns a consistent point-in-time copy of the current
	// contents in insertion order, without removing anything.
	Snapshot() []T

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull returns true if the buffer is at maximum capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items from the buffer.
	Clear()

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	// Close shuts down the buffer; subsequent writes fail.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with each item dropped by the overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a circular buffer with the given capacity.
// Capacity is required; everything else is configured via functional
// options. Returns an error if metrics registration fails when requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
