package buffer

import "sync/atomic"

// Statistics tracks buffer activity with atomic counters. A Statistics
// instance is always attached to a buffer so operational visibility does
// not depend on a metrics registry being configured.
type Statistics struct {
	writes      atomic.Int64
	snapshots   atomic.Int64
	overflows   atomic.Int64
	drops       atomic.Int64
	currentSize atomic.Int64
	maxSize     atomic.Int64
}

// NewStatistics creates a zeroed statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Write records a successful append.
func (s *Statistics) Write() {
	s.writes.Add(1)
}

// SnapshotTaken records a snapshot read.
func (s *Statistics) SnapshotTaken() {
	s.snapshots.Add(1)
}

// Overflow records a write that hit a full buffer.
func (s *Statistics) Overflow() {
	s.overflows.Add(1)
}

// Drop records an item discarded by the overflow policy.
func (s *Statistics) Drop() {
	s.drops.Add(1)
}

// UpdateSize records the current buffer size and tracks the high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.currentSize.Store(size)
	for {
		max := s.maxSize.Load()
		if size <= max || s.maxSize.CompareAndSwap(max, size) {
			return
		}
	}
}

// Writes returns the total number of successful appends.
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Snapshots returns the total number of snapshot reads.
func (s *Statistics) Snapshots() int64 { return s.snapshots.Load() }

// Overflows returns how many writes found the buffer full.
func (s *Statistics) Overflows() int64 { return s.overflows.Load() }

// Drops returns how many items the overflow policy discarded.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// CurrentSize returns the last recorded buffer size.
func (s *Statistics) CurrentSize() int64 { return s.currentSize.Load() }

// MaxSize returns the largest size the buffer has reached.
func (s *Statistics) MaxSize() int64 { return s.maxSize.Load() }

// Summary returns a snapshot of all counters for logging.
func (s *Statistics) Summary() map[string]int64 {
	return map[string]int64{
		"writes":       s.Writes(),
		"snapshots":    s.Snapshots(),
		"overflows":    s.Overflows(),
		"drops":        s.Drops(),
		"current_size": s.CurrentSize(),
		"max_size":     s.MaxSize(),
	}
}
