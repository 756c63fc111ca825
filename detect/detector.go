// Package detect runs the periodic detection tick: snapshot the stream
// buffers, run each detector in isolation, reconcile candidates against the
// dedup index, and hand newly accepted events to the emitter.
package detect

import (
	"context"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// Candidate is a potential detection produced by one detector on one tick.
// The engine decides whether it is new (emit) or a repeat (suppress).
type Candidate struct {
	Name       types.EventName
	StationID  string
	CustomerID string

	// Entity disambiguates candidates at the same station: the SKU for
	// product-level detections, the error type for station faults, empty
	// for station-level queue events.
	Entity string

	// Timestamp anchors the candidate to the underlying telemetry, not to
	// the tick. Detectors must derive it deterministically from the
	// snapshot so the same incident maps to the same dedup key on every
	// tick that still sees it.
	Timestamp time.Time

	// Fields are the kind-specific values serialized into event_data.
	Fields map[string]any

	// Window overrides the engine's default dedup window when non-zero.
	Window time.Duration
}

// Detector examines one snapshot and returns zero or more candidates.
// Implementations must be stateless across ticks: everything they need is
// in the snapshot, so a record seen by several ticks yields the same
// candidate each time and dedup collapses the repeats.
type Detector interface {
	Name() string
	Detect(snap *streams.Snapshot) ([]Candidate, error)
}

// Emitter receives accepted events. The engine calls it sequentially from
// the tick goroutine.
type Emitter interface {
	Emit(ctx context.Context, event types.DetectionEvent) error
}
