// Package streams holds the shared in-memory buffers between the receiver
// (writer) and the detection engine (reader). Each dataset gets its own
// typed circular buffer; the engine reads consistent snapshots of all five
// at the start of a tick.
package streams

import (
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/buffer"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// Buffers groups the per-dataset buffers. Appends dispatch on the payload
// type; there is no cross-dataset lock, each buffer synchronizes itself.
type Buffers struct {
	rfid        buffer.Buffer[*types.RFIDReading]
	pos         buffer.Buffer[*types.POSTransaction]
	queue       buffer.Buffer[*types.QueueSample]
	recognition buffer.Buffer[*types.ProductRecognition]
	inventory   buffer.Buffer[*types.InventorySnapshot]
}

// Options configures buffer construction.
type Options struct {
	// Capacity is the per-dataset buffer capacity.
	Capacity int

	// InventoryCapacity sizes the inventory buffer separately; snapshots
	// are large and infrequent, only the newest few matter.
	InventoryCapacity int

	// Registry enables per-buffer Prometheus metrics when non-nil.
	Registry *metric.MetricsRegistry
}

// Snapshot is a consistent point-in-time copy of every buffer. Slices are
// owned by the caller; the buffers are not touched again after SnapshotAll
// returns.
type Snapshot struct {
	RFID        []*types.RFIDReading
	POS         []*types.POSTransaction
	Queue       []*types.QueueSample
	Recognition []*types.ProductRecognition
	Inventory   []*types.InventorySnapshot
	TakenAt     time.Time
}

// New creates the per-dataset buffers.
func New(opts Options) (*Buffers, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.InventoryCapacity <= 0 {
		opts.InventoryCapacity = 16
	}

	b := &Buffers{}

	var err error
	if b.rfid, err = newBuf[*types.RFIDReading](opts.Capacity, opts.Registry, "rfid"); err != nil {
		return nil, err
	}
	if b.pos, err = newBuf[*types.POSTransaction](opts.Capacity, opts.Registry, "pos"); err != nil {
		return nil, err
	}
	if b.queue, err = newBuf[*types.QueueSample](opts.Capacity, opts.Registry, "queue"); err != nil {
		return nil, err
	}
	if b.recognition, err = newBuf[*types.ProductRecognition](opts.Capacity, opts.Registry, "recognition"); err != nil {
		return nil, err
	}
	if b.inventory, err = newBuf[*types.InventorySnapshot](opts.InventoryCapacity, opts.Registry, "inventory"); err != nil {
		return nil, err
	}

	return b, nil
}

func newBuf[T any](capacity int, registry *metric.MetricsRegistry, name string) (buffer.Buffer[T], error) {
	var opts []buffer.Option[T]
	if registry != nil {
		opts = append(opts, buffer.WithMetrics[T](registry, name))
	}
	return buffer.NewCircularBuffer[T](capacity, opts...)
}

// Append routes a decoded event into its dataset buffer.
func (b *Buffers) Append(ev types.RawEvent) error {
	switch p := ev.Payload.(type) {
	case *types.RFIDReading:
		return b.rfid.Write(p)
	case *types.POSTransaction:
		return b.pos.Write(p)
	case *types.QueueSample:
		return b.queue.Write(p)
	case *types.ProductRecognition:
		return b.recognition.Write(p)
	case *types.InventorySnapshot:
		return b.inventory.Write(p)
	default:
		return errors.WrapInvalid(errors.ErrUnknownDataset, "streams", "Append",
			"route event for dataset "+ev.Dataset.String())
	}
}

// SnapshotAll copies every buffer. Each buffer is snapshotted atomically;
// the composite is taken close enough together that detectors treat it as
// one instant.
func (b *Buffers) SnapshotAll() *Snapshot {
	return &Snapshot{
		RFID:        b.rfid.Snapshot(),
		POS:         b.pos.Snapshot(),
		Queue:       b.queue.Snapshot(),
		Recognition: b.recognition.Snapshot(),
		Inventory:   b.inventory.Snapshot(),
		TakenAt:     time.Now().UTC(),
	}
}

// Sizes returns the current per-dataset buffer sizes for health reporting.
func (b *Buffers) Sizes() map[types.Dataset]int {
	return map[types.Dataset]int{
		types.DatasetRFID:        b.rfid.Size(),
		types.DatasetPOS:         b.pos.Size(),
		types.DatasetQueue:       b.queue.Size(),
		types.DatasetRecognition: b.recognition.Size(),
		types.DatasetInventory:   b.inventory.Size(),
	}
}

// Close shuts down every buffer.
func (b *Buffers) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{b.rfid, b.pos, b.queue, b.recognition, b.inventory} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
