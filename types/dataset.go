// Package types contains the shared domain types used across the sentinel
// pipeline: dataset identifiers, decoded telemetry records, the wire frame
// envelope, and the DetectionEvent emitted by the detection engine.
package types

// Dataset identifies one of the telemetry sources carried on the replay
// stream. The set is closed: anything else decodes to DatasetUnknown and is
// dropped by the receiver with a diagnostic.
type Dataset string

// Dataset tags as they appear on the wire.
const (
	DatasetPOS         Dataset = "POS_Transactions"
	DatasetRFID        Dataset = "RFID_data"
	DatasetQueue       Dataset = "Queue_monitor"
	DatasetRecognition Dataset = "Product_recognism"
	DatasetInventory   Dataset = "Current_inventory_data"
	DatasetUnknown     Dataset = ""
)

// AllDatasets lists every known dataset in a stable order.
var AllDatasets = []Dataset{
	DatasetPOS,
	DatasetRFID,
	DatasetQueue,
	DatasetRecognition,
	DatasetInventory,
}

// ParseDataset maps a wire tag to a known Dataset. Unrecognized tags return
// DatasetUnknown and false.
func ParseDataset(tag string) (Dataset, bool) {
	switch Dataset(tag) {
	case DatasetPOS, DatasetRFID, DatasetQueue, DatasetRecognition, DatasetInventory:
		return Dataset(tag), true
	default:
		return DatasetUnknown, false
	}
}

// String implements fmt.Stringer.
func (d Dataset) String() string {
	if d == DatasetUnknown {
		return "unknown"
	}
	return string(d)
}
