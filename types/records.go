package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
)

// Zone values reported by RFID readers.
const (
	ZoneInScanArea  = "IN_SCAN_AREA"
	ZoneOutScanArea = "OUT_SCAN_AREA"
)

// Status values that indicate a source-side fault. Anything else is
// treated as healthy.
const (
	StatusReadError   = "Read Error"
	StatusSystemCrash = "System Crash"
)

// IsErrorStatus reports whether a record status indicates a fault.
func IsErrorStatus(status string) bool {
	return status == StatusReadError || status == StatusSystemCrash
}

// RFIDReading is one tag read from an RFID station.
type RFIDReading struct {
	Timestamp  time.Time
	StationID  string
	Status     string
	EPC        string
	SKU        string
	Location   string
	CustomerID string // optional, empty when the reader cannot attribute
}

// POSTransaction is one scan event from a point-of-sale station.
type POSTransaction struct {
	Timestamp  time.Time
	StationID  string
	Status     string
	CustomerID string
	SKU        string
	Barcode    string
	Price      float64
	WeightG    float64
	// DurationSeconds is set when the station reports how long a fault
	// condition has persisted.
	DurationSeconds float64
}

// QueueSample is one queue-monitor measurement for a station.
type QueueSample struct {
	Timestamp        time.Time
	StationID        string
	Status           string
	CustomerCount    int
	AverageDwellSecs float64
}

// ProductRecognition is one vision-system prediction for a station.
type ProductRecognition struct {
	Timestamp    time.Time
	StationID    string
	Status       string
	PredictedSKU string
	Accuracy     float64
}

// InventorySnapshot is one full stock count keyed by SKU.
type InventorySnapshot struct {
	Timestamp time.Time
	Counts    map[string]int
}

// Payload is the closed union of decoded telemetry records. Each concrete
// record type reports the dataset it belongs to.
type Payload interface {
	Dataset() Dataset
}

// Dataset implements Payload.
func (r *RFIDReading) Dataset() Dataset { return DatasetRFID }

// Dataset implements Payload.
func (p *POSTransaction) Dataset() Dataset { return DatasetPOS }

// Dataset implements Payload.
func (q *QueueSample) Dataset() Dataset { return DatasetQueue }

// Dataset implements Payload.
func (p *ProductRecognition) Dataset() Dataset { return DatasetRecognition }

// Dataset implements Payload.
func (i *InventorySnapshot) Dataset() Dataset { return DatasetInventory }

// RawEvent is one decoded stream frame: the dataset tag, the frame sequence
// number assigned by the replay source, the record timestamp, and the typed
// payload. RawEvents live only inside the stream buffers; they are never
// persisted.
type RawEvent struct {
	Dataset   Dataset
	Sequence  int64
	Timestamp time.Time
	Payload   Payload
}

// frame is the wire envelope: one JSON object per line.
type frame struct {
	Dataset   string          `json:"dataset"`
	Sequence  int64           `json:"sequence"`
	Timestamp string          `json:"timestamp"`
	Event     json.RawMessage `json:"event"`

	// Service is only present on the banner line sent once per connection.
	Service string `json:"service"`
}

// Banner is the first line the replay source sends on a new connection.
type Banner struct {
	Service      string   `json:"service"`
	Datasets     []string `json:"datasets"`
	Events       int      `json:"events"`
	Loop         bool     `json:"loop"`
	SpeedFactor  float64  `json:"speed_factor"`
	CycleSeconds float64  `json:"cycle_seconds"`
}

// IsBanner reports whether the line is the per-connection banner rather
// than an event frame.
func IsBanner(line []byte) bool {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return false
	}
	return f.Service != ""
}

// DecodeBanner parses the per-connection banner line.
func DecodeBanner(line []byte) (Banner, error) {
	var b Banner
	if err := json.Unmarshal(line, &b); err != nil {
		return Banner{}, errors.WrapInvalid(err, "types", "DecodeBanner", "banner parsing")
	}
	return b, nil
}

// record is the shared shape of per-station telemetry records inside a frame.
type record struct {
	Timestamp string          `json:"timestamp"`
	StationID string          `json:"station_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
}

// DecodeFrame decodes one stream line into a RawEvent. Unknown dataset tags
// return a RawEvent with DatasetUnknown and a nil payload together with an
// invalid-classified error; malformed JSON returns a parse error. Callers
// skip both cases without terminating the stream.
func DecodeFrame(line []byte) (RawEvent, error) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return RawEvent{}, errors.WrapInvalid(err, "types", "DecodeFrame", "frame parsing")
	}

	ds, ok := ParseDataset(f.Dataset)
	if !ok {
		return RawEvent{Dataset: DatasetUnknown, Sequence: f.Sequence},
			errors.WrapInvalid(fmt.Errorf("unknown dataset tag %q", f.Dataset),
				"types", "DecodeFrame", "dataset classification")
	}

	payload, ts, err := decodePayload(ds, f.Event)
	if err != nil {
		return RawEvent{Dataset: ds, Sequence: f.Sequence}, err
	}

	// Prefer the record's own timestamp; fall back to the frame envelope.
	if ts.IsZero() {
		ts, _ = timestamp.Parse(f.Timestamp)
	}

	return RawEvent{
		Dataset:   ds,
		Sequence:  f.Sequence,
		Timestamp: ts,
		Payload:   payload,
	}, nil
}

func decodePayload(ds Dataset, event json.RawMessage) (Payload, time.Time, error) {
	if ds == DatasetInventory {
		return decodeInventory(event)
	}

	var rec record
	if err := json.Unmarshal(event, &rec); err != nil {
		return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "record parsing")
	}
	ts, err := timestamp.Parse(rec.Timestamp)
	if err != nil {
		return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "timestamp parsing")
	}

	switch ds {
	case DatasetRFID:
		var d struct {
			EPC        string `json:"epc"`
			SKU        string `json:"sku"`
			Location   string `json:"location"`
			CustomerID string `json:"customer_id"`
		}
		if err := json.Unmarshal(rec.Data, &d); err != nil {
			return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "rfid data parsing")
		}
		return &RFIDReading{
			Timestamp: ts, StationID: rec.StationID, Status: rec.Status,
			EPC: d.EPC, SKU: d.SKU, Location: d.Location, CustomerID: d.CustomerID,
		}, ts, nil

	case DatasetPOS:
		var d struct {
			CustomerID      string  `json:"customer_id"`
			SKU             string  `json:"sku"`
			Barcode         string  `json:"barcode"`
			Price           float64 `json:"price"`
			WeightG         float64 `json:"weight_g"`
			DurationSeconds float64 `json:"duration_seconds"`
		}
		if err := json.Unmarshal(rec.Data, &d); err != nil {
			return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "pos data parsing")
		}
		return &POSTransaction{
			Timestamp: ts, StationID: rec.StationID, Status: rec.Status,
			CustomerID: d.CustomerID, SKU: d.SKU, Barcode: d.Barcode,
			Price: d.Price, WeightG: d.WeightG, DurationSeconds: d.DurationSeconds,
		}, ts, nil

	case DatasetQueue:
		var d struct {
			CustomerCount    int     `json:"customer_count"`
			AverageDwellTime float64 `json:"average_dwell_time"`
		}
		if err := json.Unmarshal(rec.Data, &d); err != nil {
			return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "queue data parsing")
		}
		return &QueueSample{
			Timestamp: ts, StationID: rec.StationID, Status: rec.Status,
			CustomerCount: d.CustomerCount, AverageDwellSecs: d.AverageDwellTime,
		}, ts, nil

	case DatasetRecognition:
		var d struct {
			PredictedProduct string  `json:"predicted_product"`
			Accuracy         float64 `json:"accuracy"`
		}
		if err := json.Unmarshal(rec.Data, &d); err != nil {
			return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "recognition data parsing")
		}
		return &ProductRecognition{
			Timestamp: ts, StationID: rec.StationID, Status: rec.Status,
			PredictedSKU: d.PredictedProduct, Accuracy: d.Accuracy,
		}, ts, nil
	}

	return nil, time.Time{}, errors.WrapInvalid(fmt.Errorf("dataset %q has no decoder", ds),
		"types", "DecodeFrame", "payload dispatch")
}

func decodeInventory(event json.RawMessage) (Payload, time.Time, error) {
	var rec struct {
		Timestamp string         `json:"timestamp"`
		Data      map[string]int `json:"data"`
	}
	if err := json.Unmarshal(event, &rec); err != nil {
		return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "inventory parsing")
	}
	ts, err := timestamp.Parse(rec.Timestamp)
	if err != nil {
		return nil, time.Time{}, errors.WrapInvalid(err, "types", "DecodeFrame", "inventory timestamp parsing")
	}
	return &InventorySnapshot{Timestamp: ts, Counts: rec.Data}, ts, nil
}
