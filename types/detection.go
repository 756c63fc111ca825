package types

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
)

// EventName identifies one of the seven detection kinds. The strings match
// the downstream event log format.
type EventName string

// Detection kinds.
const (
	EventScannerAvoidance     EventName = "Scanner Avoidance"
	EventBarcodeSwitching     EventName = "Barcode Switching"
	EventWeightDiscrepancy    EventName = "Weight Discrepancies"
	EventSystemError          EventName = "System Error"
	EventLongQueue            EventName = "Long Queue Length"
	EventLongWait             EventName = "Long Wait Time"
	EventInventoryDiscrepancy EventName = "Inventory Discrepancy"
)

// DetectionEvent is one accepted anomaly. It is immutable once emitted:
// the emitter appends it to the sink and nothing mutates or deletes it
// afterwards.
type DetectionEvent struct {
	// Timestamp is the detection time (when the engine accepted the event),
	// not the timestamp of the underlying telemetry.
	Timestamp time.Time
	// EventID is unique and strictly increasing across the process lifetime.
	EventID string
	Data    DetectionData
}

// DetectionData carries the kind, the identifying dimensions, and the
// kind-specific fields of a detection.
type DetectionData struct {
	Name       EventName
	StationID  string
	CustomerID string
	// Fields holds kind-specific values (actual vs scanned SKU, expected vs
	// actual weight, wait time and priority, ...). Keys are serialized
	// inline into event_data.
	Fields map[string]any
}

// MarshalJSON serializes the event in the log format:
//
//	{"timestamp": ..., "event_id": ..., "event_data": {"event_name": ..., ...}}
func (e DetectionEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp string          `json:"timestamp"`
		EventID   string          `json:"event_id"`
		EventData json.RawMessage `json:"event_data"`
	}{
		Timestamp: timestamp.Format(e.Timestamp),
		EventID:   e.EventID,
		EventData: e.Data.marshalInline(),
	})
}

// UnmarshalJSON restores an event from the log format. Kind-specific fields
// land in Data.Fields.
func (e *DetectionEvent) UnmarshalJSON(b []byte) error {
	var raw struct {
		Timestamp string         `json:"timestamp"`
		EventID   string         `json:"event_id"`
		EventData map[string]any `json:"event_data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ts, err := timestamp.Parse(raw.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts
	e.EventID = raw.EventID
	e.Data = DetectionData{Fields: map[string]any{}}
	for k, v := range raw.EventData {
		switch k {
		case "event_name":
			if s, ok := v.(string); ok {
				e.Data.Name = EventName(s)
			}
		case "station_id":
			if s, ok := v.(string); ok {
				e.Data.StationID = s
			}
		case "customer_id":
			if s, ok := v.(string); ok {
				e.Data.CustomerID = s
			}
		default:
			e.Data.Fields[k] = v
		}
	}
	return nil
}

// marshalInline flattens name, dimensions, and kind-specific fields into a
// single JSON object with a stable key order.
func (d DetectionData) marshalInline() json.RawMessage {
	obj := map[string]any{"event_name": string(d.Name)}
	if d.StationID != "" {
		obj["station_id"] = d.StationID
	}
	if d.CustomerID != "" {
		obj["customer_id"] = d.CustomerID
	}
	for k, v := range d.Fields {
		obj[k] = v
	}

	// json.Marshal of a map already sorts keys, but build the output
	// explicitly so event_name stays first for human readers of the log.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if k == "event_name" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte(`{"event_name":`)
	name, _ := json.Marshal(string(d.Name))
	buf = append(buf, name...)
	for _, k := range keys {
		buf = append(buf, ',')
		key, _ := json.Marshal(k)
		buf = append(buf, key...)
		buf = append(buf, ':')
		val, err := json.Marshal(obj[k])
		if err != nil {
			val = []byte(`null`)
		}
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf
}
