package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionEventMarshalOrder(t *testing.T) {
	ev := DetectionEvent{
		Timestamp: time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC),
		EventID:   "E000042",
		Data: DetectionData{
			Name:       EventWeightDiscrepancy,
			StationID:  "SCC1",
			CustomerID: "C056",
			Fields: map[string]any{
				"product_sku":     "PRD_F_03",
				"expected_weight": 425.0,
				"actual_weight":   680.0,
				"difference":      255.0,
			},
		},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	// event_name leads; the remaining keys are sorted.
	assert.Equal(t, `{"timestamp":"2025-08-13T16:00:00Z","event_id":"E000042","event_data":{"event_name":"Weight Discrepancies","actual_weight":680,"customer_id":"C056","difference":255,"expected_weight":425,"product_sku":"PRD_F_03","station_id":"SCC1"}}`, string(data))
}

func TestDetectionEventRoundTrip(t *testing.T) {
	ev := DetectionEvent{
		Timestamp: time.Date(2025, 8, 13, 16, 5, 0, 0, time.UTC),
		EventID:   "E000001",
		Data: DetectionData{
			Name:      EventLongQueue,
			StationID: "SCC3",
			Fields: map[string]any{
				"num_of_customers":       8.0,
				"queue_duration_seconds": 120.0,
			},
		},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var back DetectionEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.EventID, back.EventID)
	assert.Equal(t, ev.Data.Name, back.Data.Name)
	assert.Equal(t, ev.Data.StationID, back.Data.StationID)
	assert.Empty(t, back.Data.CustomerID)
	assert.InDelta(t, 8.0, back.Data.Fields["num_of_customers"], 0.001)
	assert.True(t, ev.Timestamp.Equal(back.Timestamp))
}

func TestDetectionEventOmitsEmptyDimensions(t *testing.T) {
	ev := DetectionEvent{
		Timestamp: time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC),
		EventID:   "E000000",
		Data: DetectionData{
			Name:   EventInventoryDiscrepancy,
			Fields: map[string]any{"SKU": "PRD_F_01"},
		},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "station_id")
	assert.NotContains(t, string(data), "customer_id")
}
