package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFramePOS(t *testing.T) {
	line := []byte(`{"dataset":"POS_Transactions","sequence":7,"timestamp":"2025-08-13T16:00:01","event":{"timestamp":"2025-08-13T16:00:01","station_id":"SCC1","status":"Active","data":{"customer_id":"C056","sku":"PRD_S_04","barcode":"4792254487964","price":2.99,"weight_g":148.5}}}`)

	ev, err := DecodeFrame(line)
	require.NoError(t, err)
	assert.Equal(t, DatasetPOS, ev.Dataset)
	assert.Equal(t, int64(7), ev.Sequence)

	tx, ok := ev.Payload.(*POSTransaction)
	require.True(t, ok)
	assert.Equal(t, "SCC1", tx.StationID)
	assert.Equal(t, "C056", tx.CustomerID)
	assert.Equal(t, "PRD_S_04", tx.SKU)
	assert.Equal(t, "4792254487964", tx.Barcode)
	assert.InDelta(t, 2.99, tx.Price, 0.001)
	assert.InDelta(t, 148.5, tx.WeightG, 0.001)
	assert.Equal(t, time.Date(2025, 8, 13, 16, 0, 1, 0, time.UTC), ev.Timestamp)
}

func TestDecodeFrameRFID(t *testing.T) {
	line := []byte(`{"dataset":"RFID_data","sequence":1,"timestamp":"2025-08-13T16:00:02","event":{"timestamp":"2025-08-13T16:00:02","station_id":"SCC1","status":"Active","data":{"epc":"E280116060000000000000A1","sku":"PRD_F_03","location":"OUT_SCAN_AREA"}}}`)

	ev, err := DecodeFrame(line)
	require.NoError(t, err)
	r, ok := ev.Payload.(*RFIDReading)
	require.True(t, ok)
	assert.Equal(t, "PRD_F_03", r.SKU)
	assert.Equal(t, ZoneOutScanArea, r.Location)
	assert.Empty(t, r.CustomerID)
}

func TestDecodeFrameInventory(t *testing.T) {
	line := []byte(`{"dataset":"Current_inventory_data","sequence":0,"timestamp":"2025-08-13T16:00:00","event":{"timestamp":"2025-08-13T16:00:00","data":{"PRD_F_01":120,"PRD_F_02":80}}}`)

	ev, err := DecodeFrame(line)
	require.NoError(t, err)
	snap, ok := ev.Payload.(*InventorySnapshot)
	require.True(t, ok)
	assert.Equal(t, 120, snap.Counts["PRD_F_01"])
	assert.Equal(t, 80, snap.Counts["PRD_F_02"])
}

func TestDecodeFrameUnknownDataset(t *testing.T) {
	line := []byte(`{"dataset":"Weather_data","sequence":0,"timestamp":"2025-08-13T16:00:00","event":{}}`)

	ev, err := DecodeFrame(line)
	require.Error(t, err)
	assert.Equal(t, DatasetUnknown, ev.Dataset)
	assert.Nil(t, ev.Payload)
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"dataset":`))
	assert.Error(t, err)
}

func TestDecodeFrameFallsBackToEnvelopeTimestamp(t *testing.T) {
	line := []byte(`{"dataset":"Queue_monitor","sequence":3,"timestamp":"2025-08-13T16:05:00","event":{"station_id":"SCC2","status":"Active","data":{"customer_count":4,"average_dwell_time":55.5}}}`)

	ev, err := DecodeFrame(line)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 13, 16, 5, 0, 0, time.UTC), ev.Timestamp)

	q, ok := ev.Payload.(*QueueSample)
	require.True(t, ok)
	assert.Equal(t, 4, q.CustomerCount)
	assert.InDelta(t, 55.5, q.AverageDwellSecs, 0.001)
}

func TestBannerDetection(t *testing.T) {
	banner := []byte(`{"service":"store-telemetry-replay","datasets":["POS_Transactions"],"events":100,"loop":true,"speed_factor":10.0,"cycle_seconds":300.0}`)
	frame := []byte(`{"dataset":"POS_Transactions","sequence":0,"timestamp":"2025-08-13T16:00:00","event":{}}`)

	assert.True(t, IsBanner(banner))
	assert.False(t, IsBanner(frame))
	assert.False(t, IsBanner([]byte("not json")))

	b, err := DecodeBanner(banner)
	require.NoError(t, err)
	assert.Equal(t, "store-telemetry-replay", b.Service)
	assert.Equal(t, 100, b.Events)
	assert.True(t, b.Loop)
	assert.InDelta(t, 10.0, b.SpeedFactor, 0.001)
}

func TestIsErrorStatus(t *testing.T) {
	assert.True(t, IsErrorStatus(StatusReadError))
	assert.True(t, IsErrorStatus(StatusSystemCrash))
	assert.False(t, IsErrorStatus("Active"))
	assert.False(t, IsErrorStatus(""))
}

func TestParseDataset(t *testing.T) {
	ds, ok := ParseDataset("RFID_data")
	assert.True(t, ok)
	assert.Equal(t, DatasetRFID, ds)

	ds, ok = ParseDataset("nope")
	assert.False(t, ok)
	assert.Equal(t, DatasetUnknown, ds)
}
