package detect

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/catalog"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// captureEmitter collects emitted events in memory.
type captureEmitter struct {
	mu     sync.Mutex
	events []types.DetectionEvent
}

func (c *captureEmitter) Emit(_ context.Context, event types.DetectionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureEmitter) all() []types.DetectionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.DetectionEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureEmitter) byName(name types.EventName) []types.DetectionEvent {
	var out []types.DetectionEvent
	for _, e := range c.all() {
		if e.Data.Name == name {
			out = append(out, e)
		}
	}
	return out
}

const testCatalogCSV = `SKU,product_name,quantity,barcode,weight,price
PRD_A,Bananas,100,111,480,4.50
PRD_B,Coffee,50,222,250,12.90
PRD_C,Water,200,333,500,1.20
`

func testConfig() config.DetectionConfig {
	return config.DetectionConfig{
		Interval:                      time.Second,
		CorrelationWindow:             60 * time.Second,
		MinRecognitionConfidence:      0.7,
		WeightToleranceGrams:          15,
		QueueLengthThreshold:          6,
		QueueMinConsecutive:           3,
		WaitTimeThresholdSeconds:      300,
		WaitPriorityCustomerCount:     5,
		ErrorDedupWindow:              10 * time.Minute,
		FaultDurationThresholdSeconds: 0,
		InventoryTolerance:            1,
		DedupWindow:                   60 * time.Second,
	}
}

func newTestEngine(t *testing.T, cfg config.DetectionConfig) (*Engine, *streams.Buffers, *captureEmitter) {
	t.Helper()
	buffers, err := streams.New(streams.Options{Capacity: 64, InventoryCapacity: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = buffers.Close() })

	cat, err := catalog.Parse(strings.NewReader(testCatalogCSV))
	require.NoError(t, err)

	emitter := &captureEmitter{}
	engine := New(Deps{
		Name:    "detect-test",
		Config:  cfg,
		Buffers: buffers,
		Catalog: cat,
		Emitter: emitter,
	})
	require.NoError(t, engine.Initialize())
	return engine, buffers, emitter
}

func appendEvent(t *testing.T, buffers *streams.Buffers, payload types.Payload) {
	t.Helper()
	require.NoError(t, buffers.Append(types.RawEvent{
		Dataset: payload.Dataset(),
		Payload: payload,
	}))
}

var base = time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

func TestEngine_ScannerAvoidance(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base.Add(10 * time.Second),
		StationID: "S1", Status: "Active",
		EPC: "EPC1", SKU: "PRD_A", Location: types.ZoneOutScanArea, CustomerID: "C1",
	})

	accepted := engine.RunTick(context.Background())
	assert.Equal(t, 1, accepted)

	events := emitter.byName(types.EventScannerAvoidance)
	require.Len(t, events, 1)
	assert.Equal(t, "S1", events[0].Data.StationID)
	assert.Equal(t, "C1", events[0].Data.CustomerID)
	assert.Equal(t, "PRD_A", events[0].Data.Fields["product_sku"])
}

func TestEngine_ScannerAvoidance_SuppressedByMatchingSale(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base.Add(10 * time.Second),
		StationID: "S1", Status: "Active",
		SKU: "PRD_A", Location: types.ZoneOutScanArea, CustomerID: "C1",
	})
	appendEvent(t, buffers, &types.POSTransaction{
		Timestamp: base.Add(12 * time.Second),
		StationID: "S1", Status: "Active",
		CustomerID: "C1", SKU: "PRD_A", Barcode: "111", Price: 4.5, WeightG: 480,
	})

	engine.RunTick(context.Background())
	assert.Empty(t, emitter.byName(types.EventScannerAvoidance))
}

func TestEngine_WeightDiscrepancy_Tolerance(t *testing.T) {
	// Catalog weight for PRD_A is 480g; measured 500g.
	tx := &types.POSTransaction{
		Timestamp: base, StationID: "S1", Status: "Active",
		CustomerID: "C1", SKU: "PRD_A", Barcode: "111", Price: 4.5, WeightG: 500,
	}

	t.Run("over tolerance", func(t *testing.T) {
		engine, buffers, emitter := newTestEngine(t, testConfig()) // tolerance 15
		appendEvent(t, buffers, tx)
		engine.RunTick(context.Background())

		events := emitter.byName(types.EventWeightDiscrepancy)
		require.Len(t, events, 1)
		assert.Equal(t, 480.0, events[0].Data.Fields["expected_weight"])
		assert.Equal(t, 500.0, events[0].Data.Fields["actual_weight"])
		assert.Equal(t, 20.0, events[0].Data.Fields["difference"])
	})

	t.Run("within tolerance", func(t *testing.T) {
		cfg := testConfig()
		cfg.WeightToleranceGrams = 25
		engine, buffers, emitter := newTestEngine(t, cfg)
		appendEvent(t, buffers, tx)
		engine.RunTick(context.Background())

		assert.Empty(t, emitter.byName(types.EventWeightDiscrepancy))
	})
}

func TestEngine_UnknownCatalogSKUSkippedNotFlagged(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	// S1: PRD_X is not in the catalog. The grossly wrong weight must not
	// produce a Weight Discrepancy; the record is skipped.
	appendEvent(t, buffers, &types.POSTransaction{
		Timestamp: base.Add(10 * time.Second), StationID: "S1", Status: "Active",
		CustomerID: "C1", SKU: "PRD_X", Price: 9.99, WeightG: 999,
	})

	// S2: RFID infers PRD_Y, which is also absent from the catalog, so the
	// SKU mismatch must not produce a Barcode Switching event either.
	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base.Add(5 * time.Second),
		StationID: "S2", Status: "Active",
		EPC: "EPC2", SKU: "PRD_Y", Location: types.ZoneInScanArea, CustomerID: "C2",
	})
	// S2: known SKU on the same tick still emits (catalog 500g, measured 585g).
	appendEvent(t, buffers, &types.POSTransaction{
		Timestamp: base.Add(10 * time.Second), StationID: "S2", Status: "Active",
		CustomerID: "C2", SKU: "PRD_C", Barcode: "333", Price: 1.20, WeightG: 585,
	})

	accepted := engine.RunTick(context.Background())
	assert.Equal(t, 1, accepted)

	events := emitter.byName(types.EventWeightDiscrepancy)
	require.Len(t, events, 1)
	assert.Equal(t, "S2", events[0].Data.StationID)
	assert.Equal(t, "PRD_C", events[0].Data.Fields["product_sku"])

	assert.Empty(t, emitter.byName(types.EventBarcodeSwitching))
}

func TestEngine_NilCatalogDisablesCatalogDetectors(t *testing.T) {
	buffers, err := streams.New(streams.Options{Capacity: 64, InventoryCapacity: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = buffers.Close() })

	emitter := &captureEmitter{}
	engine := New(Deps{
		Name:    "detect-test",
		Config:  testConfig(),
		Buffers: buffers,
		Emitter: emitter,
	})
	require.NoError(t, engine.Initialize())

	appendEvent(t, buffers, &types.POSTransaction{
		Timestamp: base, StationID: "S1", Status: "Active",
		CustomerID: "C1", SKU: "PRD_A", Barcode: "111", Price: 4.5, WeightG: 999,
	})
	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base.Add(time.Second),
		StationID: "S2", Status: "Active",
		EPC: "EPC1", SKU: "PRD_B", Location: types.ZoneOutScanArea, CustomerID: "C2",
	})

	accepted := engine.RunTick(context.Background())

	// Catalog-free detectors still work; catalog-backed ones stay quiet.
	assert.Equal(t, 1, accepted)
	assert.Len(t, emitter.byName(types.EventScannerAvoidance), 1)
	assert.Empty(t, emitter.byName(types.EventWeightDiscrepancy))
	assert.Empty(t, emitter.byName(types.EventBarcodeSwitching))
}

func TestEngine_LongQueue_OneEventPerEpisode(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig()) // threshold 6, K 3

	for i := 0; i < 3; i++ {
		appendEvent(t, buffers, &types.QueueSample{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
			StationID: "S2", Status: "Active",
			CustomerCount: 8, AverageDwellSecs: 100,
		})
	}

	engine.RunTick(context.Background())
	events := emitter.byName(types.EventLongQueue)
	require.Len(t, events, 1)
	assert.Equal(t, "S2", events[0].Data.StationID)
	assert.Equal(t, 8, events[0].Data.Fields["num_of_customers"])
	assert.Equal(t, 60.0, events[0].Data.Fields["queue_duration_seconds"])

	// Re-running over the same buffered episode does not re-emit.
	engine.RunTick(context.Background())
	assert.Len(t, emitter.byName(types.EventLongQueue), 1)
}

func TestEngine_DedupAcrossTicks(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base, StationID: "S1", Status: "Active",
		SKU: "PRD_B", Location: types.ZoneOutScanArea,
	})

	first := engine.RunTick(context.Background())
	second := engine.RunTick(context.Background())
	third := engine.RunTick(context.Background())

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, 0, third)
	assert.Len(t, emitter.all(), 1)
}

func TestEngine_EventIDsStrictlyIncreasing(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	// Two independent incidents on one tick.
	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base, StationID: "S1", Status: "Active",
		SKU: "PRD_A", Location: types.ZoneOutScanArea,
	})
	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base, StationID: "S3", Status: "Active",
		SKU: "PRD_B", Location: types.ZoneOutScanArea,
	})

	engine.RunTick(context.Background())
	events := emitter.all()
	require.Len(t, events, 2)
	assert.Equal(t, "E000000", events[0].EventID)
	assert.Equal(t, "E000001", events[1].EventID)
	assert.Less(t, events[0].EventID, events[1].EventID)
}

// panicDetector always panics; used to prove isolation.
type panicDetector struct{}

func (panicDetector) Name() string { return "panic_detector" }
func (panicDetector) Detect(*streams.Snapshot) ([]Candidate, error) {
	panic("detector blew up")
}

func TestEngine_PanicIsolation(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())
	// Put the panicking detector first so the rest must survive it.
	engine.detectors = append([]Detector{panicDetector{}}, engine.detectors...)

	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base, StationID: "S1", Status: "Active",
		SKU: "PRD_A", Location: types.ZoneOutScanArea,
	})

	accepted := engine.RunTick(context.Background())
	assert.Equal(t, 1, accepted)
	assert.Len(t, emitter.byName(types.EventScannerAvoidance), 1)
	assert.Equal(t, int64(1), engine.Stats()["errors"])
}

func TestEngine_PanicErrorIsFatalDetectorFailure(t *testing.T) {
	engine, buffers, _ := newTestEngine(t, testConfig())

	_, err := engine.runDetector(panicDetector{}, buffers.SnapshotAll())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDetectorFailed))
	assert.True(t, errors.IsFatal(err))
}

func TestEngine_TickOverlapSkipped(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	// Simulate an in-flight tick.
	engine.tickRunning.Store(true)
	accepted := engine.RunTick(context.Background())
	assert.Equal(t, -1, accepted)
	assert.Equal(t, int64(1), engine.Stats()["ticks_skipped"])

	engine.tickRunning.Store(false)
	accepted = engine.RunTick(context.Background())
	assert.GreaterOrEqual(t, accepted, 0)
}

func TestEngine_SystemErrorCollapse(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	// Three crashes at the same station within the error dedup window.
	for i := 0; i < 3; i++ {
		appendEvent(t, buffers, &types.POSTransaction{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			StationID: "S1", Status: types.StatusSystemCrash,
		})
	}
	// A different error type at the same station is a separate incident.
	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base, StationID: "S1", Status: types.StatusReadError,
	})

	engine.RunTick(context.Background())
	events := emitter.byName(types.EventSystemError)
	require.Len(t, events, 2)

	kinds := map[string]bool{}
	for _, e := range events {
		kinds[e.Data.Fields["error_type"].(string)] = true
	}
	assert.True(t, kinds[types.StatusSystemCrash])
	assert.True(t, kinds[types.StatusReadError])
}

func TestEngine_ExtendedWaitPriority(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	appendEvent(t, buffers, &types.QueueSample{
		Timestamp: base, StationID: "S1", Status: "Active",
		CustomerCount: 3, AverageDwellSecs: 320,
	})
	appendEvent(t, buffers, &types.QueueSample{
		Timestamp: base, StationID: "S2", Status: "Active",
		CustomerCount: 7, AverageDwellSecs: 500,
	})

	engine.RunTick(context.Background())
	events := emitter.byName(types.EventLongWait)
	require.Len(t, events, 2)

	priorities := map[string]string{}
	for _, e := range events {
		priorities[e.Data.StationID] = e.Data.Fields["priority"].(string)
	}
	assert.Equal(t, "MEDIUM", priorities["S1"])
	assert.Equal(t, "HIGH", priorities["S2"])
}

func TestEngine_InventoryDiscrepancy(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig()) // tolerance 1

	appendEvent(t, buffers, &types.InventorySnapshot{
		Timestamp: base,
		Counts:    map[string]int{"PRD_A": 100, "PRD_B": 50},
	})
	// Two units of PRD_A sold between snapshots.
	for i := 0; i < 2; i++ {
		appendEvent(t, buffers, &types.POSTransaction{
			Timestamp: base.Add(time.Duration(i+1) * time.Minute),
			StationID: "S1", Status: "Active", SKU: "PRD_A",
		})
	}
	appendEvent(t, buffers, &types.InventorySnapshot{
		Timestamp: base.Add(10 * time.Minute),
		// Expected PRD_A: 100-2=98, counted 90 -> shrinkage of 8.
		// Expected PRD_B: 50, counted 51 -> within tolerance 1.
		Counts: map[string]int{"PRD_A": 90, "PRD_B": 51},
	})

	engine.RunTick(context.Background())
	events := emitter.byName(types.EventInventoryDiscrepancy)
	require.Len(t, events, 1)
	assert.Equal(t, "PRD_A", events[0].Data.Fields["SKU"])
	assert.Equal(t, 98, events[0].Data.Fields["Expected_Inventory"])
	assert.Equal(t, 90, events[0].Data.Fields["Actual_Inventory"])
	assert.Equal(t, 8, events[0].Data.Fields["Discrepancy"])
	assert.Equal(t, "Shrinkage", events[0].Data.Fields["Type"])
	assert.Equal(t, 2, events[0].Data.Fields["Units_Sold"])
}

func TestEngine_BarcodeSwitchViaRFID(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig())

	// RFID says PRD_B (12.90) was at the station; POS scanned PRD_C (1.20).
	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base.Add(5 * time.Second), StationID: "S1", Status: "Active",
		SKU: "PRD_B", Location: types.ZoneInScanArea,
	})
	appendEvent(t, buffers, &types.POSTransaction{
		Timestamp: base.Add(8 * time.Second), StationID: "S1", Status: "Active",
		CustomerID: "C9", SKU: "PRD_C", Barcode: "333", Price: 1.20, WeightG: 500,
	})

	engine.RunTick(context.Background())
	events := emitter.byName(types.EventBarcodeSwitching)
	require.Len(t, events, 1)
	assert.Equal(t, "PRD_B", events[0].Data.Fields["actual_sku"])
	assert.Equal(t, "333", events[0].Data.Fields["scanned_barcode"])
	assert.Equal(t, 12.90, events[0].Data.Fields["actual_price"])
	assert.Equal(t, 1.20, events[0].Data.Fields["scanned_price"])
	assert.InDelta(t, 11.70, events[0].Data.Fields["price_difference"].(float64), 0.001)
}

func TestEngine_BarcodeSwitch_LowConfidenceRecognitionIgnored(t *testing.T) {
	engine, buffers, emitter := newTestEngine(t, testConfig()) // min confidence 0.7

	appendEvent(t, buffers, &types.ProductRecognition{
		Timestamp: base.Add(5 * time.Second), StationID: "S1", Status: "Active",
		PredictedSKU: "PRD_B", Accuracy: 0.4,
	})
	appendEvent(t, buffers, &types.POSTransaction{
		Timestamp: base.Add(8 * time.Second), StationID: "S1", Status: "Active",
		SKU: "PRD_C", Barcode: "333", Price: 1.20, WeightG: 500,
	})

	engine.RunTick(context.Background())
	assert.Empty(t, emitter.byName(types.EventBarcodeSwitching))
}

func TestEngine_StartStopLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 20 * time.Millisecond
	engine, buffers, emitter := newTestEngine(t, cfg)

	appendEvent(t, buffers, &types.RFIDReading{
		Timestamp: base, StationID: "S1", Status: "Active",
		SKU: "PRD_A", Location: types.ZoneOutScanArea,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, engine.Start(ctx))
	// Idempotent start.
	require.NoError(t, engine.Start(ctx))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(emitter.all()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotEmpty(t, emitter.all())

	require.NoError(t, engine.Stop(time.Second))
	require.NoError(t, engine.Stop(time.Second))
	assert.Equal(t, PhaseIdle, engine.Phase())
}
