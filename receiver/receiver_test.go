package receiver

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

const testBanner = `{"service":"store-stream","datasets":["POS_Transactions"],"events":100,"loop":false,"speed_factor":1.0,"cycle_seconds":60}` + "\n"

// serveLines starts a one-shot TCP server writing chunks to the first
// connection, then closing it. Returns the address to dial.
func serveLines(t *testing.T, chunks ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, chunk := range chunks {
			if _, err := conn.Write([]byte(chunk)); err != nil {
				return
			}
			// Small gap so split/packed framing actually crosses reads.
			time.Sleep(5 * time.Millisecond)
		}
	}()

	return ln.Addr().String()
}

func newReceiver(t *testing.T, addr string) (*Receiver, *streams.Buffers) {
	t.Helper()
	buffers, err := streams.New(streams.Options{Capacity: 32, InventoryCapacity: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = buffers.Close() })

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	r := New(Deps{
		Name: "receiver-test",
		Config: config.SourceConfig{
			Host:              host,
			Port:              portNum,
			DialTimeout:       time.Second,
			ReconnectAttempts: 1,
			ReconnectWait:     10 * time.Millisecond,
		},
		Buffers: buffers,
	})
	require.NoError(t, r.Initialize())
	return r, buffers
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReceiver_DecodesAndBuffers(t *testing.T) {
	posLine := `{"dataset":"POS_Transactions","sequence":1,"timestamp":"2025-08-13T16:00:01","event":{"timestamp":"2025-08-13T16:00:01","station_id":"SCC1","status":"Active","data":{"customer_id":"C001","sku":"PRD_A","barcode":"111","price":4.5,"weight_g":1000}}}` + "\n"
	rfidLine := `{"dataset":"RFID_data","sequence":2,"timestamp":"2025-08-13T16:00:02","event":{"timestamp":"2025-08-13T16:00:02","station_id":"SCC1","status":"Active","data":{"epc":"EPC000001","sku":"PRD_A","location":"IN_SCAN_AREA"}}}` + "\n"

	addr := serveLines(t, testBanner, posLine, rfidLine)
	r, buffers := newReceiver(t, addr)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	defer func() { _ = r.Stop(time.Second) }()

	waitFor(t, func() bool {
		sizes := buffers.Sizes()
		return sizes[types.DatasetPOS] == 1 && sizes[types.DatasetRFID] == 1
	})

	snap := buffers.SnapshotAll()
	require.Len(t, snap.POS, 1)
	assert.Equal(t, "SCC1", snap.POS[0].StationID)
	assert.Equal(t, "PRD_A", snap.POS[0].SKU)
	require.Len(t, snap.RFID, 1)
	assert.Equal(t, "EPC000001", snap.RFID[0].EPC)
}

func TestReceiver_SplitAndPackedLines(t *testing.T) {
	line := `{"dataset":"Queue_monitor","sequence":1,"timestamp":"2025-08-13T16:00:01","event":{"timestamp":"2025-08-13T16:00:01","station_id":"SCC2","status":"Active","data":{"customer_count":6,"average_dwell_time":120}}}` + "\n"

	// One record split across two writes, then two records packed into one.
	addr := serveLines(t,
		testBanner,
		line[:40],
		line[40:],
		line+line,
	)
	r, buffers := newReceiver(t, addr)

	require.NoError(t, r.Start(context.Background()))
	defer func() { _ = r.Stop(time.Second) }()

	waitFor(t, func() bool {
		return buffers.Sizes()[types.DatasetQueue] == 3
	})
}

func TestReceiver_SkipsMalformedAndUnknown(t *testing.T) {
	valid := `{"dataset":"POS_Transactions","sequence":3,"timestamp":"2025-08-13T16:00:03","event":{"timestamp":"2025-08-13T16:00:03","station_id":"SCC1","status":"Active","data":{"customer_id":"C002","sku":"PRD_B","barcode":"222","price":2.0,"weight_g":300}}}` + "\n"

	addr := serveLines(t,
		testBanner,
		"{not json at all\n",
		`{"dataset":"Footfall_counter","sequence":1,"timestamp":"2025-08-13T16:00:01","event":{}}`+"\n",
		valid,
	)
	r, buffers := newReceiver(t, addr)

	require.NoError(t, r.Start(context.Background()))
	defer func() { _ = r.Stop(time.Second) }()

	waitFor(t, func() bool {
		return buffers.Sizes()[types.DatasetPOS] == 1
	})

	// Malformed and unknown lines were counted as errors, not buffered.
	assert.GreaterOrEqual(t, r.errorCount.Load(), int64(2))
	total := 0
	for _, n := range buffers.Sizes() {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestReceiver_EOFEndsSession(t *testing.T) {
	addr := serveLines(t, testBanner)
	r, _ := newReceiver(t, addr)

	require.NoError(t, r.Start(context.Background()))

	waitFor(t, func() bool { return r.State() == StateClosed })

	// A closed session is reported as unhealthy with the stream error.
	health := r.Health()
	assert.False(t, health.Healthy)
	assert.Equal(t, errors.ErrStreamClosed.Error(), health.LastError)

	require.NoError(t, r.Stop(time.Second))
}

func TestReceiver_DialFailure(t *testing.T) {
	// Grab a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	r, _ := newReceiver(t, addr)
	err = r.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, r.State())
}

func TestReceiver_StopWhileStreaming(t *testing.T) {
	// Server keeps the connection open without sending anything after the
	// banner; Stop must unblock the scanner.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(testBanner))
		// Hold the connection open.
		time.Sleep(5 * time.Second)
		_ = conn.Close()
	}()

	r, _ := newReceiver(t, ln.Addr().String())
	require.NoError(t, r.Start(context.Background()))

	waitFor(t, func() bool { return r.State() == StateStreaming })
	require.NoError(t, r.Stop(2*time.Second))
	assert.Equal(t, StateClosed, r.State())
}

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "closed", StateClosed.String())
}
