package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

func TestDedupKeyDimensions(t *testing.T) {
	window := time.Minute
	base := time.Date(2025, 8, 13, 16, 0, 10, 0, time.UTC)

	a := Candidate{Name: types.EventScannerAvoidance, StationID: "SCC1", CustomerID: "C001", Timestamp: base}
	sameBucket := a
	sameBucket.Timestamp = base.Add(30 * time.Second)
	nextBucket := a
	nextBucket.Timestamp = base.Add(2 * time.Minute)
	otherStation := a
	otherStation.StationID = "SCC2"
	otherCustomer := a
	otherCustomer.CustomerID = "C002"

	assert.Equal(t, dedupKey(a, window), dedupKey(sameBucket, window))
	assert.NotEqual(t, dedupKey(a, window), dedupKey(nextBucket, window))
	assert.NotEqual(t, dedupKey(a, window), dedupKey(otherStation, window))
	assert.NotEqual(t, dedupKey(a, window), dedupKey(otherCustomer, window))
}

func TestDedupKeyFallsBackToEntity(t *testing.T) {
	window := time.Minute
	base := time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

	unattributed := Candidate{Name: types.EventScannerAvoidance, StationID: "SCC1", Entity: "PRD_A", Timestamp: base}
	otherEntity := unattributed
	otherEntity.Entity = "PRD_B"

	assert.NotEqual(t, dedupKey(unattributed, window), dedupKey(otherEntity, window))
}

func TestDedupAcceptOncePerRetention(t *testing.T) {
	idx := newDedupIndex()
	window := time.Minute
	retention := 4 * window
	now := time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

	c := Candidate{Name: types.EventLongQueue, StationID: "SCC1", Entity: "SCC1", Timestamp: now}

	assert.True(t, idx.accept(c, window, now, retention))
	assert.False(t, idx.accept(c, window, now.Add(time.Second), retention))
	assert.False(t, idx.accept(c, window, now.Add(3*time.Minute), retention))

	// A later episode lands in a new bucket and emits again.
	later := c
	later.Timestamp = now.Add(5 * time.Minute)
	assert.True(t, idx.accept(later, window, now.Add(5*time.Minute), retention))
}

func TestDedupPurgeDropsExpired(t *testing.T) {
	idx := newDedupIndex()
	window := time.Minute
	now := time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

	c := Candidate{Name: types.EventSystemError, StationID: "SCC1", Entity: "Read Error", Timestamp: now}
	assert.True(t, idx.accept(c, window, now, 2*time.Minute))
	assert.Equal(t, 1, idx.size())

	idx.purge(now.Add(time.Minute))
	assert.Equal(t, 1, idx.size())

	idx.purge(now.Add(3 * time.Minute))
	assert.Equal(t, 0, idx.size())

	// After purge the same key is accepted again.
	assert.True(t, idx.accept(c, window, now.Add(3*time.Minute), 2*time.Minute))
}
