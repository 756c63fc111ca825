package detect

import (
	"fmt"
	"sync"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
)

// dedupIndex tracks which incidents have already been emitted so the same
// candidate surfacing on successive ticks produces exactly one event.
// Entries expire so a genuinely new episode with the same key re-emits
// after the window passes.
type dedupIndex struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

func newDedupIndex() *dedupIndex {
	return &dedupIndex{entries: make(map[string]time.Time)}
}

// key builds the dedup identity: event name, station, customer-or-entity,
// and the candidate timestamp truncated to the window.
func dedupKey(c Candidate, window time.Duration) string {
	who := c.CustomerID
	if who == "" {
		who = c.Entity
	}
	return fmt.Sprintf("%s|%s|%s|%d",
		c.Name, c.StationID, who, timestamp.Bucket(c.Timestamp, window).Unix())
}

// accept reports whether the candidate is new. A new candidate is recorded
// with an expiry of now + retention; repeats within the retention period
// return false.
func (d *dedupIndex) accept(c Candidate, window time.Duration, now time.Time, retention time.Duration) bool {
	key := dedupKey(c, window)

	d.mu.Lock()
	defer d.mu.Unlock()

	if expiry, seen := d.entries[key]; seen && now.Before(expiry) {
		return false
	}
	d.entries[key] = now.Add(retention)
	return true
}

// purge drops expired entries. Called once per tick; the index stays
// proportional to the number of live incidents.
func (d *dedupIndex) purge(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, expiry := range d.entries {
		if now.After(expiry) {
			delete(d.entries, key)
		}
	}
}

// size returns the number of live entries, for health reporting.
func (d *dedupIndex) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
