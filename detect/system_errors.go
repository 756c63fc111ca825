package detect

import (
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// SystemErrors flags station records carrying a non-OK status. Identical
// (station, error type) occurrences inside the error dedup window collapse
// to one event; the observed fault span is reported when it exceeds the
// duration threshold.
type SystemErrors struct {
	cfg config.DetectionConfig
}

// NewSystemErrors creates the detector.
func NewSystemErrors(cfg config.DetectionConfig) *SystemErrors {
	return &SystemErrors{cfg: cfg}
}

// Name returns the detector name.
func (s *SystemErrors) Name() string { return "system_errors" }

// fault aggregates error records for one (station, error type) pair.
type fault struct {
	station   string
	errType   string
	first     time.Time
	last      time.Time
	count     int
	duration  float64 // source-reported fault duration, when present
}

// Detect scans every per-station dataset for error statuses.
func (s *SystemErrors) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	faults := make(map[string]*fault)

	record := func(station, status string, ts time.Time, reported float64) {
		if !types.IsErrorStatus(status) {
			return
		}
		key := station + "|" + status
		f, ok := faults[key]
		if !ok {
			f = &fault{station: station, errType: status, first: ts, last: ts}
			faults[key] = f
		}
		if ts.Before(f.first) {
			f.first = ts
		}
		if ts.After(f.last) {
			f.last = ts
		}
		f.count++
		if reported > f.duration {
			f.duration = reported
		}
	}

	for _, r := range snap.RFID {
		record(r.StationID, r.Status, r.Timestamp, 0)
	}
	for _, tx := range snap.POS {
		record(tx.StationID, tx.Status, tx.Timestamp, tx.DurationSeconds)
	}
	for _, q := range snap.Queue {
		record(q.StationID, q.Status, q.Timestamp, 0)
	}
	for _, p := range snap.Recognition {
		record(p.StationID, p.Status, p.Timestamp, 0)
	}

	var out []Candidate
	for _, f := range faults {
		fields := map[string]any{
			"error_type":  f.errType,
			"error_count": f.count,
		}
		span := f.last.Sub(f.first).Seconds()
		if f.duration > span {
			span = f.duration
		}
		if span > 0 && span >= s.cfg.FaultDurationThresholdSeconds {
			fields["duration_seconds"] = span
		}

		out = append(out, Candidate{
			Name:      types.EventSystemError,
			StationID: f.station,
			Entity:    f.errType,
			Timestamp: f.first,
			Fields:    fields,
			// Recurrences of the same fault inside this window are one
			// incident, not one event per tick.
			Window: s.cfg.ErrorDedupWindow,
		})
	}

	return out, nil
}
