package detect

import (
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// LongQueue flags stations where the customer count stays above the
// threshold for at least K consecutive samples. One event per sustained
// episode: the candidate is anchored to the episode's first sample, so
// every tick that still sees the episode maps to the same dedup key.
type LongQueue struct {
	cfg config.DetectionConfig
}

// NewLongQueue creates the detector.
func NewLongQueue(cfg config.DetectionConfig) *LongQueue {
	return &LongQueue{cfg: cfg}
}

// Name returns the detector name.
func (l *LongQueue) Name() string { return "long_queue" }

// Detect finds over-threshold runs per station.
func (l *LongQueue) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	byStation := make(map[string][]*types.QueueSample)
	for _, q := range snap.Queue {
		byStation[q.StationID] = append(byStation[q.StationID], q)
	}

	var out []Candidate
	for station, samples := range byStation {
		out = append(out, l.findEpisodes(station, samples)...)
	}
	return out, nil
}

// findEpisodes walks the station's samples in buffer order (insertion
// order matches arrival order) and yields one candidate per run of at
// least QueueMinConsecutive over-threshold samples.
func (l *LongQueue) findEpisodes(station string, samples []*types.QueueSample) []Candidate {
	var out []Candidate

	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		runLen := end - runStart
		if runLen >= l.cfg.QueueMinConsecutive {
			first := samples[runStart]
			last := samples[end-1]

			peak := 0
			for _, s := range samples[runStart:end] {
				if s.CustomerCount > peak {
					peak = s.CustomerCount
				}
			}

			out = append(out, Candidate{
				Name:      types.EventLongQueue,
				StationID: station,
				Timestamp: first.Timestamp,
				Fields: map[string]any{
					"num_of_customers":       peak,
					"queue_duration_seconds": last.Timestamp.Sub(first.Timestamp).Seconds(),
					"average_dwell_time":     last.AverageDwellSecs,
				},
			})
		}
		runStart = -1
	}

	for i, s := range samples {
		if s.CustomerCount > l.cfg.QueueLengthThreshold {
			if runStart < 0 {
				runStart = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(samples))

	return out
}

// ExtendedWait flags individual queue samples whose average dwell time
// exceeds the threshold. Priority is HIGH when the wait runs past 1.5x the
// threshold with a busy queue, MEDIUM otherwise.
type ExtendedWait struct {
	cfg config.DetectionConfig
}

// NewExtendedWait creates the detector.
func NewExtendedWait(cfg config.DetectionConfig) *ExtendedWait {
	return &ExtendedWait{cfg: cfg}
}

// Name returns the detector name.
func (e *ExtendedWait) Name() string { return "extended_wait" }

// Detect checks each sample independently.
func (e *ExtendedWait) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	var out []Candidate

	for _, q := range snap.Queue {
		if q.AverageDwellSecs <= e.cfg.WaitTimeThresholdSeconds {
			continue
		}

		priority := "MEDIUM"
		if q.AverageDwellSecs > e.cfg.WaitTimeThresholdSeconds*1.5 &&
			q.CustomerCount > e.cfg.WaitPriorityCustomerCount {
			priority = "HIGH"
		}

		out = append(out, Candidate{
			Name:      types.EventLongWait,
			StationID: q.StationID,
			Timestamp: q.Timestamp,
			Fields: map[string]any{
				"wait_time_seconds": q.AverageDwellSecs,
				"customer_count":    q.CustomerCount,
				"priority":          priority,
			},
		})
	}

	return out, nil
}
