package replay

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// datasetFiles maps a dataset tag to its JSONL file in the data directory.
var datasetFiles = map[types.Dataset]string{
	types.DatasetPOS:         "pos_transactions.jsonl",
	types.DatasetRFID:        "rfid_readings.jsonl",
	types.DatasetQueue:       "queue_monitoring.jsonl",
	types.DatasetRecognition: "product_recognition.jsonl",
	types.DatasetInventory:   "inventory_snapshots.jsonl",
}

// timedEvent is one source record with its parsed timestamp, ready to be
// framed and paced.
type timedEvent struct {
	dataset types.Dataset
	ts      time.Time
	raw     json.RawMessage
}

// loadEvents reads the selected dataset files and merges their records into
// one chronological sequence. Missing files are skipped; a data directory
// with no recognized files is an error.
func loadEvents(dataDir string, filter map[types.Dataset]bool) ([]timedEvent, []string, error) {
	var events []timedEvent
	var datasets []string

	for _, ds := range types.AllDatasets {
		if filter != nil && !filter[ds] {
			continue
		}

		path := filepath.Join(dataDir, datasetFiles[ds])
		loaded, err := loadFile(path, ds)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, err
		}
		if len(loaded) > 0 {
			events = append(events, loaded...)
			datasets = append(datasets, ds.String())
		}
	}

	if len(events) == 0 {
		return nil, nil, errors.WrapInvalid(
			errors.New("no dataset files found in "+dataDir),
			"replay", "loadEvents", "load data directory")
	}

	// Stable sort keeps same-timestamp records in file order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ts.Before(events[j].ts)
	})

	return events, datasets, nil
}

func loadFile(path string, ds types.Dataset) ([]timedEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []timedEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe struct {
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			// A corrupt line in the source data is skipped, same as the
			// receiver skips it on the wire.
			continue
		}
		ts, err := timestamp.Parse(probe.Timestamp)
		if err != nil {
			continue
		}

		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		events = append(events, timedEvent{dataset: ds, ts: ts, raw: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapInvalid(err, "replay", "loadFile", "scan "+path)
	}

	return events, nil
}

// cycleSeconds is the original time span covered by the event sequence.
func cycleSeconds(events []timedEvent) float64 {
	if len(events) < 2 {
		return 0
	}
	return events[len(events)-1].ts.Sub(events[0].ts).Seconds()
}
