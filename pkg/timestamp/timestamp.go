// Package timestamp provides parsing and formatting helpers for the
// timestamps carried on the telemetry stream.
//
// The replay feed emits RFC3339 timestamps, but historical datasets also
// contain naive local timestamps without an offset ("2006-01-02T15:04:05").
// Parse accepts both so a single malformed offset does not poison a record.
package timestamp

import (
	"fmt"
	"time"
)

// naiveLayout matches timestamps recorded without a zone offset. They are
// interpreted as UTC.
const naiveLayout = "2006-01-02T15:04:05"

// Parse converts a stream timestamp string to time.Time. An empty string
// returns the zero time without an error so callers can fall back to the
// frame envelope timestamp.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(naiveLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// Format renders a time in the stream's RFC3339 format. The zero time
// renders as an empty string.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Bucket truncates t to the start of its window-sized bucket. It is used to
// build dedup keys: two detections of the same anomaly within one bucket
// share a key. A non-positive window collapses everything into one bucket.
func Bucket(t time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return t.Truncate(window)
}

// Within reports whether a and b are no further apart than window.
func Within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}
