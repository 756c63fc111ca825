// Package emit writes accepted detection events to their sinks: an
// append-only JSONL file, and optionally a NATS subject for downstream
// subscribers.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/component"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/natsclient"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// Deps holds the runtime dependencies for the file emitter.
type Deps struct {
	Name string

	// Path of the JSONL event log.
	Path string

	// SyncEveryWrite fsyncs after each event. Slower, but no event is
	// lost to a crash once Emit returns.
	SyncEveryWrite bool

	// NATSClient and Subject enable the optional fan-out sink. Publish
	// failures are logged and counted, never propagated: the file is the
	// source of truth.
	NATSClient *natsclient.Client
	Subject    string

	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// FileEmitter appends one JSON line per event. Lines are never rewritten
// or reordered; the file only grows.
type FileEmitter struct {
	name    string
	path    string
	sync    bool
	nats    *natsclient.Client
	subject string
	logger  *slog.Logger

	mu        sync.Mutex
	file      *os.File
	startTime time.Time
	running   atomic.Bool

	eventsWritten atomic.Int64
	bytesWritten  atomic.Int64
	writeErrors   atomic.Int64
	publishDrops  atomic.Int64

	metrics *Metrics
}

var _ component.LifecycleComponent = (*FileEmitter)(nil)
var _ component.HealthReporter = (*FileEmitter)(nil)

// New creates a file emitter. The file is opened on Start.
func New(deps Deps) *FileEmitter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "emit", "path", deps.Path)

	return &FileEmitter{
		name:      deps.Name,
		path:      deps.Path,
		sync:      deps.SyncEveryWrite,
		nats:      deps.NATSClient,
		subject:   deps.Subject,
		logger:    logger,
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
}

// Meta returns the component metadata.
func (f *FileEmitter) Meta() component.Metadata {
	name := f.name
	if name == "" {
		name = "emitter"
	}
	desc := fmt.Sprintf("JSONL event sink at %s", f.path)
	if f.nats != nil && f.subject != "" {
		desc += ", fan-out to " + f.subject
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: desc,
		Version:     "1.0.0",
	}
}

// Health returns the current health status.
func (f *FileEmitter) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    f.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(f.writeErrors.Load()),
		Uptime:     time.Since(f.startTime),
	}
}

// Initialize validates the emitter configuration.
func (f *FileEmitter) Initialize() error {
	if f.path == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"emit", "Initialize", "output path validation")
	}
	if f.nats != nil && f.subject == "" {
		return errors.WrapInvalid(fmt.Errorf("NATS client without subject"),
			"emit", "Initialize", "fan-out validation")
	}
	return nil
}

// Start opens the event log for appending.
func (f *FileEmitter) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running.Load() {
		return nil
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "emit", "Start", "open event log")
	}

	f.file = file
	f.startTime = time.Now()
	f.running.Store(true)
	f.logger.Info("Event log open", "sync_every_write", f.sync)
	return nil
}

// Stop flushes and closes the event log.
func (f *FileEmitter) Stop(_ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running.Load() {
		return nil
	}
	f.running.Store(false)

	var err error
	if f.file != nil {
		if syncErr := f.file.Sync(); syncErr != nil {
			err = errors.Wrap(syncErr, "emit", "Stop", "sync event log")
		}
		if closeErr := f.file.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "emit", "Stop", "close event log")
		}
		f.file = nil
	}

	f.logger.Info("Event log closed", "events_written", f.eventsWritten.Load())
	return err
}

// Emit appends one event as a single JSON line, then fans it out to NATS
// when configured. The file write is the source of truth; a NATS publish
// failure is a counted drop, not an error.
func (f *FileEmitter) Emit(ctx context.Context, event types.DetectionEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		f.writeErrors.Add(1)
		return errors.WrapInvalid(err, "emit", "Emit", "serialize event "+event.EventID)
	}
	line = append(line, '\n')

	f.mu.Lock()
	if !f.running.Load() || f.file == nil {
		f.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "emit", "Emit", "event log not open")
	}
	_, err = f.file.Write(line)
	if err == nil && f.sync {
		err = f.file.Sync()
	}
	f.mu.Unlock()

	if err != nil {
		f.writeErrors.Add(1)
		if f.metrics != nil {
			f.metrics.writeErrors.Inc()
		}
		return errors.Wrap(err, "emit", "Emit", "append event "+event.EventID)
	}

	f.eventsWritten.Add(1)
	f.bytesWritten.Add(int64(len(line)))
	if f.metrics != nil {
		f.metrics.eventsWritten.Inc()
		f.metrics.bytesWritten.Add(float64(len(line)))
	}

	f.publish(ctx, line)
	return nil
}

// publish fans the line out to NATS, fire-and-forget.
func (f *FileEmitter) publish(ctx context.Context, line []byte) {
	if f.nats == nil || f.subject == "" {
		return
	}
	if err := f.nats.Publish(ctx, f.subject, line[:len(line)-1]); err != nil {
		f.publishDrops.Add(1)
		if f.metrics != nil {
			f.metrics.publishDrops.Inc()
		}
		f.logger.Debug("NATS fan-out dropped", "error", err)
	} else if f.metrics != nil {
		f.metrics.published.Inc()
	}
}

// Stats returns emitter counters for health reporting.
func (f *FileEmitter) Stats() map[string]int64 {
	return map[string]int64{
		"events_written": f.eventsWritten.Load(),
		"bytes_written":  f.bytesWritten.Load(),
		"write_errors":   f.writeErrors.Load(),
		"publish_drops":  f.publishDrops.Load(),
	}
}
