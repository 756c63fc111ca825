package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/catalog"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/component"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// Phase is where the engine currently is inside a tick.
type Phase int32

// Tick phases.
const (
	PhaseIdle Phase = iota
	PhaseSnapshotting
	PhaseDetecting
	PhaseEmitting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSnapshotting:
		return "snapshotting"
	case PhaseDetecting:
		return "detecting"
	case PhaseEmitting:
		return "emitting"
	default:
		return "unknown"
	}
}

// Deps holds the runtime dependencies for the detection engine.
type Deps struct {
	Name            string
	Config          config.DetectionConfig
	Buffers         *streams.Buffers
	Catalog         *catalog.Catalog
	Emitter         Emitter
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Engine drives the detection tick. One goroutine owns the ticker; a tick
// that comes due while the previous one still runs is skipped, never
// queued.
type Engine struct {
	name      string
	cfg       config.DetectionConfig
	buffers   *streams.Buffers
	detectors []Detector
	emitter   Emitter
	logger    *slog.Logger
	core      *metric.Metrics

	dedup   *dedupIndex
	eventID atomic.Int64

	// Lifecycle management
	shutdown    chan struct{}
	done        chan struct{}
	running     atomic.Bool
	tickRunning atomic.Bool
	phase       atomic.Int32
	startTime   time.Time
	mu          sync.RWMutex
	wg          sync.WaitGroup

	ticksRun      atomic.Int64
	ticksSkipped  atomic.Int64
	eventsEmitted atomic.Int64
	errorCount    atomic.Int64
	lastTick      atomic.Value // stores time.Time
}

var _ component.LifecycleComponent = (*Engine)(nil)
var _ component.HealthReporter = (*Engine)(nil)

// New creates the engine with the standard seven detectors.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "detect")

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	e := &Engine{
		name:    deps.Name,
		cfg:     deps.Config,
		buffers: deps.Buffers,
		emitter: deps.Emitter,
		logger:  logger,
		core:    core,
		dedup:   newDedupIndex(),
		detectors: []Detector{
			NewScannerAvoidance(deps.Config),
			NewBarcodeSwitch(deps.Config, deps.Catalog),
			NewWeightDiscrepancy(deps.Config, deps.Catalog),
			NewSystemErrors(deps.Config),
			NewLongQueue(deps.Config),
			NewExtendedWait(deps.Config),
			NewInventoryDiscrepancy(deps.Config, deps.Catalog),
		},
		startTime: time.Now(),
	}
	e.lastTick.Store(time.Time{})
	e.phase.Store(int32(PhaseIdle))
	return e
}

// Detectors returns the detector names, in run order.
func (e *Engine) Detectors() []string {
	names := make([]string, len(e.detectors))
	for i, d := range e.detectors {
		names[i] = d.Name()
	}
	return names
}

// Phase returns the current tick phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// Meta returns the component metadata.
func (e *Engine) Meta() component.Metadata {
	name := e.name
	if name == "" {
		name = "detect-engine"
	}
	return component.Metadata{
		Name:        name,
		Type:        "engine",
		Description: fmt.Sprintf("Detection engine, %d detectors, tick every %s", len(e.detectors), e.cfg.Interval),
		Version:     "1.0.0",
	}
}

// Health returns the current health status.
func (e *Engine) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    e.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(e.errorCount.Load()),
		Uptime:     time.Since(e.startTime),
	}
}

// Initialize validates the engine configuration and dependencies.
func (e *Engine) Initialize() error {
	if e.cfg.Interval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("tick interval %v", e.cfg.Interval),
			"detect", "Initialize", "interval validation")
	}
	if e.cfg.DedupWindow <= 0 {
		return errors.WrapInvalid(fmt.Errorf("dedup window %v", e.cfg.DedupWindow),
			"detect", "Initialize", "dedup window validation")
	}
	if e.buffers == nil {
		return errors.WrapInvalid(fmt.Errorf("nil stream buffers"),
			"detect", "Initialize", "dependency validation")
	}
	if e.emitter == nil {
		return errors.WrapInvalid(fmt.Errorf("nil emitter"),
			"detect", "Initialize", "dependency validation")
	}
	return nil
}

// Start launches the ticker goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return nil // Already running, idempotent
	}

	e.shutdown = make(chan struct{})
	e.done = make(chan struct{})
	e.running.Store(true)
	e.startTime = time.Now()

	e.logger.Info("Detection engine started",
		"interval", e.cfg.Interval,
		"detectors", e.Detectors())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(e.done)
		e.tickLoop(ctx)
	}()

	return nil
}

// Stop stops the ticker. An in-flight tick is allowed to finish; no new
// tick starts after Stop is called.
func (e *Engine) Stop(timeout time.Duration) error {
	if !e.running.Load() {
		return nil
	}
	e.running.Store(false)

	e.mu.Lock()
	if e.shutdown != nil {
		select {
		case <-e.shutdown:
		default:
			close(e.shutdown)
		}
	}
	done := e.done
	e.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"detect", "Stop", "graceful shutdown")
		}
	}
	return nil
}

func (e *Engine) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		case <-ticker.C:
			if !e.running.Load() {
				return
			}
			e.RunTick(ctx)
		}
	}
}

// RunTick performs one detection pass. Exported so tests and manual tools
// can drive the engine without the wall-clock ticker. Returns the number of
// newly accepted events; a tick skipped because the previous one is still
// running returns -1.
func (e *Engine) RunTick(ctx context.Context) int {
	if !e.tickRunning.CompareAndSwap(false, true) {
		e.ticksSkipped.Add(1)
		if e.core != nil {
			e.core.TicksSkipped.Inc()
		}
		e.logger.Warn("Tick skipped, previous tick still running",
			"error", errors.ErrTickSkipped)
		return -1
	}
	defer e.tickRunning.Store(false)
	defer e.phase.Store(int32(PhaseIdle))

	started := time.Now()
	e.ticksRun.Add(1)
	e.lastTick.Store(started)

	e.phase.Store(int32(PhaseSnapshotting))
	snap := e.buffers.SnapshotAll()

	e.phase.Store(int32(PhaseDetecting))
	var candidates []Candidate
	for _, d := range e.detectors {
		found, err := e.runDetector(d, snap)
		if err != nil {
			e.errorCount.Add(1)
			if e.core != nil {
				e.core.DetectorFailures.WithLabelValues(d.Name()).Inc()
			}
			e.logger.Error("Detector failed, skipping this tick",
				"detector", d.Name(), "error", err)
			continue
		}
		candidates = append(candidates, found...)
	}

	e.phase.Store(int32(PhaseEmitting))
	accepted := e.reconcileAndEmit(ctx, candidates, started)

	e.dedup.purge(started)

	if e.core != nil {
		e.core.DetectionDuration.Observe(time.Since(started).Seconds())
	}
	if accepted > 0 {
		e.logger.Info("Tick complete",
			"candidates", len(candidates),
			"accepted", accepted,
			"duration", time.Since(started))
	}
	return accepted
}

// runDetector isolates one detector: a panic is recovered and reported as
// an error so the remaining detectors still run.
func (e *Engine) runDetector(d Detector, snap *streams.Snapshot) (candidates []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = errors.WrapFatal(fmt.Errorf("%w: panic: %v", errors.ErrDetectorFailed, r),
				"detect", "runDetector", d.Name()+" detection")
		}
	}()
	return d.Detect(snap)
}

// reconcileAndEmit filters candidates through the dedup index, assigns
// event ids to the survivors, and emits them.
func (e *Engine) reconcileAndEmit(ctx context.Context, candidates []Candidate, now time.Time) int {
	accepted := 0
	for _, c := range candidates {
		window := c.Window
		if window <= 0 {
			window = e.cfg.DedupWindow
		}
		// Entries outlive the window so a record still sitting in the
		// buffer cannot re-emit after its own bucket expires.
		retention := 4 * window

		if !e.dedup.accept(c, window, now, retention) {
			continue
		}

		event := types.DetectionEvent{
			Timestamp: now.UTC(),
			EventID:   e.nextEventID(),
			Data: types.DetectionData{
				Name:       c.Name,
				StationID:  c.StationID,
				CustomerID: c.CustomerID,
				Fields:     c.Fields,
			},
		}

		if err := e.emitter.Emit(ctx, event); err != nil {
			e.errorCount.Add(1)
			e.logger.Error("Emit failed", "event_id", event.EventID, "error", err)
			continue
		}

		accepted++
		e.eventsEmitted.Add(1)
		if e.core != nil {
			e.core.DetectionsEmitted.WithLabelValues(string(c.Name)).Inc()
		}
	}
	return accepted
}

// nextEventID returns the next id in the E%06d sequence. Ids are assigned
// only to accepted events, so the log numbering has no gaps from
// suppressed duplicates.
func (e *Engine) nextEventID() string {
	return fmt.Sprintf("E%06d", e.eventID.Add(1)-1)
}

// Stats returns tick counters for health reporting.
func (e *Engine) Stats() map[string]int64 {
	return map[string]int64{
		"ticks_run":      e.ticksRun.Load(),
		"ticks_skipped":  e.ticksSkipped.Load(),
		"events_emitted": e.eventsEmitted.Load(),
		"errors":         e.errorCount.Load(),
		"dedup_entries":  int64(e.dedup.size()),
	}
}
