// Package receiver owns the TCP connection to the telemetry stream. It
// reassembles newline-delimited frames, skips the banner, decodes each line
// into a typed record, and appends it to the shared stream buffers.
package receiver

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/component"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/retry"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// ConnState is the receiver's connection state.
type ConnState int32

// Connection states. Closed is terminal: an EOF or mid-stream IO error ends
// the session, reconnection happens only through the dial policy on Start.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateStreaming
	StateClosed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// maxLineBytes bounds a single frame; inventory snapshots are the largest.
const maxLineBytes = 1024 * 1024

// Deps holds the runtime dependencies for the receiver.
type Deps struct {
	Name            string
	Config          config.SourceConfig
	Buffers         *streams.Buffers
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Receiver reads the telemetry stream and feeds the shared buffers.
type Receiver struct {
	name      string
	addr      string
	sessionID string
	filter    map[types.Dataset]bool
	buffers   *streams.Buffers
	logger    *slog.Logger

	dialTimeout time.Duration
	retryConfig retry.Config

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	conn      net.Conn

	linesReceived atomic.Int64
	bytesReceived atomic.Int64
	errorCount    atomic.Int64
	lastActivity  atomic.Value // stores time.Time

	metrics *Metrics
	core    *metric.Metrics
}

var _ component.LifecycleComponent = (*Receiver)(nil)
var _ component.HealthReporter = (*Receiver)(nil)

// New creates a receiver for the configured source.
func New(deps Deps) *Receiver {
	sessionID := uuid.NewString()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "receiver", "session_id", sessionID)

	attempts := deps.Config.ReconnectAttempts
	retryConfig := retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: deps.Config.ReconnectWait,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
	if retryConfig.InitialDelay <= 0 {
		retryConfig.InitialDelay = time.Second
	}
	switch {
	case attempts == 0:
		retryConfig.MaxAttempts = 1
	case attempts < 0:
		// Retry forever; only context cancellation stops the dial loop.
		retryConfig.MaxAttempts = math.MaxInt32
	}

	dialTimeout := deps.Config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	var filter map[types.Dataset]bool
	if len(deps.Config.Datasets) > 0 {
		filter = make(map[types.Dataset]bool, len(deps.Config.Datasets))
		for _, tag := range deps.Config.Datasets {
			if ds, ok := types.ParseDataset(tag); ok {
				filter[ds] = true
			}
		}
	}

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	r := &Receiver{
		name:        deps.Name,
		addr:        deps.Config.Addr(),
		sessionID:   sessionID,
		filter:      filter,
		buffers:     deps.Buffers,
		logger:      logger,
		dialTimeout: dialTimeout,
		retryConfig: retryConfig,
		startTime:   time.Now(),
		metrics:     newMetrics(deps.MetricsRegistry),
		core:        core,
	}
	r.lastActivity.Store(time.Time{})
	r.state.Store(int32(StateDisconnected))
	return r
}

// State returns the current connection state.
func (r *Receiver) State() ConnState {
	return ConnState(r.state.Load())
}

func (r *Receiver) setState(s ConnState) {
	r.state.Store(int32(s))
}

// Meta returns the component metadata.
func (r *Receiver) Meta() component.Metadata {
	name := r.name
	if name == "" {
		name = "receiver"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("TCP telemetry receiver for %s", r.addr),
		Version:     "1.0.0",
	}
}

// Health returns the current health status.
func (r *Receiver) Health() component.HealthStatus {
	state := r.State()
	status := component.HealthStatus{
		Healthy:    state == StateStreaming,
		LastCheck:  time.Now(),
		ErrorCount: int(r.errorCount.Load()),
		Uptime:     time.Since(r.startTime),
	}
	if state == StateClosed {
		status.LastError = errors.ErrStreamClosed.Error()
	}
	return status
}

// DataFlow returns the current data flow metrics.
func (r *Receiver) DataFlow() component.FlowMetrics {
	lines := r.linesReceived.Load()
	bytes := r.bytesReceived.Load()
	errorCount := r.errorCount.Load()
	lastActivity, _ := r.lastActivity.Load().(time.Time)

	var linesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(r.startTime).Seconds(); uptime > 0 {
		linesPerSecond = float64(lines) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if lines > 0 {
		errorRate = float64(errorCount) / float64(lines)
	}

	return component.FlowMetrics{
		MessagesPerSecond: linesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the receiver configuration.
func (r *Receiver) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"receiver", "Initialize", "source address validation")
	}
	if r.buffers == nil {
		return errors.WrapInvalid(fmt.Errorf("nil stream buffers"),
			"receiver", "Initialize", "dependency validation")
	}
	return nil
}

// Start dials the source through the reconnect policy and begins the read
// loop. The dial retries per the configured attempt count; once streaming,
// a lost connection ends the session instead of reconnecting.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil // Already running, idempotent
	}

	r.shutdown = make(chan struct{})
	r.done = make(chan struct{})

	r.setState(StateConnecting)
	r.logger.Info("Connecting to telemetry source", "addr", r.addr)

	dial := func() error {
		conn, err := net.DialTimeout("tcp", r.addr, r.dialTimeout)
		if err != nil {
			return errors.WrapTransient(err, "receiver", "Start", "dial "+r.addr)
		}
		r.conn = conn
		return nil
	}

	if err := retry.Do(ctx, r.retryConfig, dial); err != nil {
		r.setState(StateDisconnected)
		r.cleanupUnlocked()
		return errors.WrapTransient(err, "receiver", "Start", "connect to source")
	}

	if r.metrics != nil {
		r.metrics.connects.Inc()
	}

	r.running.Store(true)
	r.startTime = time.Now()
	r.setState(StateStreaming)
	r.logger.Info("Connected, streaming", "addr", r.addr)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.done != nil {
				select {
				case <-r.done:
				default:
					close(r.done)
				}
			}
		}()
		r.readLoop(ctx)
	}()

	return nil
}

// Stop gracefully stops the receiver with the specified timeout.
func (r *Receiver) Stop(timeout time.Duration) error {
	if !r.running.Load() {
		return nil
	}
	r.running.Store(false)

	r.mu.Lock()
	if r.shutdown != nil {
		select {
		case <-r.shutdown:
		default:
			close(r.shutdown)
		}
	}
	// Close the connection to unblock the scanner.
	if r.conn != nil {
		_ = r.conn.Close()
	}
	done := r.done
	r.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"receiver", "Stop", "graceful shutdown")
		}
	}

	r.mu.Lock()
	r.cleanupUnlocked()
	r.mu.Unlock()
	r.setState(StateClosed)
	return nil
}

func (r *Receiver) cleanupUnlocked() {
	if r.shutdown != nil {
		select {
		case <-r.shutdown:
		default:
			close(r.shutdown)
		}
		r.shutdown = nil
	}
	r.done = nil
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

// readLoop scans newline-delimited frames until EOF, an IO error, or
// shutdown. The scanner handles records split across reads and multiple
// records packed into one read. No buffer lock is ever held while the
// scanner is blocked on the socket.
func (r *Receiver) readLoop(ctx context.Context) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	bannerSeen := false

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			r.setState(StateClosed)
			return
		case <-r.shutdownChan():
			r.setState(StateClosed)
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		r.linesReceived.Add(1)
		r.bytesReceived.Add(int64(len(line) + 1))
		now := time.Now()
		r.lastActivity.Store(now)
		if r.metrics != nil {
			r.metrics.linesReceived.Inc()
			r.metrics.bytesReceived.Add(float64(len(line) + 1))
			r.metrics.lastActivity.Set(float64(now.Unix()))
		}

		if !bannerSeen && types.IsBanner(line) {
			bannerSeen = true
			r.logBanner(line)
			continue
		}

		r.handleLine(line)
	}

	if err := scanner.Err(); err != nil && r.running.Load() {
		r.errorCount.Add(1)
		r.logger.Error("Stream read failed, session over", "error", err)
	} else if r.running.Load() {
		r.logger.Info("Stream ended (EOF), session over",
			"lines", r.linesReceived.Load())
	}
	r.setState(StateClosed)
}

// handleLine decodes one frame and routes it into the buffers. Malformed
// and unknown lines are skipped with a diagnostic, never fatal.
func (r *Receiver) handleLine(line []byte) {
	ev, err := types.DecodeFrame(line)
	if err != nil {
		r.errorCount.Add(1)
		if errors.Is(err, errors.ErrUnknownDataset) {
			if r.metrics != nil {
				r.metrics.unknownDatasets.Inc()
			}
			if r.core != nil {
				r.core.RecordsDropped.WithLabelValues("unknown_dataset").Inc()
			}
			r.logger.Warn("Dropping frame for unknown dataset", "error", err)
			return
		}
		if r.metrics != nil {
			r.metrics.decodeErrors.Inc()
		}
		if r.core != nil {
			r.core.RecordsDropped.WithLabelValues("malformed").Inc()
		}
		r.logger.Warn("Skipping malformed frame", "error", err,
			"line_prefix", truncate(line, 120))
		return
	}

	if r.filter != nil && !r.filter[ev.Dataset] {
		return
	}

	if err := r.buffers.Append(ev); err != nil {
		r.errorCount.Add(1)
		r.logger.Warn("Failed to buffer record", "dataset", ev.Dataset, "error", err)
		return
	}

	if r.core != nil {
		r.core.RecordsReceived.WithLabelValues(ev.Dataset.String()).Inc()
	}
}

func (r *Receiver) logBanner(line []byte) {
	banner, err := types.DecodeBanner(line)
	if err != nil {
		r.logger.Debug("Unparseable banner, skipping", "error", err)
		return
	}
	r.logger.Info("Stream banner received",
		"service", banner.Service,
		"datasets", banner.Datasets,
		"events", banner.Events,
		"loop", banner.Loop,
		"speed_factor", banner.SpeedFactor,
		"cycle_seconds", banner.CycleSeconds)
}

func (r *Receiver) shutdownChan() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shutdown
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Done reports session completion: the channel closes when the read loop
// exits, whether by EOF, IO error, or shutdown.
func (r *Receiver) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}
