// Package replay serves recorded telemetry over TCP the way the live store
// systems would: a banner line on connect, then newline-delimited frames in
// original chronological order, paced by the record timestamps.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/component"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// Options configures the replay server.
type Options struct {
	// DataDir holds the dataset JSONL files.
	DataDir string

	// Addr is the TCP listen address, e.g. ":8765".
	Addr string

	// Speed scales replay pacing: 2.0 halves the inter-record delays,
	// 0 or 1.0 replays in real time.
	Speed float64

	// Loop restarts the sequence after the last record, without
	// rewriting timestamps.
	Loop bool

	// Datasets limits replay to a subset of dataset tags; empty means all.
	Datasets []string

	// MaxEventsPerSec caps the outgoing event rate per connection.
	// 0 means unlimited.
	MaxEventsPerSec float64

	Logger *slog.Logger
}

// Server replays the merged event sequence to every client that connects.
// Each connection gets its own goroutine and its own pacing; delivery is
// at-most-once, order-preserving, with no acknowledgments.
type Server struct {
	opts   Options
	logger *slog.Logger

	events []timedEvent
	banner types.Banner
	speed  float64
	limit  rate.Limit

	// Lifecycle management
	shutdown  chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	listener  net.Listener

	connections atomic.Int64
	framesSent  atomic.Int64
}

var _ component.LifecycleComponent = (*Server)(nil)
var _ component.HealthReporter = (*Server)(nil)

// New creates a replay server; dataset files load on Initialize.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}

	limit := rate.Inf
	if opts.MaxEventsPerSec > 0 {
		limit = rate.Limit(opts.MaxEventsPerSec)
	}

	return &Server{
		opts:   opts,
		logger: logger.With("component", "replay"),
		speed:  speed,
		limit:  limit,
	}
}

// Meta returns the component metadata.
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        "replay",
		Type:        "input",
		Description: fmt.Sprintf("Telemetry replay of %s on %s", s.opts.DataDir, s.opts.Addr),
		Version:     "1.0.0",
	}
}

// Health returns the current health status.
func (s *Server) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:   s.running.Load(),
		LastCheck: time.Now(),
		Uptime:    time.Since(s.startTime),
	}
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Initialize loads and merges the dataset files.
func (s *Server) Initialize() error {
	var filter map[types.Dataset]bool
	if len(s.opts.Datasets) > 0 {
		filter = make(map[types.Dataset]bool, len(s.opts.Datasets))
		for _, tag := range s.opts.Datasets {
			ds, ok := types.ParseDataset(tag)
			if !ok {
				return errors.WrapInvalid(fmt.Errorf("unknown dataset %q", tag),
					"replay", "Initialize", "dataset filter validation")
			}
			filter[ds] = true
		}
	}

	events, datasets, err := loadEvents(s.opts.DataDir, filter)
	if err != nil {
		return err
	}

	s.events = events
	s.banner = types.Banner{
		Service:      "store-telemetry-replay",
		Datasets:     datasets,
		Events:       len(events),
		Loop:         s.opts.Loop,
		SpeedFactor:  s.speed,
		CycleSeconds: cycleSeconds(events),
	}

	s.logger.Info("Replay data loaded",
		"events", len(events),
		"datasets", datasets,
		"cycle_seconds", s.banner.CycleSeconds)
	return nil
}

// Start binds the listener and accepts connections until stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}
	if len(s.events) == 0 {
		return errors.WrapInvalid(errors.ErrNotStarted,
			"replay", "Start", "Initialize must load events first")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.WrapFatal(err, "replay", "Start", "bind "+s.opts.Addr)
	}

	s.listener = listener
	s.shutdown = make(chan struct{})
	s.running.Store(true)
	s.startTime = time.Now()

	s.logger.Info("Replay server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, listener)
	}()

	return nil
}

// Stop closes the listener and waits for per-connection goroutines.
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"replay", "Stop", "graceful shutdown")
	}
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}

		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-s.shutdown:
			_ = conn.Close()
			return
		default:
		}

		s.connections.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn streams the banner and then the paced event sequence to one
// client. Write errors end the session silently; the client disconnected.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	clientID := uuid.NewString()[:8]
	logger := s.logger.With("client", clientID, "remote", conn.RemoteAddr().String())
	logger.Info("Client connected")

	if err := s.writeLine(conn, s.banner); err != nil {
		logger.Debug("Banner write failed", "error", err)
		return
	}

	limiter := rate.NewLimiter(s.limit, 1)
	sequence := int64(0)

	for {
		for i := range s.events {
			select {
			case <-ctx.Done():
				return
			case <-s.shutdown:
				return
			default:
			}

			// Pace by the original inter-record gap, scaled by speed.
			if i > 0 {
				gap := s.events[i].ts.Sub(s.events[i-1].ts)
				if gap > 0 {
					if !s.sleep(ctx, time.Duration(float64(gap)/s.speed)) {
						return
					}
				}
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			frame := map[string]any{
				"dataset":   s.events[i].dataset.String(),
				"sequence":  sequence,
				"timestamp": timestamp.Format(s.events[i].ts),
				"event":     s.events[i].raw,
			}
			if err := s.writeLine(conn, frame); err != nil {
				logger.Info("Client disconnected", "frames_sent", sequence)
				return
			}
			sequence++
			s.framesSent.Add(1)
		}

		if !s.opts.Loop {
			logger.Info("Replay complete, closing connection", "frames_sent", sequence)
			return
		}
		// Loop restarts without rewriting timestamps; consumers tolerate
		// the regression.
	}
}

func (s *Server) writeLine(conn net.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

// sleep waits for d unless the context or server shuts down first.
func (s *Server) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.shutdown:
		return false
	}
}
