// Package health serves the operational endpoints: /healthz rolls up
// component health, /metrics exposes the Prometheus registry.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/component"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
)

// Server is the HTTP health and metrics endpoint.
type Server struct {
	addr     string
	registry *metric.MetricsRegistry
	logger   *slog.Logger

	mu        sync.RWMutex
	reporters []component.HealthReporter
	server    *http.Server
	listener  net.Listener
}

// New creates the health server. Reporters can be registered before Start.
func New(addr string, registry *metric.MetricsRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		registry: registry,
		logger:   logger.With("component", "health"),
	}
}

// Register adds a component to the health roll-up.
func (s *Server) Register(r component.HealthReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = append(s.reporters, r)
}

// Addr returns the bound listen address, useful when the configured port
// is 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.registry != nil {
		mux.Handle("/metrics", s.registry.Handler())
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapFatal(err, "health", "Start", "bind "+s.addr)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health server failed", "error", err)
		}
	}()

	s.logger.Info("Health endpoint up", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down gracefully within the timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "health", "Stop", "graceful shutdown")
	}
	return nil
}

// componentHealth is one row of the /healthz response.
type componentHealth struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Healthy bool                   `json:"healthy"`
	Detail  component.HealthStatus `json:"detail"`
}

// handleHealthz reports overall and per-component health. 200 when every
// registered component is healthy, 503 otherwise.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	reporters := make([]component.HealthReporter, len(s.reporters))
	copy(reporters, s.reporters)
	s.mu.RUnlock()

	overall := true
	components := make([]componentHealth, 0, len(reporters))
	for _, r := range reporters {
		meta := r.Meta()
		health := r.Health()
		overall = overall && health.Healthy
		components = append(components, componentHealth{
			Name:    meta.Name,
			Type:    meta.Type,
			Healthy: health.Healthy,
			Detail:  health,
		})
	}

	status := http.StatusOK
	if !overall {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"healthy":    overall,
		"checked_at": time.Now().UTC().Format(time.RFC3339),
		"components": components,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("healthz encode failed", "error", err)
	}
}
