package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/internal/metrics"
)

// SystemHealth is the JSON payload served at the health endpoint.
type SystemHealth struct {
	Status    Status                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*CheckResult `json:"checks"`
}

// Server exposes /health, /health/live, /health/ready, and (optionally)
// /metrics over HTTP.
type Server struct {
	checker       *Checker
	metricsServed bool
	httpServer    *http.Server
}

// NewServer builds a Server backed by checker. If serveMetrics is true, the
// metrics registry is also mounted on the same listener at /metrics,
// avoiding a second port when a deployment wants both behind one probe.
func NewServer(checker *Checker, addr string, serveMetrics bool) *Server {
	s := &Server{checker: checker, metricsServed: serveMetrics}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	if serveMetrics {
		mux.Handle("/metrics", metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins serving in the background. Bind failures are logged, not
// returned, since the caller has already moved on to running the node.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("health: server stopped", logger.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.checker.RunAll(r.Context())
	status := Overall(results)

	w.Header().Set("Content-Type", "application/json")
	if status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(SystemHealth{Status: status, Timestamp: time.Now(), Checks: results})
}

// handleLiveness always answers 200 if the process is running: it proves
// the HTTP server itself is scheduled and responsive, nothing more.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadiness gates readiness on every registered check passing at
// least degraded (an unhealthy peers/gossip_queue check means this node
// shouldn't receive new peer introductions yet).
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	results := s.checker.RunAll(r.Context())
	status := Overall(results)
	ready := status != StatusUnhealthy

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":     ready,
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
