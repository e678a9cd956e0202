// Package control exposes a small localhost-only HTTP API over a running
// node's orchestrator, the "local control socket" the command-line client
// talks to for whisper/resonate/stats without reaching into process
// internals.
package control

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/orchestrator"
)

// Server mounts /whisper, /resonate, and /stats on a dedicated listener,
// mirroring health.Server's mux-per-concern shape.
type Server struct {
	orch       *orchestrator.Orchestrator
	httpServer *http.Server
}

// NewServer builds a control Server bound to addr. Callers are expected to
// bind this to a loopback address; it carries no authentication of its
// own.
func NewServer(orch *orchestrator.Orchestrator, addr string) *Server {
	s := &Server{orch: orch}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the mux standalone, letting tests exercise it via
// httptest.NewServer without binding the real listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/whisper", s.handleWhisper)
	mux.HandleFunc("/resonate", s.handleResonate)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start begins serving in the background. Bind failures are logged, not
// returned, matching health.Server.Start.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("control: server stopped", logger.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type whisperRequest struct {
	PeerID  string `json:"peer_id"`
	Content string `json:"content"`
	Intent  string `json:"intent"`
}

type whisperResponse struct {
	Delivered bool `json:"delivered"`
}

func (s *Server) handleWhisper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req whisperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ok := s.orch.Whisper(req.PeerID, []byte(req.Content), req.Intent)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(whisperResponse{Delivered: ok})
}

type resonateRequest struct {
	Intent   string  `json:"intent"`
	Strength float64 `json:"strength"`
}

type resonateResponse struct {
	PeersAccepted int `json:"peers_accepted"`
}

func (s *Server) handleResonate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resonateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	accepted := s.orch.Resonate(req.Intent, req.Strength)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resonateResponse{PeersAccepted: accepted})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.orch.GetStats())
}
