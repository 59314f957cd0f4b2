// Package server exposes the assistant over HTTP: a request endpoint,
// a WebSocket event stream, and runtime metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/assistant"
	"github.com/njmorgan/loom/internal/bus"
	"github.com/njmorgan/loom/internal/engine"
	"github.com/njmorgan/loom/internal/tools"
)

const maxRequestBody = 1 << 20 // 1MB

// Asker is the request-processing boundary the server sits on.
type Asker interface {
	Ask(ctx context.Context, request string) (*assistant.Response, error)
}

// Server serves the HTTP API.
type Server struct {
	asker       Asker
	events      *bus.Bus
	engineStats func() engine.StatsSnapshot
	toolStats   func() tools.ExecutorStats

	httpServer *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithEngineStats wires the coordinator's stats into /api/metrics.
func WithEngineStats(fn func() engine.StatsSnapshot) Option {
	return func(s *Server) { s.engineStats = fn }
}

// WithToolStats wires the tool executor's stats into /api/metrics.
func WithToolStats(fn func() tools.ExecutorStats) Option {
	return func(s *Server) { s.toolStats = fn }
}

// New creates a Server. events may be nil, which disables /api/events.
func New(asker Asker, events *bus.Bus, opts ...Option) *Server {
	s := &Server{asker: asker, events: events}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	return mux
}

// Start runs the server until ctx is cancelled, then drains with a
// short shutdown grace period.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Long write timeout: a plan with retries can run minutes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

type askRequest struct {
	Request string `json:"request"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Request == "" {
		writeError(w, http.StatusBadRequest, "request cannot be empty")
		return
	}

	resp, err := s.asker.Ask(r.Context(), req.Request)
	if err != nil {
		log.Error().Err(err).Msg("ask failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type metricsResponse struct {
	Engine engine.StatsSnapshot `json:"engine"`
	Tools  toolMetrics          `json:"tools"`
}

type toolMetrics struct {
	TotalExecutions int64   `json:"total_executions"`
	SuccessCount    int64   `json:"success_count"`
	FailureCount    int64   `json:"failure_count"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDurationMs   int64   `json:"avg_duration_ms"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var resp metricsResponse
	if s.engineStats != nil {
		resp.Engine = s.engineStats()
	}
	if s.toolStats != nil {
		st := s.toolStats()
		resp.Tools = toolMetrics{
			TotalExecutions: st.TotalExecutions,
			SuccessCount:    st.SuccessCount,
			FailureCount:    st.FailureCount,
			SuccessRate:     st.SuccessRate(),
			AvgDurationMs:   st.AvgDuration().Milliseconds(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
