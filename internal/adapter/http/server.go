// Package http serves the health, readiness, status and metrics endpoints of
// the ingester in scheduled mode.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReportSource returns the most recent run report, or nil before the first run.
type ReportSource interface {
	LastReport() *pipeline.Report
}

// Server exposes /healthz, /readyz, /status and /metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server. Readiness follows the first completed
// ingest run.
func NewServer(addr string, ready ReadinessChecker, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /status", handleStatus(reports))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type parameterStatus struct {
	Parameter string `json:"parameter"`
	Target    string `json:"target"`
	State     string `json:"state"`
	FailedIn  string `json:"failed_in,omitempty"`
	Bands     int    `json:"bands"`
	Manifest  string `json:"manifest,omitempty"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration"`
}

type runStatus struct {
	Started    time.Time         `json:"started"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Parameters []parameterStatus `json:"parameters"`
}

func handleStatus(reports ReportSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := reports.LastReport()
		if report == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "no run completed"})
			return
		}
		writeJSON(w, http.StatusOK, toRunStatus(*report))
	}
}

func toRunStatus(r pipeline.Report) runStatus {
	out := runStatus{
		Started:    r.Started,
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		Parameters: make([]parameterStatus, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		ps := parameterStatus{
			Parameter: o.Parameter,
			Target:    o.Target.String(),
			State:     o.State.String(),
			Bands:     len(o.Bands),
			Manifest:  o.Manifest.URL,
			Duration:  o.Duration.String(),
		}
		if o.Err != nil {
			ps.FailedIn = o.FailedIn.String()
			ps.Error = o.Err.Error()
		}
		out.Parameters = append(out.Parameters, ps)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
