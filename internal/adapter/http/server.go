// Package http serves the read-only risk API alongside health, readiness,
// and metrics endpoints. The pipeline writes the processed CSV; this server
// only ever reads it.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// RiskSource provides the current exported risk records.
type RiskSource interface {
	Records(ctx context.Context) ([]domain.RiskRecord, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the risk API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	source     RiskSource
	logger     *slog.Logger
}

// NewServer wires the route table. The risk endpoints read through source on
// every request, so a pipeline run that replaces the processed file shows up
// without a restart.
func NewServer(addr string, source RiskSource, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/risk", s.handleRisk)
	mux.HandleFunc("GET /api/risk/top", s.handleRiskTop)

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

type riskResponse struct {
	Count   int                 `json:"count"`
	Records []domain.RiskRecord `json:"records"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	records, err := s.source.Records(r.Context())
	if err != nil {
		s.logger.Error("read risk records", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "risk data unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, riskResponse{Count: len(records), Records: records})
}

func (s *Server) handleRiskTop(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}

	records, err := s.source.Records(r.Context())
	if err != nil {
		s.logger.Error("read risk records", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "risk data unavailable"})
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RiskScore > records[j].RiskScore
	})
	if n < len(records) {
		records = records[:n]
	}
	writeJSON(w, http.StatusOK, riskResponse{Count: len(records), Records: records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
