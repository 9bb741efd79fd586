// Package http serves the latest derivation reports as a read-only JSON API
// plus a websocket stream of fresh cycles.
package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Bullnettraders/levelcast/internal/application/pipeline"
)

// ReportSource yields the most recent report per ticker.
type ReportSource interface {
	Latest(ticker string) *pipeline.Report
}

// Server is the read-only API server.
type Server struct {
	router *mux.Router
	server *http.Server
	source ReportSource
	hub    *Hub
}

// NewServer creates a server bound to addr.
func NewServer(addr string, source ReportSource) *Server {
	s := &Server{
		router: mux.NewRouter(),
		source: source,
		hub:    NewHub(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/levels/{ticker}", s.handleLevels).Methods("GET")
	api.HandleFunc("/darkpool/{ticker}", s.handleDarkPool).Methods("GET")
	api.HandleFunc("/memory/{ticker}", s.handleMemory).Methods("GET")
	api.HandleFunc("/accumulation/{ticker}", s.handleAccumulation).Methods("GET")
	api.HandleFunc("/stream", s.hub.HandleUpgrade)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Hub returns the websocket hub so the scheduler can broadcast fresh reports.
func (s *Server) Hub() *Hub { return s.hub }

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) *pipeline.Report {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	report := s.source.Latest(ticker)
	if report == nil {
		writeError(w, http.StatusNotFound, "no report for ticker "+ticker)
		return nil
	}
	return report
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	report := s.report(w, r)
	if report == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":       report.Ticker,
		"cycle_id":     report.CycleID,
		"generated_at": report.GeneratedAt,
		"levels":       report.Levels,
		"sources":      report.Sources,
		"degraded":     report.Degraded,
	})
}

func (s *Server) handleDarkPool(w http.ResponseWriter, r *http.Request) {
	report := s.report(w, r)
	if report == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":       report.Ticker,
		"generated_at": report.GeneratedAt,
		"zones":        report.Zones,
		"degraded":     report.Degraded,
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	report := s.report(w, r)
	if report == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":       report.Ticker,
		"generated_at": report.GeneratedAt,
		"levels":       report.Memory,
	})
}

func (s *Server) handleAccumulation(w http.ResponseWriter, r *http.Request) {
	report := s.report(w, r)
	if report == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":       report.Ticker,
		"generated_at": report.GeneratedAt,
		"signals":      report.Signals,
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

// Shutdown stops the server and disconnects stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the underlying writer so websocket upgrades still work
// through the logging middleware.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", rw.ResponseWriter)
	}
	return hj.Hijack()
}
