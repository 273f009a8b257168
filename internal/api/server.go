// Package api serves the admin HTTP surface: health, stats, and
// Prometheus metrics. It carries no chat protocol logic.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"parley/internal/metrics"
	"parley/pkg/database"
	"parley/pkg/types"
)

// StatsSource answers state snapshots. The multiplexer implements it; the
// indirection keeps this package testable with fakes.
type StatsSource interface {
	Stats(ctx context.Context) (types.Stats, error)
}

// Server handles the admin routes over a plain ServeMux.
type Server struct {
	log    *zap.Logger
	source StatsSource
	db     *sql.DB
	router *http.ServeMux
}

// NewServer wires the admin routes.
func NewServer(log *zap.Logger, source StatsSource, db *sql.DB) *Server {
	s := &Server{
		log:    log.Named("api"),
		source: source,
		db:     db,
		router: http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleHealth))))
	s.router.Handle("/stats", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStats))))
	// The Prometheus handler negotiates its own content type.
	s.router.Handle("/metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

type StatsResponse struct {
	Stats types.Stats `json:"stats"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.AdminRequest("/health")
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.checkDatabase(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
		s.log.Warn("health check failed", zap.Error(err))
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Database:  dbStatus,
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error("encode health response", zap.Error(err))
	}
}

// checkDatabase verifies the credential database is reachable and carries
// the expected table.
func (s *Server) checkDatabase(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return database.VerifySchema(s.db)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	metrics.AdminRequest("/stats")
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.source.Stats(ctx)
	if err != nil {
		s.log.Error("stats query failed", zap.Error(err))
		s.sendError(w, "Failed to collect stats", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(StatsResponse{Stats: stats}); err != nil {
		s.log.Error("encode stats response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	}); err != nil {
		s.log.Error("encode error response", zap.Error(err))
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
