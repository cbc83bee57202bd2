// Package http exposes the gateway's REST API and the static heatmap frontend.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/oceanvis/llc4320-gateway/internal/config"
	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
	"github.com/oceanvis/llc4320-gateway/internal/service"
)

// DataAPI is the service surface the handlers need.
type DataAPI interface {
	Metadata(ctx context.Context, field string) (*service.Metadata, error)
	Slice(ctx context.Context, q domain.SliceQuery) (*service.SliceResult, error)
	Timestep(ctx context.Context, q domain.TimestepQuery) (*service.TimestepResult, error)
	Flow(ctx context.Context, q domain.SliceQuery) (*service.FlowResult, error)
	Coordinates(ctx context.Context, q service.CoordinateQuery) (*service.CoordinateResult, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the data API, health endpoints, metrics, and the frontend.
type Server struct {
	httpServer     *http.Server
	api            DataAPI
	defaultQuality int
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewServer builds the route table and wraps it with request-ID, logging,
// metrics, and CORS middleware.
func NewServer(cfg *config.Config, api DataAPI, logger *slog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		api:            api,
		defaultQuality: cfg.DefaultQuality,
		logger:         logger,
		metrics:        metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/metadata", s.handleMetadata)
	mux.HandleFunc("GET /api/data/slice", s.handleSlice)
	mux.HandleFunc("GET /api/data/timestep", s.handleTimestep)
	mux.HandleFunc("GET /api/data/flow", s.handleFlow)
	mux.HandleFunc("GET /api/coordinates", s.handleCoordinates)
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /", http.FileServer(http.Dir(cfg.FrontendDir)))

	handler := s.withRequestID(s.withLogging(s.withMetrics(mux)))
	handler = cors.New(cors.Options{AllowedOrigins: cfg.CORSAllowedOrigins}).Handler(handler)

	s.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
		// Large low-quality windows can take minutes to assemble upstream,
		// so the write timeout is far looser than the read timeout.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

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
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "LLC4320 Data API"})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.api.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}

// writeError maps validation failures to 400 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrBadParameter) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
