// Package api serves the HTTP surface of the telemetry core: reading
// submission, meter queries, derived analytics artifacts and operational
// controls.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services"
)

// Server hosts the HTTP API in front of the service manager.
type Server struct {
	manager    *services.Manager
	httpServer *http.Server
}

// NewServer builds the API server on the given listen address.
func NewServer(addr string, manager *services.Manager) *Server {
	s := &Server{manager: manager}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router assembles the route table with recovery and compression middleware.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/readings", s.handleSubmitReading).Methods(http.MethodPost)
	v1.HandleFunc("/meters", s.handleListMeters).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}", s.handleGetMeter).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/reading", s.handleCurrentReading).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/readings", s.handleReadings).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/datapoints", s.handleDataPoints).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/patterns", s.handlePatterns).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/trends", s.handleTrends).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/benchmarks", s.handleBenchmarks).Methods(http.MethodGet)
	v1.HandleFunc("/meters/{id}/insights", s.handleInsights).Methods(http.MethodGet)
	v1.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	v1.HandleFunc("/connectivity", s.handleConnectivity).Methods(http.MethodPost)
	v1.HandleFunc("/analytics/run", s.handleRunAnalytics).Methods(http.MethodPost)

	return handlers.RecoveryHandler()(handlers.CompressHandler(r))
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
