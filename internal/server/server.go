package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/api"
	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/handlers"
	"github.com/ethpandaops/smart-pricing/internal/middleware"
	"github.com/ethpandaops/smart-pricing/internal/query"
	"github.com/ethpandaops/smart-pricing/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	logger     logrus.FieldLogger
}

// New creates a new HTTP server with all routes and middleware.
func New(
	logger logrus.FieldLogger,
	cfg config.ServerConfig,
	svc query.Service,
	layout store.Layout,
) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health(layout))
	logger.WithField("route", "GET /health").Info("Registered route")

	mux.Handle("GET /metrics", promhttp.Handler())
	logger.WithField("route", "GET /metrics").Info("Registered route")

	api.NewDataHandler(svc, logger).Register(mux)

	// Logging → Metrics → CORS → Recovery
	handler := middleware.Logging(logger)(mux)
	handler = middleware.Metrics()(handler)
	handler = middleware.CORS(api.Prefix, cfg.CORSOrigins)(handler)
	handler = middleware.Recovery(logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server (blocking call).
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	return s.httpServer.Shutdown(ctx)
}
