package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tablebook/internal/config"
	"tablebook/internal/domain"
)

// HTTPServer exposes the JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	catalog  domain.CatalogService
	router   chi.Router
	server   *http.Server
	auth     *HTTPAuth
	limiter  *RateLimiter
	health   func(context.Context) error
	metrics  bool
	log      zerolog.Logger
}

type HTTPOption func(*HTTPServer)

// WithHealthCheck makes /healthz report the result of fn.
func WithHealthCheck(fn func(context.Context) error) HTTPOption {
	return func(s *HTTPServer) { s.health = fn }
}

// WithMetrics mounts the Prometheus handler at /metrics.
func WithMetrics() HTTPOption {
	return func(s *HTTPServer) { s.metrics = true }
}

// WithRateLimiter shares a limiter with the gRPC surface.
func WithRateLimiter(l *RateLimiter) HTTPOption {
	return func(s *HTTPServer) { s.limiter = l }
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, catalog domain.CatalogService, logger *zerolog.Logger, opts ...HTTPOption) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		catalog:  catalog,
		log:      zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.auth = NewHTTPAuth(cfg, srv.limiter)
	srv.router = srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID, accessLog(s.log))

	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/restaurants/{restaurantID}", func(r chi.Router) {
			r.With(s.auth.Require(permReadAvailability)).Get("/availability", s.handleAvailability)
			r.With(s.auth.Require(permReadAvailability)).Get("/tables", s.handleListTables)
			r.With(s.auth.Require(permWriteBookings)).Post("/bookings", s.handleCreateBooking)
		})
		r.Route("/bookings/{bookingID}", func(r chi.Router) {
			r.With(s.auth.Require(permReadAvailability)).Get("/", s.handleGetBooking)
			r.With(s.auth.Require(permWriteBookings)).Patch("/status", s.handleUpdateStatus)
		})
		r.Route("/tables/{tableID}", func(r chi.Router) {
			r.With(s.auth.Require(permReadAvailability)).Get("/schedule", s.handleTableSchedule)
			r.With(s.auth.Require(permWriteTables)).Patch("/", s.handleUpdateTable)
		})
	})
	return r
}

// Handler exposes the router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
