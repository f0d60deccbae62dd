package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tablebook/internal/api"
	"tablebook/internal/app"
	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/logging"
	"tablebook/internal/metrics"
	"tablebook/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	if err := startOutbox(ctx, a, &logger); err != nil {
		return err
	}
	startBackups(ctx, a, &logger)
	sharedMetrics := startMetrics(ctx, cfg, &logger)

	limiter := api.NewRateLimiter(cfg.API.RateLimit)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, a.Bookings, limiter, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	opts := []api.HTTPOption{api.WithRateLimiter(limiter), api.WithHealthCheck(a.Ping)}
	if sharedMetrics {
		opts = append(opts, api.WithMetrics())
	}
	httpServer := api.NewHTTPServer(cfg.API, a.Bookings, a.Catalog, &logger, opts...)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// startOutbox delivers recorded events to the configured broker. Recording
// into the outbox happens even without a broker so nothing is lost.
func startOutbox(ctx context.Context, a *app.App, logger *zerolog.Logger) error {
	cfg := a.Config
	if !cfg.Outbox.Enabled {
		return nil
	}

	broker, err := events.NewBroker(cfg.Events)
	if err != nil {
		logger.Error().Err(err).Str("broker", cfg.Events.Broker).Msg("connect broker")
		return err
	}
	if broker == nil {
		logger.Warn().Msg("outbox enabled without a broker; events stay pending")
		return nil
	}

	w := worker.NewOutboxWorker(a.Outbox, broker, a.Redis, worker.RetryPolicyFromConfig(cfg.Outbox),
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, logger)

	for _, eventType := range events.Types() {
		a.Bus.Subscribe(eventType, func(*events.Event) error {
			w.Wake()
			return nil
		})
	}

	go func() {
		w.Start(ctx)
		if err := broker.Close(); err != nil {
			logger.Warn().Err(err).Msg("close broker")
		}
	}()
	return nil
}

func startBackups(ctx context.Context, a *app.App, logger *zerolog.Logger) {
	if a.SQLite == nil || !a.Config.Backup.Enabled {
		return
	}
	go database.NewBackupService(a.SQLite, a.Config.Backup, logger).Start(ctx)
}

// startMetrics registers collectors and serves them. It reports true when
// the metrics port equals the HTTP API port and the API router must mount
// /metrics itself.
func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) bool {
	if !cfg.Monitoring.PrometheusEnabled {
		return false
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	if cfg.API.HTTP.Enabled && port == cfg.API.HTTP.Port {
		return true
	}
	go startMetricsServer(ctx, port, logger)
	return false
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
