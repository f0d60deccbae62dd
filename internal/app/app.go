// Package app assembles storage, locks, events and services from config.
// Both the API server and tablectl start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/postgres"
	"tablebook/internal/repository"
	"tablebook/internal/service"
)

type App struct {
	Config *config.Config
	Logger *zerolog.Logger

	Repo   domain.Repository
	Outbox domain.OutboxRepository
	// SQLite is nil when the postgres driver is configured.
	SQLite *database.DB
	Redis  *redis.Client

	Bus      *events.EventBus
	Catalog  *service.CatalogService
	Bookings *service.BookingService

	ping    func(context.Context) error
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	a.Redis = initRedis(ctx, cfg.Redis, logger)
	if a.Redis != nil {
		client := a.Redis
		a.closers = append(a.closers, func() error { return repository.Close(client) })
	}

	var locker domain.SlotLocker = repository.NewMemorySlotLocker()
	if a.Redis != nil {
		locker = repository.NewFailoverSlotLocker(repository.NewRedisSlotLocker(a.Redis), locker, logger)
	}

	a.Bus = events.NewEventBus()
	if cfg.Outbox.Enabled {
		events.RecordToOutbox(a.Bus, a.Outbox, logger)
	}

	a.Catalog = service.NewCatalogService(a.Repo, a.Bus, logger)
	if err := a.Catalog.SyncFromConfig(ctx, cfg.Restaurants); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("sync restaurants: %w", err)
	}
	a.Bookings = service.NewBookingService(a.Repo, a.Catalog, locker, a.Bus, cfg.Scheduler, logger)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, a.Config.Database.Postgres.DSN(), a.Logger)
		if err != nil {
			a.Logger.Error().Err(err).Str("host", a.Config.Database.Postgres.Host).Msg("init postgres")
			return err
		}
		a.Repo, a.Outbox, a.ping = store, store, store.Ping
		a.closers = append(a.closers, store.Close)
	default:
		db, err := database.NewDB(a.Config.Database.Path, a.Logger)
		if err != nil {
			a.Logger.Error().Err(err).Str("db_path", a.Config.Database.Path).Msg("init database")
			return err
		}
		a.Repo, a.Outbox, a.SQLite, a.ping = db, db, db, db.PingContext
		a.closers = append(a.closers, db.Close)
	}
	return nil
}

// initRedis returns nil when redis is not configured or unreachable; slot
// locks then stay in-process.
func initRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-process slot locks")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return client
}

// Ping checks the primary store.
func (a *App) Ping(ctx context.Context) error {
	if a.ping == nil {
		return errors.New("storage is not initialized")
	}
	return a.ping(ctx)
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
