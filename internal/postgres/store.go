// Package postgres is the PostgreSQL backend. Overlapping active bookings on
// one table are rejected by an exclusion constraint over the booked minutes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tablebook/internal/domain"
)

const (
	exclusionViolation = "23P01"
	uniqueViolation    = "23505"
	checkViolation     = "23514"
)

var (
	_ domain.Repository       = (*Store)(nil)
	_ domain.OutboxRepository = (*Store)(nil)
)

type Store struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// Open connects to PostgreSQL and applies the schema.
func Open(ctx context.Context, dsn string, logger *zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	logger.Info().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("Postgres store initialized")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS restaurants (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	opening_time TEXT NOT NULL,
	closing_time TEXT NOT NULL,
	default_duration_minutes INT NOT NULL DEFAULT 90,
	max_party_size INT NOT NULL DEFAULT 12,
	initial_status TEXT NOT NULL DEFAULT 'confirmed',
	timezone TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS restaurant_tables (
	id BIGSERIAL PRIMARY KEY,
	restaurant_id BIGINT NOT NULL REFERENCES restaurants(id),
	table_number TEXT NOT NULL,
	capacity INT NOT NULL CHECK (capacity > 0),
	location TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (restaurant_id, table_number)
);

CREATE TABLE IF NOT EXISTS customers (
	id BIGSERIAL PRIMARY KEY,
	phone TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	total_bookings INT NOT NULL DEFAULT 0,
	no_shows INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id BIGSERIAL PRIMARY KEY,
	restaurant_id BIGINT NOT NULL REFERENCES restaurants(id),
	table_id BIGINT NOT NULL REFERENCES restaurant_tables(id),
	table_number TEXT NOT NULL,
	customer_id BIGINT NOT NULL REFERENCES customers(id),
	customer_phone TEXT NOT NULL,
	customer_name TEXT NOT NULL DEFAULT '',
	booking_date TEXT NOT NULL,
	start_minute INT NOT NULL,
	end_minute INT NOT NULL,
	party_size INT NOT NULL CHECK (party_size > 0),
	duration_minutes INT NOT NULL,
	status TEXT NOT NULL,
	special_requests TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	version BIGINT NOT NULL DEFAULT 1,
	slot INT4RANGE GENERATED ALWAYS AS (int4range(start_minute, end_minute, '[)')) STORED,
	CHECK (start_minute >= 0 AND end_minute > start_minute AND end_minute <= 1440),
	CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
		table_id WITH =,
		booking_date WITH =,
		slot WITH &&
	) WHERE (status NOT IN ('cancelled', 'no_show'))
);

CREATE TABLE IF NOT EXISTS outbox (
	id BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	booking_id BIGINT NOT NULL DEFAULT 0,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INT NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ,
	next_retry_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tables_restaurant ON restaurant_tables(restaurant_id, is_active, capacity);
CREATE INDEX IF NOT EXISTS idx_bookings_restaurant_date ON bookings(restaurant_id, booking_date);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}

// mapWriteError turns constraint violations into domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case exclusionViolation:
		return domain.ErrConflict
	case uniqueViolation, checkViolation:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, pgErr.Message)
	}
	return err
}

func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
