package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"tablebook/internal/domain"
)

// conflictMarker is raised by the overlap triggers.
const conflictMarker = "booking_conflict"

var (
	_ domain.Repository       = (*DB)(nil)
	_ domain.OutboxRepository = (*DB)(nil)
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger
	path   string
}

// NewDB opens the SQLite database and applies the schema. Transactions start
// with BEGIN IMMEDIATE so concurrent writers are serialized by SQLite itself.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every :memory: connection is a separate database
	if inMemory {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger, path: path}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func dsn(path string, inMemory bool) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	if !inMemory {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			opening_time TEXT NOT NULL,
			closing_time TEXT NOT NULL,
			default_duration_minutes INTEGER NOT NULL DEFAULT 90,
			max_party_size INTEGER NOT NULL DEFAULT 12,
			initial_status TEXT NOT NULL DEFAULT 'confirmed',
			timezone TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS restaurant_tables (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_id INTEGER NOT NULL REFERENCES restaurants(id),
			table_number TEXT NOT NULL,
			capacity INTEGER NOT NULL CHECK (capacity > 0),
			location TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (restaurant_id, table_number)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			phone TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			total_bookings INTEGER NOT NULL DEFAULT 0,
			no_shows INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_id INTEGER NOT NULL REFERENCES restaurants(id),
			table_id INTEGER NOT NULL REFERENCES restaurant_tables(id),
			table_number TEXT NOT NULL,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			customer_phone TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			booking_date TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			party_size INTEGER NOT NULL CHECK (party_size > 0),
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL,
			special_requests TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			CHECK (start_minute >= 0 AND end_minute > start_minute AND end_minute <= 1440)
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			booking_id INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			processed_at DATETIME,
			next_retry_at DATETIME
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tables_restaurant ON restaurant_tables(restaurant_id, is_active, capacity)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_table_date ON bookings(table_id, booking_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_restaurant_date ON bookings(restaurant_id, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,

		// Two active bookings on one table never overlap.
		`CREATE TRIGGER IF NOT EXISTS bookings_no_overlap_insert
		BEFORE INSERT ON bookings
		WHEN NEW.status NOT IN ('cancelled', 'no_show')
		BEGIN
			SELECT RAISE(ABORT, '` + conflictMarker + `')
			WHERE EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.table_id = NEW.table_id
				  AND b.booking_date = NEW.booking_date
				  AND b.status NOT IN ('cancelled', 'no_show')
				  AND b.start_minute < NEW.end_minute
				  AND NEW.start_minute < b.end_minute
			);
		END`,
		`CREATE TRIGGER IF NOT EXISTS bookings_no_overlap_update
		BEFORE UPDATE OF table_id, booking_date, start_minute, end_minute, status ON bookings
		WHEN NEW.status NOT IN ('cancelled', 'no_show')
		BEGIN
			SELECT RAISE(ABORT, '` + conflictMarker + `')
			WHERE EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.id <> NEW.id
				  AND b.table_id = NEW.table_id
				  AND b.booking_date = NEW.booking_date
				  AND b.status NOT IN ('cancelled', 'no_show')
				  AND b.start_minute < NEW.end_minute
				  AND NEW.start_minute < b.end_minute
			);
		END`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %q: %w", firstLine(query), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// mapWriteError turns trigger aborts into domain.ErrConflict.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint &&
		strings.Contains(sqliteErr.Error(), conflictMarker) {
		return domain.ErrConflict
	}
	if strings.Contains(err.Error(), conflictMarker) {
		return domain.ErrConflict
	}
	return err
}

func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
