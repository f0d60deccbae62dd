package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/models"
	"tablebook/internal/scheduling"
)

const tableColumns = `id, restaurant_id, table_number, capacity, location, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTable(row rowScanner) (*models.Table, error) {
	t := &models.Table{}
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Capacity, &t.Location, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (db *DB) queryTables(ctx context.Context, query string, args ...interface{}) ([]*models.Table, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}
	scheduling.SortTables(tables)
	return tables, nil
}

// CandidateTables always reads the current catalog state; nothing is cached.
func (db *DB) CandidateTables(ctx context.Context, restaurantID int64, minCapacity int) ([]*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM restaurant_tables
			WHERE restaurant_id = ? AND is_active = 1 AND capacity >= ?
			ORDER BY capacity, LENGTH(table_number), table_number`
	return db.queryTables(ctx, query, restaurantID, minCapacity)
}

func (db *DB) ListTables(ctx context.Context, restaurantID int64) ([]*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM restaurant_tables
			WHERE restaurant_id = ?
			ORDER BY capacity, LENGTH(table_number), table_number`
	return db.queryTables(ctx, query, restaurantID)
}

func (db *DB) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE id = ?`
	t, err := scanTable(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "table", id)
	}
	return t, nil
}

func (db *DB) GetTableByNumber(ctx context.Context, restaurantID int64, number string) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE restaurant_id = ? AND table_number = ?`
	t, err := scanTable(db.QueryRowContext(ctx, query, restaurantID, number))
	if err != nil {
		return nil, notFound(err, "table", number)
	}
	return t, nil
}

func (db *DB) CreateTable(ctx context.Context, t *models.Table) error {
	if t.Capacity <= 0 {
		return domain.InvalidRequestf("table %s capacity must be positive", t.Number)
	}
	query := `INSERT INTO restaurant_tables (restaurant_id, table_number, capacity, location, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, t.RestaurantID, t.Number, t.Capacity, t.Location, t.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// SetTableActive toggles a table. Existing bookings on it stay valid.
func (db *DB) SetTableActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE restaurant_tables SET is_active = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, active, time.Now(), id)
	return checkTableUpdate(result, err, id)
}

// SetTableCapacity changes capacity for future decisions only.
func (db *DB) SetTableCapacity(ctx context.Context, id int64, capacity int) error {
	if capacity <= 0 {
		return domain.InvalidRequestf("capacity must be positive, got %d", capacity)
	}
	query := `UPDATE restaurant_tables SET capacity = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, capacity, time.Now(), id)
	return checkTableUpdate(result, err, id)
}

func checkTableUpdate(result sql.Result, err error, id int64) error {
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("table %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
