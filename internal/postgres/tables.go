package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"tablebook/internal/domain"
	"tablebook/internal/models"
	"tablebook/internal/scheduling"
)

const tableColumns = `id, restaurant_id, table_number, capacity, location, is_active, created_at, updated_at`

type pgxRow interface {
	Scan(dest ...any) error
}

func scanTable(row pgxRow) (*models.Table, error) {
	t := &models.Table{}
	if err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Capacity, &t.Location, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) queryTables(ctx context.Context, query string, args ...any) ([]*models.Table, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) CandidateTables(ctx context.Context, restaurantID int64, minCapacity int) ([]*models.Table, error) {
	return s.queryTables(ctx, `SELECT `+tableColumns+` FROM restaurant_tables
		WHERE restaurant_id = $1 AND is_active AND capacity >= $2
		ORDER BY capacity, LENGTH(table_number), table_number`, restaurantID, minCapacity)
}

func (s *Store) ListTables(ctx context.Context, restaurantID int64) ([]*models.Table, error) {
	return s.queryTables(ctx, `SELECT `+tableColumns+` FROM restaurant_tables
		WHERE restaurant_id = $1
		ORDER BY capacity, LENGTH(table_number), table_number`, restaurantID)
}

func (s *Store) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	t, err := scanTable(s.pool.QueryRow(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "table", id)
	}
	return t, nil
}

func (s *Store) GetTableByNumber(ctx context.Context, restaurantID int64, number string) (*models.Table, error) {
	t, err := scanTable(s.pool.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM restaurant_tables WHERE restaurant_id = $1 AND table_number = $2`,
		restaurantID, number))
	if err != nil {
		return nil, notFound(err, "table", number)
	}
	return t, nil
}

func (s *Store) CreateTable(ctx context.Context, t *models.Table) error {
	if t.Capacity <= 0 {
		return domain.InvalidRequestf("table %s capacity must be positive", t.Number)
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO restaurant_tables (restaurant_id, table_number, capacity, location, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		t.RestaurantID, t.Number, t.Capacity, t.Location, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", mapWriteError(err))
	}
	return nil
}

func (s *Store) SetTableActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE restaurant_tables SET is_active = $1, updated_at = now() WHERE id = $2`, active, id)
	return checkTableUpdate(tag, err, id)
}

func (s *Store) SetTableCapacity(ctx context.Context, id int64, capacity int) error {
	if capacity <= 0 {
		return domain.InvalidRequestf("capacity must be positive, got %d", capacity)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE restaurant_tables SET capacity = $1, updated_at = now() WHERE id = $2`, capacity, id)
	return checkTableUpdate(tag, err, id)
}

func checkTableUpdate(tag pgconn.CommandTag, err error, id int64) error {
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("table %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
