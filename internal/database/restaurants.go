package database

import (
	"context"
	"fmt"
	"time"

	"tablebook/internal/models"
)

const restaurantColumns = `id, name, opening_time, closing_time, default_duration_minutes,
	max_party_size, initial_status, timezone, created_at, updated_at`

func (db *DB) UpsertRestaurant(ctx context.Context, r *models.Restaurant) error {
	query := `INSERT INTO restaurants (` + restaurantColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				opening_time = excluded.opening_time,
				closing_time = excluded.closing_time,
				default_duration_minutes = excluded.default_duration_minutes,
				max_party_size = excluded.max_party_size,
				initial_status = excluded.initial_status,
				timezone = excluded.timezone,
				updated_at = excluded.updated_at`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Name, r.OpeningTime, r.ClosingTime, r.DefaultDurationMinutes,
		r.MaxPartySize, r.InitialStatus, r.Timezone, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert restaurant: %w", err)
	}
	r.UpdatedAt = now
	return nil
}

func (db *DB) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = ?`
	var r models.Restaurant
	err := db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.OpeningTime, &r.ClosingTime, &r.DefaultDurationMinutes,
		&r.MaxPartySize, &r.InitialStatus, &r.Timezone, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "restaurant", id)
	}
	return &r, nil
}

func (db *DB) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*models.Restaurant
	for rows.Next() {
		r := &models.Restaurant{}
		if err := rows.Scan(
			&r.ID, &r.Name, &r.OpeningTime, &r.ClosingTime, &r.DefaultDurationMinutes,
			&r.MaxPartySize, &r.InitialStatus, &r.Timezone, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}
