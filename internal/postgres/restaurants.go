package postgres

import (
	"context"
	"fmt"

	"tablebook/internal/models"
)

const restaurantColumns = `id, name, opening_time, closing_time, default_duration_minutes,
	max_party_size, initial_status, timezone, created_at, updated_at`

func scanRestaurant(row pgxRow) (*models.Restaurant, error) {
	r := &models.Restaurant{}
	err := row.Scan(
		&r.ID, &r.Name, &r.OpeningTime, &r.ClosingTime, &r.DefaultDurationMinutes,
		&r.MaxPartySize, &r.InitialStatus, &r.Timezone, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) UpsertRestaurant(ctx context.Context, r *models.Restaurant) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO restaurants (id, name, opening_time, closing_time, default_duration_minutes,
			max_party_size, initial_status, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			opening_time = EXCLUDED.opening_time,
			closing_time = EXCLUDED.closing_time,
			default_duration_minutes = EXCLUDED.default_duration_minutes,
			max_party_size = EXCLUDED.max_party_size,
			initial_status = EXCLUDED.initial_status,
			timezone = EXCLUDED.timezone,
			updated_at = now()
		RETURNING created_at, updated_at`,
		r.ID, r.Name, r.OpeningTime, r.ClosingTime, r.DefaultDurationMinutes,
		r.MaxPartySize, string(r.InitialStatus), r.Timezone,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert restaurant: %w", err)
	}
	return nil
}

func (s *Store) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	r, err := scanRestaurant(s.pool.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "restaurant", id)
	}
	return r, nil
}

func (s *Store) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+restaurantColumns+` FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*models.Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}
