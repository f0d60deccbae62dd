package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tablebook/internal/models"
)

func upsertCustomer(ctx context.Context, tx pgx.Tx, c *models.Customer) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO customers (phone, name, email, total_bookings)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (phone) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), customers.email),
			total_bookings = customers.total_bookings + 1,
			updated_at = now()
		RETURNING id, name, email, notes, total_bookings, no_shows, created_at, updated_at`,
		c.Phone, c.Name, c.Email,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Notes, &c.TotalBookings, &c.NoShows, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	c := &models.Customer{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, phone, name, email, notes, total_bookings, no_shows, created_at, updated_at FROM customers WHERE phone = $1`,
		phone,
	).Scan(&c.ID, &c.Phone, &c.Name, &c.Email, &c.Notes, &c.TotalBookings, &c.NoShows, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "customer", phone)
	}
	return c, nil
}
