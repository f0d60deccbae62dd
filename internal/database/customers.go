package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tablebook/internal/models"
)

// upsertCustomerTx creates or refreshes the customer by phone and counts the
// booking. Empty name/email never overwrite known values.
func upsertCustomerTx(ctx context.Context, tx *sql.Tx, c *models.Customer) error {
	now := time.Now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO customers (phone, name, email, notes, total_bookings, no_shows, created_at, updated_at)
		VALUES (?, ?, ?, '', 1, 0, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE customers.name END,
			email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE customers.email END,
			total_bookings = customers.total_bookings + 1,
			updated_at = excluded.updated_at`,
		c.Phone, c.Name, c.Email, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT id, name, email, notes, total_bookings, no_shows, created_at, updated_at FROM customers WHERE phone = ?`,
		c.Phone,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Notes, &c.TotalBookings, &c.NoShows, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to read customer: %w", err)
	}
	return nil
}

func (db *DB) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	c := &models.Customer{}
	err := db.QueryRowContext(ctx,
		`SELECT id, phone, name, email, notes, total_bookings, no_shows, created_at, updated_at FROM customers WHERE phone = ?`,
		phone,
	).Scan(&c.ID, &c.Phone, &c.Name, &c.Email, &c.Notes, &c.TotalBookings, &c.NoShows, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "customer", phone)
	}
	return c, nil
}
