package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const bookingColumns = `id, restaurant_id, table_id, table_number, customer_id, customer_phone,
	customer_name, booking_date, start_minute, end_minute, party_size, duration_minutes,
	status, special_requests, created_at, updated_at, version`

var inactiveStatuses = []string{string(models.StatusCancelled), string(models.StatusNoShow)}

func scanBooking(row pgxRow) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.RestaurantID, &b.TableID, &b.TableNumber, &b.CustomerID, &b.CustomerPhone,
		&b.CustomerName, &b.Date, &b.StartMinute, &b.EndMinute, &b.PartySize, &b.DurationMinutes,
		&b.Status, &b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (s *Store) ActiveBookingsForTable(ctx context.Context, tableID int64, date string) ([]*models.Booking, error) {
	return s.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE table_id = $1 AND booking_date = $2 AND status <> ALL($3)
		ORDER BY start_minute, id`, tableID, date, inactiveStatuses)
}

func (s *Store) RestaurantBookings(ctx context.Context, restaurantID int64, date string) ([]*models.Booking, error) {
	return s.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE restaurant_id = $1 AND booking_date = $2 AND status <> ALL($3)
		ORDER BY start_minute, table_id, id`, restaurantID, date, inactiveStatuses)
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

// CreateBookingAtomic locks the table row, re-checks it and inserts the
// booking. Concurrent inserts for the same slot that slip past the row lock
// still hit bookings_no_overlap and come back as domain.ErrConflict.
func (s *Store) CreateBookingAtomic(ctx context.Context, booking *models.Booking, customer *models.Customer) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		number   string
		capacity int
		active   bool
		ownerID  int64
	)
	err = tx.QueryRow(ctx,
		`SELECT table_number, capacity, is_active, restaurant_id FROM restaurant_tables WHERE id = $1 FOR UPDATE`,
		booking.TableID,
	).Scan(&number, &capacity, &active, &ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("table %d: %w", booking.TableID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to lock table: %w", err)
	}
	if ownerID != booking.RestaurantID {
		return fmt.Errorf("table %d does not belong to restaurant %d: %w", booking.TableID, booking.RestaurantID, domain.ErrNotFound)
	}
	if !active || capacity < booking.PartySize {
		return domain.ErrConflict
	}

	var overlapping bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE table_id = $1 AND booking_date = $2 AND status <> ALL($3)
			  AND start_minute < $4 AND $5 < end_minute
		)`,
		booking.TableID, booking.Date, inactiveStatuses, booking.EndMinute, booking.StartMinute,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlap: %w", err)
	}
	if overlapping {
		return domain.ErrConflict
	}

	if err := upsertCustomer(ctx, tx, customer); err != nil {
		return err
	}

	duration := booking.EndMinute - booking.StartMinute
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (
			restaurant_id, table_id, table_number, customer_id, customer_phone, customer_name,
			booking_date, start_minute, end_minute, party_size, duration_minutes,
			status, special_requests
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at, version`,
		booking.RestaurantID, booking.TableID, number, customer.ID, customer.Phone, customer.Name,
		booking.Date, booking.StartMinute, booking.EndMinute, booking.PartySize, duration,
		string(booking.Status), booking.SpecialRequests,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt, &booking.Version)
	if err != nil {
		if mapped := mapWriteError(err); errors.Is(mapped, domain.ErrConflict) {
			return mapped
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit booking: %w", mapWriteError(err))
	}

	booking.TableNumber = number
	booking.CustomerID = customer.ID
	booking.CustomerPhone = customer.Phone
	booking.CustomerName = customer.Name
	booking.DurationMinutes = duration
	return nil
}

func (s *Store) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $1, version = version + 1, updated_at = now() WHERE id = $2 AND version = $3`,
		string(status), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", mapWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}

	if status == models.StatusNoShow {
		_, err = tx.Exec(ctx, `
			UPDATE customers SET no_shows = no_shows + 1, updated_at = now()
			WHERE id = (SELECT customer_id FROM bookings WHERE id = $1)`, id)
		if err != nil {
			return fmt.Errorf("failed to count no-show: %w", err)
		}
	}

	return tx.Commit(ctx)
}
