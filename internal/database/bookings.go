package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const bookingColumns = `id, restaurant_id, table_id, table_number, customer_id, customer_phone,
	customer_name, booking_date, start_minute, end_minute, party_size, duration_minutes,
	status, special_requests, created_at, updated_at, version`

func scanBooking(row rowScanner) (*models.Booking, error) {
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

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
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

// ActiveBookingsForTable lists bookings that still occupy the table on date.
func (db *DB) ActiveBookingsForTable(ctx context.Context, tableID int64, date string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
			WHERE table_id = ? AND booking_date = ? AND status NOT IN (?, ?)
			ORDER BY start_minute, id`
	return db.queryBookings(ctx, query, tableID, date, models.StatusCancelled, models.StatusNoShow)
}

// RestaurantBookings lists active bookings of a restaurant for one day.
func (db *DB) RestaurantBookings(ctx context.Context, restaurantID int64, date string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
			WHERE restaurant_id = ? AND booking_date = ? AND status NOT IN (?, ?)
			ORDER BY start_minute, table_id, id`
	return db.queryBookings(ctx, query, restaurantID, date, models.StatusCancelled, models.StatusNoShow)
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

// CreateBookingAtomic re-validates the chosen table inside a BEGIN IMMEDIATE
// transaction and inserts the booking. A lost race yields domain.ErrConflict;
// the caller must re-run table selection instead of picking another table here.
func (db *DB) CreateBookingAtomic(ctx context.Context, booking *models.Booking, customer *models.Customer) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapWriteError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Table must still exist, be active and seat the party
	var (
		number   string
		capacity int
		active   bool
		ownerID  int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT table_number, capacity, is_active, restaurant_id FROM restaurant_tables WHERE id = ?`,
		booking.TableID,
	).Scan(&number, &capacity, &active, &ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("table %d: %w", booking.TableID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to read table in tx: %w", err)
	}
	if ownerID != booking.RestaurantID {
		return fmt.Errorf("table %d does not belong to restaurant %d: %w", booking.TableID, booking.RestaurantID, domain.ErrNotFound)
	}
	if !active || capacity < booking.PartySize {
		return domain.ErrConflict
	}

	// 2. No active booking may overlap the interval
	var overlapping int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		WHERE table_id = ? AND booking_date = ? AND status NOT IN (?, ?)
		  AND start_minute < ? AND ? < end_minute`,
		booking.TableID, booking.Date, models.StatusCancelled, models.StatusNoShow,
		booking.EndMinute, booking.StartMinute,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if overlapping > 0 {
		return domain.ErrConflict
	}

	// 3. Customer upsert by phone
	if err := upsertCustomerTx(ctx, tx, customer); err != nil {
		return err
	}

	// 4. Insert
	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (
			restaurant_id, table_id, table_number, customer_id, customer_phone, customer_name,
			booking_date, start_minute, end_minute, party_size, duration_minutes,
			status, special_requests, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		booking.RestaurantID, booking.TableID, number, customer.ID, customer.Phone, customer.Name,
		booking.Date, booking.StartMinute, booking.EndMinute, booking.PartySize,
		booking.EndMinute-booking.StartMinute, booking.Status, booking.SpecialRequests, now, now,
	)
	if err != nil {
		if mapped := mapWriteError(err); errors.Is(mapped, domain.ErrConflict) {
			return mapped
		}
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", mapWriteError(err))
	}

	booking.ID = id
	booking.TableNumber = number
	booking.CustomerID = customer.ID
	booking.CustomerPhone = customer.Phone
	booking.CustomerName = customer.Name
	booking.DurationMinutes = booking.EndMinute - booking.StartMinute
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBookingStatusWithVersion applies a status change only if nobody else
// changed the booking since it was read.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", mapWriteError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConcurrentModification
	}

	if status == models.StatusNoShow {
		_, err = tx.ExecContext(ctx,
			`UPDATE customers SET no_shows = no_shows + 1, updated_at = ?
			WHERE id = (SELECT customer_id FROM bookings WHERE id = ?)`,
			time.Now(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to count no-show: %w", err)
		}
	}

	return tx.Commit()
}
