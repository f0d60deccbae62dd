package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const testDate = "2030-06-14"

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupFileDB(t *testing.T, path string) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedBistro creates restaurant 1 with tables #1 (2 seats), #2 and #3 (4 seats).
func seedBistro(t *testing.T, db *DB) []*models.Table {
	t.Helper()
	ctx := context.Background()
	r := &models.Restaurant{ID: 1, Name: "Bistro", OpeningTime: "11:00", ClosingTime: "23:00"}
	r.ApplyDefaults()
	require.NoError(t, db.UpsertRestaurant(ctx, r))

	var tables []*models.Table
	for _, seed := range []struct {
		number   string
		capacity int
	}{{"1", 2}, {"2", 4}, {"3", 4}} {
		tb := &models.Table{RestaurantID: 1, Number: seed.number, Capacity: seed.capacity, IsActive: true}
		require.NoError(t, db.CreateTable(ctx, tb))
		tables = append(tables, tb)
	}
	return tables
}

func newBooking(table *models.Table, start, duration, party int) *models.Booking {
	return &models.Booking{
		RestaurantID: table.RestaurantID,
		TableID:      table.ID,
		Date:         testDate,
		StartMinute:  start,
		EndMinute:    start + duration,
		PartySize:    party,
		Status:       models.StatusConfirmed,
	}
}

func guest(phone string) *models.Customer {
	return &models.Customer{Phone: phone, Name: "Guest " + phone}
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db := setupFileDB(t, dbPath)

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	seedBistro(t, db)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	tables, err := db.ListTables(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}

func TestNewDB_BadPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	logger := zerolog.Nop()

	_, err := NewDB(filepath.Join(blocker, "sub", "db.sqlite"), &logger)
	assert.Error(t, err)
}

func TestRestaurants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBistro(t, db)

	r, err := db.GetRestaurant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bistro", r.Name)
	assert.Equal(t, models.StatusConfirmed, r.InitialStatus)

	r.Name = "Bistro Deux"
	r.InitialStatus = models.StatusPending
	require.NoError(t, db.UpsertRestaurant(ctx, r))

	all, err := db.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Bistro Deux", all[0].Name)
	assert.Equal(t, models.StatusPending, all[0].InitialStatus)

	_, err = db.GetRestaurant(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCandidateTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tables := seedBistro(t, db)

	extra := &models.Table{RestaurantID: 1, Number: "10", Capacity: 4, IsActive: true}
	require.NoError(t, db.CreateTable(ctx, extra))

	candidates, err := db.CandidateTables(ctx, 1, 3)
	require.NoError(t, err)
	var numbers []string
	for _, c := range candidates {
		numbers = append(numbers, c.Number)
	}
	assert.Equal(t, []string{"2", "3", "10"}, numbers)

	t.Run("ReflectsDeactivation", func(t *testing.T) {
		require.NoError(t, db.SetTableActive(ctx, tables[1].ID, false))
		candidates, err := db.CandidateTables(ctx, 1, 3)
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
		assert.Equal(t, "3", candidates[0].Number)

		require.NoError(t, db.SetTableActive(ctx, tables[1].ID, true))
	})

	t.Run("ReflectsCapacityEdit", func(t *testing.T) {
		require.NoError(t, db.SetTableCapacity(ctx, tables[0].ID, 6))
		candidates, err := db.CandidateTables(ctx, 1, 5)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "1", candidates[0].Number)
	})

	t.Run("Errors", func(t *testing.T) {
		assert.ErrorIs(t, db.SetTableCapacity(ctx, tables[0].ID, 0), domain.ErrInvalidRequest)
		assert.ErrorIs(t, db.SetTableActive(ctx, 999, true), domain.ErrNotFound)
		_, err := db.GetTable(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		tb, err := db.GetTableByNumber(ctx, 1, "3")
		require.NoError(t, err)
		assert.Equal(t, tables[2].ID, tb.ID)
	})
}

func TestCreateBookingAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tables := seedBistro(t, db)
	four := tables[1]

	first := newBooking(four, 18*60, 90, 4)
	require.NoError(t, db.CreateBookingAtomic(ctx, first, guest("+100")))
	assert.NotZero(t, first.ID)
	assert.Equal(t, "2", first.TableNumber)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, 90, first.DurationMinutes)

	t.Run("OverlapConflicts", func(t *testing.T) {
		err := db.CreateBookingAtomic(ctx, newBooking(four, 19*60, 90, 2), guest("+101"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("AdjacentSucceeds", func(t *testing.T) {
		b := newBooking(four, 19*60+30, 90, 2)
		require.NoError(t, db.CreateBookingAtomic(ctx, b, guest("+102")))
	})

	t.Run("OtherDateSucceeds", func(t *testing.T) {
		b := newBooking(four, 18*60, 90, 2)
		b.Date = "2030-06-15"
		require.NoError(t, db.CreateBookingAtomic(ctx, b, guest("+103")))
	})

	t.Run("PartyExceedsCapacityConflicts", func(t *testing.T) {
		err := db.CreateBookingAtomic(ctx, newBooking(tables[0], 12*60, 60, 3), guest("+104"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("InactiveTableConflicts", func(t *testing.T) {
		require.NoError(t, db.SetTableActive(ctx, tables[2].ID, false))
		defer func() { require.NoError(t, db.SetTableActive(ctx, tables[2].ID, true)) }()
		err := db.CreateBookingAtomic(ctx, newBooking(tables[2], 12*60, 60, 2), guest("+105"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("UnknownTable", func(t *testing.T) {
		err := db.CreateBookingAtomic(ctx, newBooking(&models.Table{ID: 999, RestaurantID: 1}, 12*60, 60, 2), guest("+106"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CancelledFreesSlot", func(t *testing.T) {
		b := newBooking(tables[2], 13*60, 60, 2)
		require.NoError(t, db.CreateBookingAtomic(ctx, b, guest("+107")))
		require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusCancelled))

		again := newBooking(tables[2], 13*60, 60, 2)
		require.NoError(t, db.CreateBookingAtomic(ctx, again, guest("+108")))
	})

	active, err := db.ActiveBookingsForTable(ctx, four.ID, testDate)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 18*60, active[0].StartMinute)
	assert.False(t, active[0].Interval().Overlaps(active[1].Interval()))
}

func TestOverlapTriggerBackstop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tables := seedBistro(t, db)
	require.NoError(t, db.CreateBookingAtomic(ctx, newBooking(tables[1], 18*60, 90, 4), guest("+200")))

	// raw insert bypassing the application check
	now := time.Now()
	_, err := db.ExecContext(ctx, `INSERT INTO bookings (
			restaurant_id, table_id, table_number, customer_id, customer_phone, customer_name,
			booking_date, start_minute, end_minute, party_size, duration_minutes,
			status, special_requests, created_at, updated_at, version
		) VALUES (1, ?, '2', 1, '+200', '', ?, ?, ?, 2, 60, 'confirmed', '', ?, ?, 1)`,
		tables[1].ID, testDate, 19*60, 20*60, now, now)
	require.Error(t, err)
	assert.ErrorIs(t, mapWriteError(err), domain.ErrConflict)

	// cancelled rows never trip it
	_, err = db.ExecContext(ctx, `INSERT INTO bookings (
			restaurant_id, table_id, table_number, customer_id, customer_phone, customer_name,
			booking_date, start_minute, end_minute, party_size, duration_minutes,
			status, special_requests, created_at, updated_at, version
		) VALUES (1, ?, '2', 1, '+200', '', ?, ?, ?, 2, 60, 'cancelled', '', ?, ?, 1)`,
		tables[1].ID, testDate, 19*60, 20*60, now, now)
	assert.NoError(t, err)
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tables := seedBistro(t, db)

	b := newBooking(tables[1], 19*60, 90, 3)
	require.NoError(t, db.CreateBookingAtomic(ctx, b, guest("+300")))

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusSeated))

	err := db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 2, models.StatusNoShow))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, got.Status)
	assert.Equal(t, int64(3), got.Version)

	c, err := db.GetCustomerByPhone(ctx, "+300")
	require.NoError(t, err)
	assert.Equal(t, 1, c.NoShows)

	_, err = db.GetBooking(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tables := seedBistro(t, db)

	first := &models.Customer{Phone: "+400", Name: "Anna", Email: "anna@example.com"}
	require.NoError(t, db.CreateBookingAtomic(ctx, newBooking(tables[0], 12*60, 60, 2), first))

	second := &models.Customer{Phone: "+400"}
	require.NoError(t, db.CreateBookingAtomic(ctx, newBooking(tables[0], 14*60, 60, 2), second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Anna", second.Name, "empty name keeps the stored one")

	c, err := db.GetCustomerByPhone(ctx, "+400")
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalBookings)
	assert.Equal(t, "anna@example.com", c.Email)

	_, err = db.GetCustomerByPhone(ctx, "+999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestaurantBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tables := seedBistro(t, db)

	late := newBooking(tables[2], 20*60, 60, 2)
	early := newBooking(tables[0], 12*60, 60, 2)
	require.NoError(t, db.CreateBookingAtomic(ctx, late, guest("+500")))
	require.NoError(t, db.CreateBookingAtomic(ctx, early, guest("+501")))

	cancelled := newBooking(tables[1], 15*60, 60, 2)
	require.NoError(t, db.CreateBookingAtomic(ctx, cancelled, guest("+502")))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, cancelled.ID, 1, models.StatusCancelled))

	bookings, err := db.RestaurantBookings(ctx, 1, testDate)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, early.ID, bookings[0].ID)
	assert.Equal(t, late.ID, bookings[1].ID)
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	_, err = db.CandidateTables(ctx, 1, 2)
	assert.Error(t, err)
	_, err = db.ActiveBookingsForTable(ctx, 1, testDate)
	assert.Error(t, err)
	assert.Error(t, db.CreateBookingAtomic(ctx, &models.Booking{}, guest("+1")))
	assert.Error(t, db.CreateOutboxTask(ctx, &models.OutboxTask{}))
	_, err = db.ListRestaurants(ctx)
	assert.Error(t, err)
}
