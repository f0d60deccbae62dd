package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/config"
	"tablebook/internal/domain"
	"tablebook/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "app.db"),
		},
		Outbox: config.OutboxConfig{Enabled: true},
		Restaurants: []models.Restaurant{{
			ID: 1, Name: "Bistro", OpeningTime: "11:00", ClosingTime: "23:00",
			Tables: []models.Table{{Number: "1", Capacity: 2}, {Number: "2", Capacity: 4}},
		}},
	}
}

func TestNew_SQLiteWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Address = mr.Addr()
	logger := zerolog.Nop()
	ctx := context.Background()

	a, err := New(ctx, cfg, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.SQLite)
	require.NotNil(t, a.Redis)
	require.NoError(t, a.Ping(ctx))

	tables, err := a.Catalog.ListTables(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, tables, 2)

	booking, err := a.Bookings.CreateBooking(ctx, domain.BookingRequest{
		RestaurantID:  1,
		Date:          time.Now().UTC().AddDate(0, 0, 2).Format(models.DateLayout),
		Time:          "19:00",
		PartySize:     2,
		CustomerPhone: "+15550100",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", booking.TableNumber)

	pending, err := a.Outbox.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, booking.ID, pending[0].BookingID)
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Outbox.Enabled = false
	logger := zerolog.Nop()

	a, err := New(context.Background(), cfg, &logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	pending, err := a.Outbox.GetPendingOutboxTasks(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestNew_BadRestaurantConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Restaurants[0].ClosingTime = "10:00"
	logger := zerolog.Nop()

	_, err := New(context.Background(), cfg, &logger)
	assert.Error(t, err)
}

func TestApp_CloseTwice(t *testing.T) {
	logger := zerolog.Nop()
	a, err := New(context.Background(), testConfig(t), &logger)
	require.NoError(t, err)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	assert.Error(t, (&App{}).Ping(context.Background()))
}
