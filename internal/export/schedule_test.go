package export

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/models"
	"tablebook/internal/repository"
	"tablebook/internal/service"
)

func TestScheduleExporter_Export(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	day := time.Now().UTC().AddDate(0, 0, 1).Format(models.DateLayout)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "export.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	catalog := service.NewCatalogService(db, bus, &logger)
	require.NoError(t, catalog.SyncFromConfig(ctx, []models.Restaurant{{
		ID: 7, Name: "Harbor", OpeningTime: "11:00", ClosingTime: "23:00",
		Tables: []models.Table{{Number: "1", Capacity: 2}, {Number: "2", Capacity: 4}},
	}}))
	bookings := service.NewBookingService(db, catalog, repository.NewMemorySlotLocker(), bus, config.SchedulerConfig{}, &logger)

	_, err = bookings.CreateBooking(ctx, domain.BookingRequest{
		RestaurantID: 7, Date: day, Time: "19:00", PartySize: 4, CustomerPhone: "+1", CustomerName: "Ada",
	})
	require.NoError(t, err)
	_, err = bookings.CreateBooking(ctx, domain.BookingRequest{
		RestaurantID: 7, Date: day, Time: "12:00", PartySize: 2, Duration: 60, CustomerPhone: "+2",
	})
	require.NoError(t, err)

	exporter := NewScheduleExporter(catalog, bookings, filepath.Join(t.TempDir(), "out"), &logger)
	path, err := exporter.Export(ctx, 7, day)
	require.NoError(t, err)
	assert.Equal(t, "schedule_7_"+day+".xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(gridSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor: "+day, title)

	rows, err := f.GetRows(gridSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, "11:00", rows[1][1])
	assert.Equal(t, "22:30", rows[1][len(rows[1])-1])

	fourTop := gridRow(t, rows, "#2 (4)")
	assert.Equal(t, "Ada (4)", fourTop[slotColumn("19:00")])
	for _, clock := range []string{"19:30", "20:00"} {
		idx := slotColumn(clock)
		if idx < len(fourTop) {
			assert.Empty(t, fourTop[idx], clock)
		}
	}

	twoTop := gridRow(t, rows, "#1 (2)")
	assert.True(t, strings.HasSuffix(twoTop[slotColumn("12:00")], "(2)"))

	list, err := f.GetRows(bookingsSheet)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Booking", "Table", "Start", "End", "Party", "Status", "Customer"}, list[0])
	assert.Equal(t, "12:00", list[1][2])
	assert.Equal(t, "20:30", list[2][3])
	assert.Equal(t, "Ada", list[2][6])
}

func TestScheduleExporter_UnknownRestaurant(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "export.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog := service.NewCatalogService(db, events.NewEventBus(), &logger)
	bookings := service.NewBookingService(db, catalog, nil, nil, config.SchedulerConfig{}, &logger)

	_, err = NewScheduleExporter(catalog, bookings, t.TempDir(), &logger).Export(context.Background(), 99, "2030-01-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuildWorkbook_InvalidHours(t *testing.T) {
	_, err := buildWorkbook(&models.Restaurant{ID: 1, OpeningTime: "23:00", ClosingTime: "11:00"}, nil, "2030-01-01", nil)
	assert.Error(t, err)
}

func gridRow(t *testing.T, rows [][]string, label string) []string {
	t.Helper()
	for _, r := range rows {
		if len(r) > 0 && r[0] == label {
			return r
		}
	}
	t.Fatalf("row %q not found", label)
	return nil
}

// slotColumn maps a clock time to its zero-based column in a grid opening
// at 11:00.
func slotColumn(clock string) int {
	minute, _ := models.ParseClock(clock)
	return (minute-11*60)/slotMinutes + 1
}
