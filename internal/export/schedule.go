// Package export renders a restaurant's daily schedule as an xlsx workbook.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const (
	gridSheet     = "Schedule"
	bookingsSheet = "Bookings"

	// slotMinutes is the width of one grid column.
	slotMinutes = 30
)

type ScheduleExporter struct {
	catalog  domain.CatalogService
	bookings domain.BookingService
	dir      string
	logger   *zerolog.Logger
}

func NewScheduleExporter(catalog domain.CatalogService, bookings domain.BookingService, dir string, logger *zerolog.Logger) *ScheduleExporter {
	if dir == "" {
		dir = "exports"
	}
	return &ScheduleExporter{catalog: catalog, bookings: bookings, dir: dir, logger: logger}
}

// Export writes the schedule of one restaurant day and returns the file path.
func (e *ScheduleExporter) Export(ctx context.Context, restaurantID int64, date string) (string, error) {
	restaurant, err := e.catalog.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return "", err
	}
	tables, err := e.catalog.ListTables(ctx, restaurantID)
	if err != nil {
		return "", err
	}
	entries, err := e.bookings.RestaurantSchedule(ctx, restaurantID, date)
	if err != nil {
		return "", err
	}

	f, err := buildWorkbook(restaurant, tables, date, entries)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.dir, fmt.Sprintf("schedule_%d_%s.xlsx", restaurantID, date))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info().
		Str("file_path", path).
		Int64("restaurant_id", restaurantID).
		Int("bookings", len(entries)).
		Msg("Schedule exported")
	return path, nil
}

func buildWorkbook(restaurant *models.Restaurant, tables []*models.Table, date string, entries []models.ScheduleEntry) (*excelize.File, error) {
	open, close, err := restaurant.Hours()
	if err != nil {
		return nil, fmt.Errorf("restaurant %d: %w", restaurant.ID, err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(gridSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(bookingsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	slots := (close - open + slotMinutes - 1) / slotMinutes
	writeGrid(f, styles, restaurant, tables, date, entries, open, slots)
	writeBookingList(f, styles, entries)
	return f, nil
}

type sheetStyles struct {
	title, header, table, booked int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("failed to create style: %w", err)
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("failed to create style: %w", err)
	}
	if s.table, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return s, fmt.Errorf("failed to create style: %w", err)
	}
	if s.booked, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("failed to create style: %w", err)
	}
	return s, nil
}

// writeGrid lays tables out as rows and half-hour slots as columns. A
// booking's label goes into its first slot, the rest are only shaded.
func writeGrid(f *excelize.File, st sheetStyles, restaurant *models.Restaurant, tables []*models.Table, date string, entries []models.ScheduleEntry, open, slots int) {
	_ = f.SetCellValue(gridSheet, "A1", fmt.Sprintf("%s: %s", restaurant.Name, date))
	lastCol, _ := excelize.ColumnNumberToName(slots + 1)
	_ = f.MergeCell(gridSheet, "A1", lastCol+"1")
	_ = f.SetCellStyle(gridSheet, "A1", "A1", st.title)

	for i := 0; i < slots; i++ {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(gridSheet, cell, models.FormatClock(open+i*slotMinutes))
		_ = f.SetCellStyle(gridSheet, cell, cell, st.header)
	}

	rows := make(map[int64]int, len(tables))
	for i, t := range tables {
		row := i + 3
		rows[t.ID] = row
		label := fmt.Sprintf("#%s (%d)", t.Number, t.Capacity)
		if !t.IsActive {
			label += " inactive"
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(gridSheet, cell, label)
		_ = f.SetCellStyle(gridSheet, cell, cell, st.table)
	}

	for _, e := range entries {
		row, ok := rows[e.TableID]
		if !ok {
			continue
		}
		first := true
		for i := 0; i < slots; i++ {
			slot := models.NewInterval(open+i*slotMinutes, slotMinutes)
			if !slot.Overlaps(models.Interval{Start: e.StartMinute, End: e.EndMinute}) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+2, row)
			if first {
				_ = f.SetCellValue(gridSheet, cell, entryLabel(e))
				first = false
			}
			_ = f.SetCellStyle(gridSheet, cell, cell, st.booked)
		}
	}

	_ = f.SetColWidth(gridSheet, "A", "A", 18)
	if slots > 0 {
		_ = f.SetColWidth(gridSheet, "B", lastCol, 12)
	}
}

func entryLabel(e models.ScheduleEntry) string {
	if e.CustomerName != "" {
		return fmt.Sprintf("%s (%d)", e.CustomerName, e.PartySize)
	}
	return fmt.Sprintf("#%d (%d)", e.BookingID, e.PartySize)
}

func writeBookingList(f *excelize.File, st sheetStyles, entries []models.ScheduleEntry) {
	headers := []string{"Booking", "Table", "Start", "End", "Party", "Status", "Customer"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, st.header)
	}

	for i, e := range entries {
		row := i + 2
		values := []any{e.BookingID, e.TableNumber, e.Start, e.End, e.PartySize, string(e.Status), e.CustomerName}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}
	}
	_ = f.SetColWidth(bookingsSheet, "A", "G", 14)
}
