package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/models"
	"tablebook/internal/repository"
	"tablebook/internal/service"
)

const (
	writerKey = "writer-key"
	readerKey = "reader-key"
	extra     = "s3cret"
)

// bookingDay is tomorrow, so every evening slot is inside the horizon.
var bookingDay = time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

type testAPI struct {
	db       *database.DB
	bookings *service.BookingService
	catalog  *service.CatalogService
	cfg      config.APIConfig
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		GRPC:    config.APIGRPCConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: writerKey, Extra: extra, Name: "host-stand"},
				{Key: readerKey, Extra: extra, Name: "widget", Permissions: []string{permReadAvailability}},
			},
		},
	}
}

// newTestAPI wires real services over SQLite with one restaurant holding
// tables #1 (2 seats), #2 (4 seats) and #3 (4 seats).
func newTestAPI(t *testing.T, tables ...models.Table) *testAPI {
	t.Helper()
	if len(tables) == 0 {
		tables = []models.Table{
			{Number: "1", Capacity: 2},
			{Number: "2", Capacity: 4},
			{Number: "3", Capacity: 4},
		}
	}

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	catalog := service.NewCatalogService(db, bus, &logger)
	require.NoError(t, catalog.SyncFromConfig(context.Background(), []models.Restaurant{{
		ID:          1,
		Name:        "Bistro",
		OpeningTime: "11:00",
		ClosingTime: "23:00",
		Tables:      tables,
	}}))
	bookings := service.NewBookingService(db, catalog, repository.NewMemorySlotLocker(), bus, config.SchedulerConfig{}, &logger)

	return &testAPI{db: db, bookings: bookings, catalog: catalog, cfg: testAPIConfig()}
}

func (a *testAPI) httpHandler(opts ...HTTPOption) http.Handler {
	return NewHTTPServer(a.cfg, a.bookings, a.catalog, nil, opts...).Handler()
}

func (a *testAPI) tableID(t *testing.T, number string) int64 {
	t.Helper()
	table, err := a.db.GetTableByNumber(context.Background(), 1, number)
	require.NoError(t, err)
	return table.ID
}

func doJSON(t *testing.T, h http.Handler, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(apiKeyHeaderDefault, apiKey)
		req.Header.Set(apiExtraHeaderDefault, extra)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bookingBody(clock string, party int, phone string) map[string]any {
	return map[string]any{
		"date":             bookingDay,
		"time":             clock,
		"party_size":       party,
		"duration_minutes": 90,
		"customer_phone":   phone,
	}
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
