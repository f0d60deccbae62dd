package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/config"
	"tablebook/internal/models"
)

func TestHTTP_Availability(t *testing.T) {
	a := newTestAPI(t)
	h := a.httpHandler()

	path := fmt.Sprintf("/api/v1/restaurants/1/availability?date=%s&time=19:00&party_size=4&duration=90", bookingDay)
	rec := doJSON(t, h, http.MethodGet, path, readerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[models.Availability](t, rec)
	assert.True(t, got.Available)
	require.Len(t, got.Tables, 2)
	assert.Equal(t, "2", got.Tables[0].Number)
	assert.Equal(t, "3", got.Tables[1].Number)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	t.Run("InvalidInput", func(t *testing.T) {
		for _, q := range []string{
			"date=tomorrow&time=19:00&party_size=4",
			fmt.Sprintf("date=%s&time=19:00&party_size=0", bookingDay),
			fmt.Sprintf("date=%s&time=7pm&party_size=2", bookingDay),
			fmt.Sprintf("date=%s&time=19:00&party_size=two", bookingDay),
		} {
			rec := doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/availability?"+q, readerKey, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
			assert.Equal(t, "invalid_request", decode[errorResponse](t, rec).Code, q)
		}
	})

	t.Run("UnknownRestaurant", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/restaurants/42/availability?date=%s&time=19:00&party_size=2", bookingDay)
		rec := doJSON(t, h, http.MethodGet, path, readerKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHTTP_BookingLifecycle(t *testing.T) {
	a := newTestAPI(t)
	h := a.httpHandler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, bookingBody("19:00", 4, "+15550100"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Booking](t, rec)
	assert.Equal(t, "2", created.TableNumber)
	assert.Equal(t, 19*60, created.StartMinute)
	assert.Equal(t, 19*60+90, created.EndMinute)
	assert.Equal(t, models.StatusConfirmed, created.Status)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", created.ID), readerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.Booking](t, rec).ID)

	statusPath := fmt.Sprintf("/api/v1/bookings/%d/status", created.ID)
	rec = doJSON(t, h, http.MethodPatch, statusPath, writerKey, statusUpdateRequest{Status: "seated"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusSeated, decode[models.Booking](t, rec).Status)

	rec = doJSON(t, h, http.MethodPatch, statusPath, writerKey, statusUpdateRequest{Status: "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorResponse](t, rec).Code)

	rec = doJSON(t, h, http.MethodPatch, statusPath, writerKey, statusUpdateRequest{Status: "rescheduled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/bookings/999", readerKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/bookings/abc", readerKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_CreateBookingErrors(t *testing.T) {
	a := newTestAPI(t, models.Table{Number: "1", Capacity: 4})
	h := a.httpHandler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, bookingBody("19:00", 4, "+1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("UnavailableCarriesSuggestions", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, bookingBody("19:15", 4, "+2"))
		require.Equal(t, http.StatusConflict, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "unavailable", body.Code)
		require.NotEmpty(t, body.SuggestedTimes)
		for _, s := range body.SuggestedTimes {
			start, err := models.ParseClock(s.Time)
			require.NoError(t, err)
			assert.True(t, start+90 <= 19*60 || start >= 19*60+90, s.Time)
		}
	})

	t.Run("NoFit", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, bookingBody("13:00", 6, "+3"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "no_fit", decode[errorResponse](t, rec).Code)
	})

	t.Run("MissingPhone", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, bookingBody("13:00", 2, " "))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownField", func(t *testing.T) {
		body := bookingBody("13:00", 2, "+4")
		body["table_id"] = 1
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty body", decode[errorResponse](t, rec).Error)
	})
}

func TestHTTP_Tables(t *testing.T) {
	a := newTestAPI(t)
	h := a.httpHandler()
	tableTwo := a.tableID(t, "2")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/tables", readerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[tablesResponse](t, rec).Tables, 3)

	tablePath := fmt.Sprintf("/api/v1/tables/%d", tableTwo)
	rec = doJSON(t, h, http.MethodPatch, tablePath, writerKey, map[string]any{"capacity": 6, "is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Table](t, rec)
	assert.Equal(t, 6, updated.Capacity)
	assert.False(t, updated.IsActive)

	rec = doJSON(t, h, http.MethodPatch, tablePath, writerKey, map[string]any{"capacity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, tablePath, writerKey, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/tables/999", writerKey, map[string]any{"is_active": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The deactivated table no longer appears as a candidate.
	path := fmt.Sprintf("/api/v1/restaurants/1/availability?date=%s&time=19:00&party_size=4", bookingDay)
	rec = doJSON(t, h, http.MethodGet, path, readerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Availability](t, rec)
	require.Len(t, got.Tables, 1)
	assert.Equal(t, "3", got.Tables[0].Number)
}

func TestHTTP_TableSchedule(t *testing.T) {
	a := newTestAPI(t)
	h := a.httpHandler()

	for _, clock := range []string{"18:00", "20:00"} {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", writerKey, bookingBody(clock, 2, "+1"+clock))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	path := fmt.Sprintf("/api/v1/tables/%d/schedule?date=%s", a.tableID(t, "1"), bookingDay)
	rec := doJSON(t, h, http.MethodGet, path, readerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[TableScheduleResponse](t, rec)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "18:00", got.Entries[0].Start)
	assert.Equal(t, "21:30", got.Entries[1].End)

	empty := fmt.Sprintf("/api/v1/tables/%d/schedule?date=%s", a.tableID(t, "3"), bookingDay)
	rec = doJSON(t, h, http.MethodGet, empty, readerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"table_id":%d,"date":%q,"entries":[]}`, a.tableID(t, "3"), bookingDay), rec.Body.String())
}

func TestHTTP_Auth(t *testing.T) {
	a := newTestAPI(t)
	h := a.httpHandler()

	t.Run("MissingHeaders", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/tables", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/tables", "nope", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongExtra", func(t *testing.T) {
		req := newRequest(http.MethodGet, "/api/v1/restaurants/1/tables")
		req.Header.Set(apiKeyHeaderDefault, writerKey)
		req.Header.Set(apiExtraHeaderDefault, "wrong")
		assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
	})

	t.Run("ReaderCannotBook", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/restaurants/1/bookings", readerKey, bookingBody("19:00", 2, "+1"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("HealthIsPublic", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Disabled", func(t *testing.T) {
		a.cfg.Auth.Enabled = false
		rec := doJSON(t, a.httpHandler(), http.MethodGet, "/api/v1/restaurants/1/tables", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHTTP_RateLimit(t *testing.T) {
	a := newTestAPI(t)
	limiter := NewRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 1})
	h := a.httpHandler(WithRateLimiter(limiter))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/tables", readerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/tables", readerKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Budgets are per client.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/restaurants/1/tables", writerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_Health(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a.httpHandler(WithHealthCheck(a.db.PingContext)), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := func(context.Context) error { return errors.New("disk gone") }
	rec = doJSON(t, a.httpHandler(WithHealthCheck(failing)), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, a.httpHandler(WithMetrics()), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
