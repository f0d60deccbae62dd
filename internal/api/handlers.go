package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error          string                  `json:"error"`
	Code           string                  `json:"code"`
	SuggestedTimes []models.SlotSuggestion `json:"suggested_times,omitempty"`
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

type tableUpdateRequest struct {
	IsActive *bool `json:"is_active"`
	Capacity *int  `json:"capacity"`
}

type tablesResponse struct {
	RestaurantID int64           `json:"restaurant_id"`
	Tables       []*models.Table `json:"tables"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := pathID(w, r, "restaurantID")
	if !ok {
		return
	}

	q := r.URL.Query()
	partySize, err := queryInt(q.Get("party_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "party_size must be an integer")
		return
	}
	duration, err := queryInt(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "duration must be an integer")
		return
	}

	result, err := s.bookings.CheckAvailability(r.Context(), domain.AvailabilityRequest{
		RestaurantID: restaurantID,
		Date:         q.Get("date"),
		Time:         q.Get("time"),
		PartySize:    partySize,
		Duration:     duration,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := pathID(w, r, "restaurantID")
	if !ok {
		return
	}

	var req domain.BookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.RestaurantID = restaurantID

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	var req statusUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := s.bookings.UpdateBookingStatus(r.Context(), id, models.BookingStatus(req.Status))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleTableSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")

	entries, err := s.bookings.TableSchedule(r.Context(), id, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.ScheduleEntry{}
	}
	writeJSON(w, http.StatusOK, TableScheduleResponse{TableID: id, Date: date, Entries: entries})
}

func (s *HTTPServer) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	var req tableUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsActive == nil && req.Capacity == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update: set is_active or capacity")
		return
	}

	var (
		table *models.Table
		err   error
	)
	if req.Capacity != nil {
		if table, err = s.catalog.SetTableCapacity(r.Context(), id, *req.Capacity); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}
	if req.IsActive != nil {
		if table, err = s.catalog.SetTableActive(r.Context(), id, *req.IsActive); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *HTTPServer) handleListTables(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := pathID(w, r, "restaurantID")
	if !ok {
		return
	}
	tables, err := s.catalog.ListTables(r.Context(), restaurantID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if tables == nil {
		tables = []*models.Table{}
	}
	writeJSON(w, http.StatusOK, tablesResponse{RestaurantID: restaurantID, Tables: tables})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("request failed")
		writeError(w, code, "internal", "internal error")
		return
	}
	writeJSON(w, code, errorResponse{
		Error:          err.Error(),
		Code:           errorCode(err),
		SuggestedTimes: suggestionsOf(err),
	})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid %s", param))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer parameter; empty means zero.
func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid json body"
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
