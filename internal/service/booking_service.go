package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tablebook/internal/config"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/repository"
	"tablebook/internal/scheduling"
)

// maxAttempts bounds check-assign-write runs per booking request.
const maxAttempts = 2

// RestaurantLookup resolves restaurant policy (hours, limits, timezone).
type RestaurantLookup interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
}

type BookingService struct {
	repo        domain.Repository
	restaurants RestaurantLookup
	locker      domain.SlotLocker
	eventBus    domain.EventPublisher
	cfg         config.SchedulerConfig
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	restaurants RestaurantLookup,
	locker domain.SlotLocker,
	eventBus domain.EventPublisher,
	cfg config.SchedulerConfig,
	logger *zerolog.Logger,
) *BookingService {
	if restaurants == nil {
		restaurants = repo
	}
	if locker == nil {
		locker = repository.NewMemorySlotLocker()
	}
	if cfg.SuggestWindowMinutes <= 0 {
		cfg.SuggestWindowMinutes = models.DefaultSuggestWindowMinutes
	}
	if cfg.SuggestStepMinutes <= 0 {
		cfg.SuggestStepMinutes = models.DefaultSuggestStepMinutes
	}
	if cfg.SuggestConcurrency <= 0 {
		cfg.SuggestConcurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 3 * time.Second
	}
	if cfg.MaxBookingDays <= 0 {
		cfg.MaxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		repo:        repo,
		restaurants: restaurants,
		locker:      locker,
		eventBus:    eventBus,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// slotQuery is a validated request: the restaurant is known, the interval
// fits opening hours and the date lies inside the booking horizon.
type slotQuery struct {
	restaurant *models.Restaurant
	date       string
	slot       models.Interval
	partySize  int
	open       int
	close      int
}

// resolve validates a request. Everything it rejects is ErrInvalidRequest
// and no table or booking is read before it succeeds.
func (s *BookingService) resolve(ctx context.Context, restaurantID int64, date, clock string, partySize, duration int) (*slotQuery, error) {
	if partySize <= 0 {
		return nil, domain.InvalidRequestf("party_size must be positive, got %d", partySize)
	}
	if duration < 0 {
		return nil, domain.InvalidRequestf("duration must be positive, got %d", duration)
	}
	day, err := time.Parse(models.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return nil, domain.InvalidRequestf("date %q must be YYYY-MM-DD", date)
	}
	start, err := models.ParseClock(clock)
	if err != nil {
		return nil, domain.InvalidRequestf("%v", err)
	}

	restaurant, err := s.restaurants.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	restaurant.ApplyDefaults()
	open, close, err := restaurant.Hours()
	if err != nil {
		return nil, fmt.Errorf("restaurant %d has invalid hours: %w", restaurantID, err)
	}

	if restaurant.MaxPartySize > 0 && partySize > restaurant.MaxPartySize {
		return nil, domain.InvalidRequestf("party of %d exceeds the maximum of %d", partySize, restaurant.MaxPartySize)
	}
	if duration == 0 {
		duration = restaurant.DefaultDurationMinutes
	}
	slot := models.NewInterval(start, duration)
	if !slot.Within(open, close) {
		return nil, domain.InvalidRequestf("%s is outside opening hours %s-%s", slot, restaurant.OpeningTime, restaurant.ClosingTime)
	}

	if err := s.checkHorizon(restaurant, day, start); err != nil {
		return nil, err
	}

	return &slotQuery{
		restaurant: restaurant,
		date:       day.Format(models.DateLayout),
		slot:       slot,
		partySize:  partySize,
		open:       open,
		close:      close,
	}, nil
}

// checkHorizon rejects dates before today and beyond MaxBookingDays, both
// measured in the restaurant's timezone.
func (s *BookingService) checkHorizon(restaurant *models.Restaurant, day time.Time, start int) error {
	local := s.now().In(restaurant.Location())
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case day.Before(today):
		return domain.InvalidRequestf("date %s is in the past", day.Format(models.DateLayout))
	case day.After(today.AddDate(0, 0, s.cfg.MaxBookingDays)):
		return domain.InvalidRequestf("date %s is more than %d days ahead", day.Format(models.DateLayout), s.cfg.MaxBookingDays)
	case day.Equal(today) && start < local.Hour()*60+local.Minute():
		return domain.InvalidRequestf("start time %s has already passed", models.FormatClock(start))
	}
	return nil
}

// AvailableTables returns the tables seating partySize with no active
// booking overlapping [start, start+duration) on date, best fit first.
func (s *BookingService) AvailableTables(ctx context.Context, restaurantID int64, date string, start, duration, partySize int) ([]*models.Table, error) {
	if duration <= 0 {
		return nil, domain.InvalidRequestf("duration must be positive, got %d", duration)
	}
	if partySize <= 0 {
		return nil, domain.InvalidRequestf("party_size must be positive, got %d", partySize)
	}
	candidates, err := s.repo.CandidateTables(ctx, restaurantID, partySize)
	if err != nil {
		return nil, err
	}
	return s.freeAmong(ctx, candidates, date, models.NewInterval(start, duration), partySize)
}

func (s *BookingService) freeAmong(ctx context.Context, candidates []*models.Table, date string, slot models.Interval, partySize int) ([]*models.Table, error) {
	byTable := make(map[int64][]*models.Booking, len(candidates))
	for _, t := range candidates {
		bookings, err := s.repo.ActiveBookingsForTable(ctx, t.ID, date)
		if err != nil {
			return nil, err
		}
		byTable[t.ID] = bookings
	}
	return scheduling.FreeTables(candidates, byTable, slot, partySize), nil
}

func (s *BookingService) CheckAvailability(ctx context.Context, req domain.AvailabilityRequest) (*models.Availability, error) {
	defer metrics.ObserveAvailabilityCheck(time.Now())

	q, err := s.resolve(ctx, req.RestaurantID, req.Date, req.Time, req.PartySize, req.Duration)
	if err != nil {
		return nil, err
	}

	result := &models.Availability{
		RestaurantID:   req.RestaurantID,
		Date:           q.date,
		Time:           models.FormatClock(q.slot.Start),
		PartySize:      q.partySize,
		Duration:       q.slot.Duration(),
		Tables:         []*models.Table{},
		SuggestedTimes: []models.SlotSuggestion{},
	}

	candidates, err := s.repo.CandidateTables(ctx, req.RestaurantID, q.partySize)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return result, nil
	}

	free, err := s.freeAmong(ctx, candidates, q.date, q.slot, q.partySize)
	if err != nil {
		return nil, err
	}
	if len(free) > 0 {
		result.Available = true
		result.Tables = free
		return result, nil
	}

	result.SuggestedTimes, err = s.suggest(ctx, q)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateBooking runs check, assign and write. A lost race re-runs the whole
// sequence once; if it is lost again the caller gets ErrUnavailable with
// alternative times instead of a raw conflict.
func (s *BookingService) CreateBooking(ctx context.Context, req domain.BookingRequest) (*models.Booking, error) {
	booking, err := s.createBooking(ctx, req)
	metrics.IncBookingOutcome(outcome(err))
	return booking, err
}

func (s *BookingService) createBooking(ctx context.Context, req domain.BookingRequest) (*models.Booking, error) {
	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		return nil, domain.InvalidRequestf("customer_phone is required")
	}
	q, err := s.resolve(ctx, req.RestaurantID, req.Date, req.Time, req.PartySize, req.Duration)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		customer := &models.Customer{
			Phone: phone,
			Name:  strings.TrimSpace(req.CustomerName),
			Email: strings.TrimSpace(req.CustomerEmail),
		}
		booking, err := s.assignAndBook(ctx, q, customer, strings.TrimSpace(req.SpecialRequests))
		if err == nil {
			metrics.IncBookingCreated()
			s.logger.Info().
				Int64("booking_id", booking.ID).
				Int64("restaurant_id", booking.RestaurantID).
				Str("table_number", booking.TableNumber).
				Str("date", booking.Date).
				Str("slot", booking.Interval().String()).
				Int("party_size", booking.PartySize).
				Msg("Booking created")
			s.publishEvent(events.EventBookingCreated, booking, "")
			return booking, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}

		metrics.IncBookingConflict()
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int64("restaurant_id", req.RestaurantID).
			Str("date", q.date).
			Str("slot", q.slot.String()).
			Msg("Booking lost a race")
		if attempt >= maxAttempts {
			return nil, s.unavailable(ctx, q)
		}
	}
}

// assignAndBook picks the best free table and writes the booking under the
// table's slot lock. It never falls back to another table on its own.
func (s *BookingService) assignAndBook(ctx context.Context, q *slotQuery, customer *models.Customer, special string) (*models.Booking, error) {
	candidates, err := s.repo.CandidateTables(ctx, q.restaurant.ID, q.partySize)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: party of %d", domain.ErrNoFit, q.partySize)
	}

	free, err := s.freeAmong(ctx, candidates, q.date, q.slot, q.partySize)
	if err != nil {
		return nil, err
	}
	table, ok := scheduling.BestFit(free)
	if !ok {
		return nil, s.unavailable(ctx, q)
	}

	release, err := s.locker.Acquire(ctx, repository.SlotKey(table.ID, q.date), s.cfg.LockTTL, s.cfg.LockWait)
	if err != nil {
		if errors.Is(err, repository.ErrLockTimeout) {
			return nil, fmt.Errorf("%w: table %s is locked", domain.ErrConflict, table.Number)
		}
		return nil, err
	}
	defer release()

	booking := &models.Booking{
		RestaurantID:    q.restaurant.ID,
		TableID:         table.ID,
		TableNumber:     table.Number,
		Date:            q.date,
		StartMinute:     q.slot.Start,
		EndMinute:       q.slot.End,
		PartySize:       q.partySize,
		DurationMinutes: q.slot.Duration(),
		Status:          q.restaurant.InitialStatus,
		SpecialRequests: special,
	}
	if err := s.repo.CreateBookingAtomic(ctx, booking, customer); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) unavailable(ctx context.Context, q *slotQuery) error {
	suggestions, err := s.suggest(ctx, q)
	if err != nil {
		return err
	}
	return &domain.UnavailableError{Suggestions: suggestions}
}

// UpdateBookingStatus moves a booking along the status state machine. The
// version read here guards the write, so of two concurrent updates only
// one applies.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, bookingID int64, status models.BookingStatus) (*models.Booking, error) {
	if _, err := models.ParseBookingStatus(string(status)); err != nil {
		return nil, domain.InvalidRequestf("%v", err)
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(booking.Status, status) {
		return nil, &domain.TransitionError{
			From:     booking.Status,
			To:       status,
			Terminal: booking.Status.IsTerminal(),
		}
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, booking.Version, status); err != nil {
		return nil, err
	}

	prev := booking.Status
	booking.Status = status
	booking.Version++
	booking.UpdatedAt = s.now()

	metrics.IncStatusTransition(string(status))
	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("from", string(prev)).
		Str("to", string(status)).
		Msg("Booking status changed")
	s.publishEvent(events.EventBookingStatusChanged, booking, prev)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// TableSchedule lists the active bookings of one table for a day.
func (s *BookingService) TableSchedule(ctx context.Context, tableID int64, date string) ([]models.ScheduleEntry, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	bookings, err := s.repo.ActiveBookingsForTable(ctx, tableID, day)
	if err != nil {
		return nil, err
	}
	return scheduleEntries(bookings), nil
}

// RestaurantSchedule lists active bookings of every table, grouped by table
// number and ordered by start within a table.
func (s *BookingService) RestaurantSchedule(ctx context.Context, restaurantID int64, date string) ([]models.ScheduleEntry, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.restaurants.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	bookings, err := s.repo.RestaurantBookings(ctx, restaurantID, day)
	if err != nil {
		return nil, err
	}

	entries := scheduleEntries(bookings)
	sort.SliceStable(entries, func(i, j int) bool {
		if c := scheduling.CompareTableNumbers(entries[i].TableNumber, entries[j].TableNumber); c != 0 {
			return c < 0
		}
		return entries[i].StartMinute < entries[j].StartMinute
	})
	return entries, nil
}

func scheduleEntries(bookings []*models.Booking) []models.ScheduleEntry {
	entries := make([]models.ScheduleEntry, 0, len(bookings))
	for _, b := range bookings {
		entries = append(entries, models.NewScheduleEntry(b))
	}
	return entries
}

func parseDate(date string) (string, error) {
	day, err := time.Parse(models.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", domain.InvalidRequestf("date %q must be YYYY-MM-DD", date)
	}
	return day.Format(models.DateLayout), nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, prev models.BookingStatus) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewBookingEventPayload(booking)
	payload.PrevStatus = prev
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrNoFit):
		return "no_fit"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
