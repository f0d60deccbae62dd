package domain

import (
	"context"
	"time"

	"tablebook/internal/models"
)

type Repository interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*models.Restaurant, error)
	UpsertRestaurant(ctx context.Context, restaurant *models.Restaurant) error

	// CandidateTables returns active tables seating at least minCapacity,
	// ordered by capacity then table number.
	CandidateTables(ctx context.Context, restaurantID int64, minCapacity int) ([]*models.Table, error)
	ListTables(ctx context.Context, restaurantID int64) ([]*models.Table, error)
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	GetTableByNumber(ctx context.Context, restaurantID int64, number string) (*models.Table, error)
	CreateTable(ctx context.Context, table *models.Table) error
	SetTableActive(ctx context.Context, id int64, active bool) error
	SetTableCapacity(ctx context.Context, id int64, capacity int) error

	ActiveBookingsForTable(ctx context.Context, tableID int64, date string) ([]*models.Booking, error)
	RestaurantBookings(ctx context.Context, restaurantID int64, date string) ([]*models.Booking, error)
	// CreateBookingAtomic re-checks the slot and inserts the booking in one
	// serialized unit, upserting the customer by phone. Returns ErrConflict
	// when the table is no longer free or no longer seats the party.
	CreateBookingAtomic(ctx context.Context, booking *models.Booking, customer *models.Customer) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status models.BookingStatus) error

	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)

	Close() error
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error)
}

// SlotLocker serializes writers for one (table, date) key.
type SlotLocker interface {
	// Acquire blocks until the lock is held, ctx is done or wait elapses.
	// The returned release func is safe to call once.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Broker delivers serialized events to an external transport.
type Broker interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Close() error
}

type BookingService interface {
	CheckAvailability(ctx context.Context, req AvailabilityRequest) (*models.Availability, error)
	CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID int64, status models.BookingStatus) (*models.Booking, error)
	TableSchedule(ctx context.Context, tableID int64, date string) ([]models.ScheduleEntry, error)
	RestaurantSchedule(ctx context.Context, restaurantID int64, date string) ([]models.ScheduleEntry, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
}

type CatalogService interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*models.Restaurant, error)
	SyncFromConfig(ctx context.Context, restaurants []models.Restaurant) error
	ListTables(ctx context.Context, restaurantID int64) ([]*models.Table, error)
	SetTableActive(ctx context.Context, tableID int64, active bool) (*models.Table, error)
	SetTableCapacity(ctx context.Context, tableID int64, capacity int) (*models.Table, error)
}

// AvailabilityRequest asks whether a party can be seated. Duration 0 means
// the restaurant default.
type AvailabilityRequest struct {
	RestaurantID int64  `json:"restaurant_id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	PartySize    int    `json:"party_size"`
	Duration     int    `json:"duration_minutes,omitempty"`
}

type BookingRequest struct {
	RestaurantID    int64  `json:"restaurant_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	PartySize       int    `json:"party_size"`
	Duration        int    `json:"duration_minutes,omitempty"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	SpecialRequests string `json:"special_requests,omitempty"`
}
