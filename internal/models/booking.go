package models

import "time"

type Booking struct {
	ID              int64         `json:"id"`
	RestaurantID    int64         `json:"restaurant_id"`
	TableID         int64         `json:"table_id"`
	TableNumber     string        `json:"table_number"`
	CustomerID      int64         `json:"customer_id"`
	CustomerPhone   string        `json:"customer_phone"`
	CustomerName    string        `json:"customer_name"`
	Date            string        `json:"booking_date"` // YYYY-MM-DD
	StartMinute     int           `json:"start_minute"`
	EndMinute       int           `json:"end_minute"`
	PartySize       int           `json:"party_size"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int64         `json:"version"`
}

// Interval returns the half-open window the booking occupies on its table.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartMinute, End: b.EndMinute}
}

// IsActive reports whether the booking still occupies its slot.
func (b *Booking) IsActive() bool {
	return b.Status.IsActive()
}

// StartClock formats the start minute as HH:MM.
func (b *Booking) StartClock() string {
	return FormatClock(b.StartMinute)
}

// EndClock formats the end minute as HH:MM.
func (b *Booking) EndClock() string {
	return FormatClock(b.EndMinute)
}
