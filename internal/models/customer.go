package models

import "time"

type Customer struct {
	ID            int64     `json:"id"`
	Phone         string    `json:"phone"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	TotalBookings int       `json:"total_bookings"`
	NoShows       int       `json:"no_shows"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
