package models

import "time"

type Table struct {
	ID           int64     `yaml:"-" json:"id"`
	RestaurantID int64     `yaml:"-" json:"restaurant_id"`
	Number       string    `yaml:"number" json:"table_number"`
	Capacity     int       `yaml:"capacity" json:"capacity"`
	Location     string    `yaml:"location" json:"location,omitempty"`
	IsActive     bool      `yaml:"-" json:"is_active"`
	CreatedAt    time.Time `yaml:"-" json:"created_at"`
	UpdatedAt    time.Time `yaml:"-" json:"updated_at"`
}

// Seats reports whether the table can hold the party.
func (t *Table) Seats(partySize int) bool {
	return t.IsActive && partySize <= t.Capacity
}
