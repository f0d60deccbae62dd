package models

import (
	"fmt"
	"time"
)

type Restaurant struct {
	ID                     int64         `yaml:"id" json:"id"`
	Name                   string        `yaml:"name" json:"name"`
	OpeningTime            string        `yaml:"opening_time" json:"opening_time"` // HH:MM
	ClosingTime            string        `yaml:"closing_time" json:"closing_time"` // HH:MM
	DefaultDurationMinutes int           `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	MaxPartySize           int           `yaml:"max_party_size" json:"max_party_size"`
	InitialStatus          BookingStatus `yaml:"initial_status" json:"initial_status"`
	Timezone               string        `yaml:"timezone" json:"timezone"`
	Tables                 []Table       `yaml:"tables" json:"-"`
	CreatedAt              time.Time     `yaml:"-" json:"created_at"`
	UpdatedAt              time.Time     `yaml:"-" json:"updated_at"`
}

// Hours returns opening and closing times in minutes since midnight.
func (r *Restaurant) Hours() (open, close int, err error) {
	open, err = ParseClock(r.OpeningTime)
	if err != nil {
		return 0, 0, fmt.Errorf("opening_time: %w", err)
	}
	close, err = ParseClock(r.ClosingTime)
	if err != nil {
		return 0, 0, fmt.Errorf("closing_time: %w", err)
	}
	if close <= open {
		return 0, 0, fmt.Errorf("closing_time %s must be after opening_time %s", r.ClosingTime, r.OpeningTime)
	}
	return open, close, nil
}

// Location resolves the restaurant timezone, falling back to UTC.
func (r *Restaurant) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApplyDefaults fills policy fields left empty in configuration.
func (r *Restaurant) ApplyDefaults() {
	if r.DefaultDurationMinutes <= 0 {
		r.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if r.MaxPartySize <= 0 {
		r.MaxPartySize = DefaultMaxPartySize
	}
	if r.InitialStatus == "" {
		r.InitialStatus = StatusConfirmed
	}
}
