package models

import "fmt"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusSeated    BookingStatus = "seated"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusSeated, StatusCancelled, StatusNoShow},
	StatusSeated:    {StatusCompleted, StatusNoShow},
}

// ParseBookingStatus accepts only the closed set of statuses.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case StatusPending, StatusConfirmed, StatusSeated, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	default:
		return "", fmt.Errorf("unknown booking status %q", s)
	}
}

// IsActive reports whether a booking in this status takes part in conflict checks.
func (s BookingStatus) IsActive() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// IsTerminal reports whether no status change is allowed out of s.
func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InactiveStatuses lists statuses excluded from overlap checks, in a stable order for SQL arguments.
func InactiveStatuses() []BookingStatus {
	return []BookingStatus{StatusCancelled, StatusNoShow}
}
