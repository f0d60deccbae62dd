package domain

import (
	"errors"
	"fmt"

	"tablebook/internal/models"
)

var (
	// ErrInvalidRequest rejects malformed input before any storage access.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoFit means no active table can seat the party at all.
	ErrNoFit = errors.New("no table fits the party size")
	// ErrUnavailable means tables fit the party but all are booked for the interval.
	ErrUnavailable = errors.New("no table available for the requested time")
	// ErrConflict means the writer lost a race for the chosen table and slot.
	ErrConflict = errors.New("booking conflict")
	// ErrInvalidTransition rejects status changes outside the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	// ErrConcurrentModification signals a stale version on update.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// InvalidRequestf wraps ErrInvalidRequest with a formatted reason.
func InvalidRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// UnavailableError carries alternative start times along with ErrUnavailable.
type UnavailableError struct {
	Suggestions []models.SlotSuggestion
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s (%d alternative times)", ErrUnavailable.Error(), len(e.Suggestions))
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From models.BookingStatus
	To   models.BookingStatus
	// Terminal is set when From allows no further changes at all.
	Terminal bool
}

func (e *TransitionError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("%s: booking is already %s", ErrInvalidTransition.Error(), e.From)
	}
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition.Error(), e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
