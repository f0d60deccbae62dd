package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds every interval; overnight spans are not supported.
const MinutesPerDay = 24 * 60

// Interval is a half-open window [Start, End) in minutes since midnight.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func NewInterval(start, duration int) Interval {
	return Interval{Start: start, End: start + duration}
}

// Overlaps reports whether two half-open intervals share at least one minute.
// Touching endpoints (one ends exactly when the other begins) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

func (i Interval) Duration() int {
	return i.End - i.Start
}

// Within reports whether the interval fits inside [open, close].
func (i Interval) Within(open, close int) bool {
	return i.Start >= open && i.End <= close
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", FormatClock(i.Start), FormatClock(i.End))
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted
// as end of day so closing times can be expressed.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q; expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
