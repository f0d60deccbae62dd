package scheduling

import (
	"sort"

	"tablebook/internal/models"
)

// SlotWindow bounds the scan for alternative start times.
type SlotWindow struct {
	Requested int // requested start, minutes since midnight
	Duration  int
	Open      int
	Close     int
	Window    int
	Step      int
	// NotBefore drops earlier starts. Zero when the date is not today.
	NotBefore int
}

// CandidateStarts lists start times Requested ± k*Step with k*Step <= Window
// whose whole [start, start+Duration) fits inside opening hours and that do
// not start before NotBefore. The requested time itself is excluded. Results
// are ordered nearest first, earlier before later on equal distance.
func CandidateStarts(w SlotWindow) []int {
	if w.Step <= 0 || w.Window <= 0 || w.Duration <= 0 {
		return nil
	}

	var starts []int
	for offset := w.Step; offset <= w.Window; offset += w.Step {
		for _, start := range [2]int{w.Requested - offset, w.Requested + offset} {
			if start < 0 || start < w.NotBefore || start >= models.MinutesPerDay {
				continue
			}
			if !models.NewInterval(start, w.Duration).Within(w.Open, w.Close) {
				continue
			}
			starts = append(starts, start)
		}
	}
	SortByDistance(starts, w.Requested)
	return starts
}

// SortByDistance orders minutes by |m - requested|, earlier first on ties.
func SortByDistance(minutes []int, requested int) {
	sort.SliceStable(minutes, func(i, j int) bool {
		di, dj := abs(minutes[i]-requested), abs(minutes[j]-requested)
		if di != dj {
			return di < dj
		}
		return minutes[i] < minutes[j]
	})
}

// RankSuggestions drops zero-availability slots and orders the rest by
// distance from the requested start.
func RankSuggestions(slots []models.SlotSuggestion, requested int) []models.SlotSuggestion {
	out := make([]models.SlotSuggestion, 0, len(slots))
	for _, s := range slots {
		if s.AvailableTables > 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := abs(out[i].StartMinute-requested), abs(out[j].StartMinute-requested)
		if di != dj {
			return di < dj
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
