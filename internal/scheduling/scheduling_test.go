package scheduling

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/models"
)

func table(id int64, number string, capacity int) *models.Table {
	return &models.Table{ID: id, RestaurantID: 1, Number: number, Capacity: capacity, IsActive: true}
}

func booking(tableID int64, start, duration int, status models.BookingStatus) *models.Booking {
	return &models.Booking{TableID: tableID, StartMinute: start, EndMinute: start + duration, Status: status}
}

func TestBestFit_SmallestCapacity(t *testing.T) {
	tables := []*models.Table{table(4, "4", 8), table(2, "2", 4), table(1, "1", 2), table(3, "3", 4)}
	free := FreeTables(tables, nil, models.NewInterval(1140, 90), 3)
	require.Len(t, free, 3, "the 2-top cannot seat a party of 3")

	picked, ok := BestFit(free)
	require.True(t, ok)
	assert.Equal(t, 4, picked.Capacity)
	assert.Equal(t, "2", picked.Number, "ties go to the lowest table number")

	for i := 0; i < 50; i++ {
		shuffled := append([]*models.Table(nil), free...)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		again, ok := BestFit(shuffled)
		require.True(t, ok)
		assert.Equal(t, picked.ID, again.ID)
	}
}

func TestBestFit_Empty(t *testing.T) {
	picked, ok := BestFit(nil)
	assert.False(t, ok)
	assert.Nil(t, picked)
}

func TestSortTables_NumericAware(t *testing.T) {
	tables := []*models.Table{table(1, "10", 4), table(2, "2", 4), table(3, "B", 4), table(4, "A", 4), table(5, "1", 2)}
	SortTables(tables)

	var got []string
	for _, tb := range tables {
		got = append(got, tb.Number)
	}
	assert.Equal(t, []string{"1", "2", "10", "A", "B"}, got)
}

func TestFreeTables(t *testing.T) {
	tables := []*models.Table{table(1, "1", 2), table(2, "2", 4), table(3, "3", 4)}
	booked := map[int64][]*models.Booking{
		2: {booking(2, 18*60, 90, models.StatusConfirmed)},
	}

	t.Run("OverlapExcludesTable", func(t *testing.T) {
		free := FreeTables(tables, booked, models.NewInterval(19*60, 90), 4)
		require.Len(t, free, 1)
		assert.Equal(t, int64(3), free[0].ID)
	})

	t.Run("AdjacentIsFree", func(t *testing.T) {
		free := FreeTables(tables, booked, models.NewInterval(19*60+30, 90), 4)
		assert.Len(t, free, 2)
	})

	t.Run("CancelledNeverConflicts", func(t *testing.T) {
		cancelled := map[int64][]*models.Booking{
			2: {booking(2, 19*60, 90, models.StatusCancelled), booking(2, 19*60, 90, models.StatusNoShow)},
		}
		free := FreeTables(tables, cancelled, models.NewInterval(19*60, 90), 4)
		assert.Len(t, free, 2)
	})

	t.Run("CapacityEdge", func(t *testing.T) {
		free := FreeTables(tables, nil, models.NewInterval(12*60, 60), 2)
		assert.Len(t, free, 3, "party equal to capacity fits")

		free = FreeTables([]*models.Table{table(1, "1", 2)}, nil, models.NewInterval(12*60, 60), 3)
		assert.Empty(t, free)
	})

	t.Run("InactiveSkipped", func(t *testing.T) {
		inactive := table(9, "9", 6)
		inactive.IsActive = false
		free := FreeTables([]*models.Table{inactive}, nil, models.NewInterval(12*60, 60), 2)
		assert.Empty(t, free)
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := FreeTables(tables, booked, models.NewInterval(19*60, 90), 2)
		second := FreeTables(tables, booked, models.NewInterval(19*60, 90), 2)
		assert.Equal(t, first, second)
	})
}

func TestCandidateStarts(t *testing.T) {
	w := SlotWindow{Requested: 19 * 60, Duration: 90, Open: 11 * 60, Close: 23 * 60, Window: 120, Step: 30}
	got := CandidateStarts(w)

	want := []int{1110, 1170, 1080, 1200, 1050, 1230, 1020, 1260}
	assert.Equal(t, want, got)
	assert.LessOrEqual(t, len(got), 2*w.Window/w.Step)
	assert.NotContains(t, got, w.Requested)
}

func TestCandidateStarts_ClippedByHours(t *testing.T) {
	w := SlotWindow{Requested: 21 * 60, Duration: 90, Open: 11 * 60, Close: 23 * 60, Window: 120, Step: 30}
	got := CandidateStarts(w)

	for _, start := range got {
		assert.LessOrEqual(t, start+90, 23*60, "start %s runs past closing", models.FormatClock(start))
	}
	assert.Equal(t, []int{1230, 1290, 1200, 1170, 1140}, got)

	assert.Nil(t, CandidateStarts(SlotWindow{Requested: 600, Duration: 60, Open: 0, Close: 1440, Window: 0, Step: 30}))
}

func TestCandidateStarts_NotBefore(t *testing.T) {
	w := SlotWindow{Requested: 19 * 60, Duration: 90, Open: 11 * 60, Close: 23 * 60, Window: 120, Step: 30, NotBefore: 18*60 + 10}
	got := CandidateStarts(w)

	for _, start := range got {
		assert.GreaterOrEqual(t, start, w.NotBefore, "start %s is before %s", models.FormatClock(start), models.FormatClock(w.NotBefore))
	}
	assert.Equal(t, []int{1110, 1170, 1200, 1230, 1260}, got)

	w.NotBefore = 18 * 60
	assert.Contains(t, CandidateStarts(w), 18*60)
}

func TestRankSuggestions(t *testing.T) {
	slots := []models.SlotSuggestion{
		{Time: "20:00", StartMinute: 1200, AvailableTables: 1},
		{Time: "18:30", StartMinute: 1110, AvailableTables: 0},
		{Time: "19:30", StartMinute: 1170, AvailableTables: 2},
		{Time: "18:00", StartMinute: 1080, AvailableTables: 3},
	}
	ranked := RankSuggestions(slots, 1140)

	require.Len(t, ranked, 3)
	assert.Equal(t, "19:30", ranked[0].Time)
	assert.Equal(t, "18:00", ranked[1].Time)
	assert.Equal(t, "20:00", ranked[2].Time)
}
