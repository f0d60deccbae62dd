package models

// SlotSuggestion is an alternative start time with the number of tables free at it.
type SlotSuggestion struct {
	Time            string `json:"time"` // HH:MM
	StartMinute     int    `json:"start_minute"`
	AvailableTables int    `json:"available_tables"`
}

// Availability is the answer to an availability query.
type Availability struct {
	RestaurantID   int64            `json:"restaurant_id"`
	Date           string           `json:"date"`
	Time           string           `json:"time"`
	PartySize      int              `json:"party_size"`
	Duration       int              `json:"duration_minutes"`
	Available      bool             `json:"available"`
	Tables         []*Table         `json:"tables"`
	SuggestedTimes []SlotSuggestion `json:"suggested_times"`
}

// ScheduleEntry is one active booking on a table's daily schedule.
type ScheduleEntry struct {
	BookingID    int64         `json:"booking_id"`
	TableID      int64         `json:"table_id"`
	TableNumber  string        `json:"table_number"`
	Start        string        `json:"start"`
	End          string        `json:"end"`
	StartMinute  int           `json:"start_minute"`
	EndMinute    int           `json:"end_minute"`
	PartySize    int           `json:"party_size"`
	Status       BookingStatus `json:"status"`
	CustomerName string        `json:"customer_name,omitempty"`
}

// NewScheduleEntry projects a booking onto its schedule row.
func NewScheduleEntry(b *Booking) ScheduleEntry {
	return ScheduleEntry{
		BookingID:    b.ID,
		TableID:      b.TableID,
		TableNumber:  b.TableNumber,
		Start:        b.StartClock(),
		End:          b.EndClock(),
		StartMinute:  b.StartMinute,
		EndMinute:    b.EndMinute,
		PartySize:    b.PartySize,
		Status:       b.Status,
		CustomerName: b.CustomerName,
	}
}
