// Package scheduling holds the pure decision rules of the reservation
// scheduler: overlap filtering, best-fit table choice and the candidate
// start times scanned for alternative slots. Nothing here touches storage.
package scheduling

import "tablebook/internal/models"

// IsFree reports whether no active booking in the list overlaps slot.
func IsFree(slot models.Interval, bookings []*models.Booking) bool {
	for _, b := range bookings {
		if b == nil || !b.IsActive() {
			continue
		}
		if b.Interval().Overlaps(slot) {
			return false
		}
	}
	return true
}

// FreeTables filters candidates down to the tables that seat the party and
// have no active booking overlapping slot. bookingsByTable is keyed by table
// id; a missing key means the table has nothing booked that day.
// The input order is preserved.
func FreeTables(candidates []*models.Table, bookingsByTable map[int64][]*models.Booking, slot models.Interval, partySize int) []*models.Table {
	free := make([]*models.Table, 0, len(candidates))
	for _, t := range candidates {
		if t == nil || !t.Seats(partySize) {
			continue
		}
		if IsFree(slot, bookingsByTable[t.ID]) {
			free = append(free, t)
		}
	}
	return free
}
