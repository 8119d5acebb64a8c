package reservation

import (
	"time"

	"slotwise/models"
)

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. A booking ending exactly when another starts does
// not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasConflict reports whether booking the candidate slot at the requested
// location would violate the no-double-booking invariant against the given
// confirmed bookings.
//
// A wildcard candidate competes at every location, so it is checked against
// all bookings regardless of where they sit. Bookings matching the
// candidate's exact start/end count against the slot's capacity; any
// partially overlapping booking is a conflict no matter the capacity.
func HasConflict(candidate models.SlotInstance, requested string, confirmed []models.Booking) bool {
	// A concrete slot competes at its own location. A wildcard slot stays
	// wildcard for matching even though the booking will be written with the
	// requested concrete location: that keeps wildcard collisions
	// conservative across locations.
	matchLoc := NormalizeLocation(candidate.Location)
	if matchLoc != models.LocationAny && !Matches(matchLoc, requested) {
		// Mismatched request; validation rejects this before any check.
		return true
	}

	capacity := candidate.Capacity
	if capacity < 1 {
		capacity = 1
	}

	exact := 0
	for _, b := range confirmed {
		if b.Status != models.BookingStatusConfirmed {
			continue
		}
		if !Matches(matchLoc, b.Location) {
			continue
		}
		if !Overlaps(candidate.Start, candidate.End, b.Start, b.End) {
			continue
		}
		if b.Start.Equal(candidate.Start) && b.End.Equal(candidate.End) {
			exact++
			continue
		}
		// Partial overlap within a matching location is always exclusive.
		return true
	}
	return exact >= capacity
}
