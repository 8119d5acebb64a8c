package reservation

import (
	"context"
	"time"

	"slotwise/models"
)

// Engine is the reservation API exposed to transports. It is stateless:
// every call re-reads the store.
type Engine interface {
	// ListAvailableSlots expands active rules over [from, to] and drops
	// slots already at capacity. The location filter may be the wildcard.
	ListAvailableSlots(ctx context.Context, from, to time.Time, location string) ([]models.SlotInstance, error)
	// Reserve books one slot for the user, retrying transactional aborts up
	// to a bound. Returns the confirmed booking or one of ValidationError,
	// CollisionError, TransientStoreError, StoreUnavailableError.
	Reserve(ctx context.Context, ref models.SlotReference, userRef string) (*models.Booking, error)
	// CancelBooking frees the capacity held by a booking. Confirmed
	// bookings can only be cancelled up to the configured lead time.
	CancelBooking(ctx context.Context, bookingID, userRef string) error
	// ListUserBookings returns all bookings belonging to a user reference.
	ListUserBookings(ctx context.Context, userRef string) ([]models.Booking, error)
}

// RuleRepository is the engine's read contract for schedule rules.
type RuleRepository interface {
	// ListActiveRules returns rules whose validity window has not ended
	// before asOf. Per-date filtering happens during generation.
	ListActiveRules(ctx context.Context, asOf time.Time) ([]models.ScheduleRule, error)
}

// BookingRepository is the engine's contract with the transactional booking
// store.
type BookingRepository interface {
	// QueryConfirmed returns confirmed bookings whose intervals intersect
	// [from, to) at the given location, ordered by start time. The wildcard
	// location returns bookings at every location.
	QueryConfirmed(ctx context.Context, location string, from, to time.Time) ([]models.Booking, error)
	// CreatePending persists a new pending booking. Pending records hold no
	// capacity and are swept if never confirmed.
	CreatePending(ctx context.Context, b *models.Booking) error
	// ConfirmTransactionally flips the booking pending → confirmed if and
	// only if no conflicting confirmed booking exists and the slot still has
	// capacity, all inside one store transaction. It returns
	// ErrCommitConditionFailed when a concurrent writer took the slot and
	// ErrTransientTxn when the transaction aborted under contention.
	ConfirmTransactionally(ctx context.Context, b *models.Booking, matchLocation string, capacity int) error
	// Cancel marks a booking cancelled and advances its version.
	Cancel(ctx context.Context, bookingID string) error
	// GetByID returns a booking or nil when it does not exist.
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	// ListByUser returns every booking for a user reference, newest first.
	ListByUser(ctx context.Context, userRef string) ([]models.Booking, error)
	// ExpireStalePending cancels pending bookings created before the cutoff
	// and reports how many were swept.
	ExpireStalePending(ctx context.Context, olderThan time.Time) (int64, error)
}

// ExpiryScheduler enqueues a deferred job that cancels a booking if it is
// still pending when the job fires.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error
}
