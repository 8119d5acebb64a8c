package reservation

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slotwise/models"
	"slotwise/utils"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = 50 * time.Millisecond
	defaultPendingTTL  = 10 * time.Minute
)

// DefaultReservationEngine orchestrates slot generation, collision checking
// and the transactional commit against the booking store. It holds no
// persistent state; everything it builds is request-scoped.
type DefaultReservationEngine struct {
	Rules    RuleRepository
	Bookings BookingRepository
	Expiry   ExpiryScheduler // optional; pending records are also swept server-side

	MaxAttempts int           // commit attempts before giving up, default 5
	BackoffBase time.Duration // first retry delay, doubled per attempt with jitter
	PendingTTL  time.Duration // how long an unconfirmed pending record may live
	CancelLead  time.Duration // minimum time before start a confirmed booking can be cancelled

	Now func() time.Time // test hook
}

func (en *DefaultReservationEngine) now() time.Time {
	if en.Now != nil {
		return en.Now()
	}
	return time.Now()
}

func (en *DefaultReservationEngine) maxAttempts() int {
	if en.MaxAttempts > 0 {
		return en.MaxAttempts
	}
	return defaultMaxAttempts
}

func (en *DefaultReservationEngine) backoffBase() time.Duration {
	if en.BackoffBase > 0 {
		return en.BackoffBase
	}
	return defaultBackoffBase
}

// ListAvailableSlots expands the active rules over [from, to] and filters
// out slots already at capacity. One bounded read covers the whole window;
// confirmed-booking state is never cached across calls.
func (en *DefaultReservationEngine) ListAvailableSlots(
	ctx context.Context,
	from, to time.Time,
	location string,
) ([]models.SlotInstance, error) {
	locFilter := NormalizeLocation(location)

	rules, err := en.Rules.ListActiveRules(ctx, from)
	if err != nil {
		return nil, &StoreUnavailableError{Err: err}
	}
	slots, err := Generate(rules, from, to)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	// Wildcard slots compete everywhere, so the read must widen to all
	// locations as soon as one is present.
	readLoc := locFilter
	windowEnd := slots[0].End
	for _, s := range slots {
		if IsWildcard(s.Location) {
			readLoc = models.LocationAny
		}
		if s.End.After(windowEnd) {
			windowEnd = s.End
		}
	}
	confirmed, err := en.Bookings.QueryConfirmed(ctx, readLoc, slots[0].Start, windowEnd)
	if err != nil {
		return nil, &StoreUnavailableError{Err: err}
	}

	now := en.now()
	var out []models.SlotInstance
	for _, s := range slots {
		if !Matches(s.Location, locFilter) {
			continue
		}
		if !s.End.After(now) {
			continue
		}
		if HasConflict(s, locFilter, confirmed) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Reserve runs the requested → checked → committed cycle for one slot.
// Genuine collisions are never retried; transactional aborts are retried
// with jittered backoff up to the attempt bound.
func (en *DefaultReservationEngine) Reserve(
	ctx context.Context,
	ref models.SlotReference,
	userRef string,
) (*models.Booking, error) {
	logger := utils.GetLogger()

	if userRef == "" {
		return nil, &ValidationError{Reason: "missing user reference"}
	}
	loc := NormalizeLocation(ref.Location)
	if loc == models.LocationAny {
		return nil, &ValidationError{Reason: "booking requires a concrete location"}
	}
	if ref.Start.IsZero() {
		return nil, &ValidationError{Reason: "missing slot start time"}
	}

	slot, err := en.resolveSlot(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := en.now()
	booking := &models.Booking{
		ID:        uuid.New().String(),
		UserRef:   userRef,
		RuleID:    slot.RuleID,
		Location:  loc, // wildcard resolved to the requested concrete location
		Start:     slot.Start.UTC(),
		End:       slot.End.UTC(),
		Status:    models.BookingStatusPending,
		Version:   1,
		CreatedAt: now.UTC(),
	}
	if err := en.Bookings.CreatePending(ctx, booking); err != nil {
		return nil, &StoreUnavailableError{Err: err}
	}
	if en.Expiry != nil {
		ttl := en.PendingTTL
		if ttl <= 0 {
			ttl = defaultPendingTTL
		}
		if err := en.Expiry.ScheduleExpiry(ctx, booking.ID, now.Add(ttl)); err != nil {
			logger.Warn("failed to schedule pending expiry",
				zap.String("bookingID", booking.ID), zap.Error(err))
		}
	}

	matchLoc := NormalizeLocation(slot.Location)
	attempts := en.maxAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		confirmed, err := en.Bookings.QueryConfirmed(ctx, matchLoc, slot.Start, slot.End)
		if err != nil {
			lastErr = err
			if werr := en.backoff(ctx, attempt); werr != nil {
				lastErr = werr
				break
			}
			continue
		}

		if HasConflict(slot, loc, confirmed) {
			en.abandon(ctx, booking.ID)
			return nil, &CollisionError{Location: loc, Start: slot.Start, End: slot.End}
		}

		err = en.Bookings.ConfirmTransactionally(ctx, booking, matchLoc, slot.Capacity)
		switch {
		case err == nil:
			booking.Status = models.BookingStatusConfirmed
			booking.Version++
			logger.Info("booking committed",
				zap.String("bookingID", booking.ID),
				zap.String("location", booking.Location),
				zap.Int("attempt", attempt))
			return booking, nil
		case errors.Is(err, ErrCommitConditionFailed):
			// A concurrent writer landed first. The next read decides
			// whether this is a genuine collision or freed capacity.
			lastErr = err
			continue
		case errors.Is(err, ErrTransientTxn):
			lastErr = err
			logger.Debug("reservation transaction aborted, retrying",
				zap.String("bookingID", booking.ID), zap.Int("attempt", attempt))
			if werr := en.backoff(ctx, attempt); werr != nil {
				lastErr = werr
			}
		default:
			en.abandon(ctx, booking.ID)
			return nil, &StoreUnavailableError{Err: err}
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	en.abandon(ctx, booking.ID)
	return nil, &TransientStoreError{Attempts: attempts, Err: lastErr}
}

// CancelBooking frees the capacity held by a booking. Cancellation never
// needs a collision re-run since it only releases capacity.
func (en *DefaultReservationEngine) CancelBooking(ctx context.Context, bookingID, userRef string) error {
	b, err := en.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return &StoreUnavailableError{Err: err}
	}
	if b == nil {
		return &ValidationError{Reason: "booking not found"}
	}
	if userRef != "" && b.UserRef != userRef {
		return &ValidationError{Reason: "booking belongs to another user"}
	}
	if b.Status == models.BookingStatusCancelled {
		return nil
	}
	if en.CancelLead > 0 && b.Status == models.BookingStatusConfirmed &&
		b.Start.Sub(en.now()) < en.CancelLead {
		return &ValidationError{Reason: "too close to start time to cancel"}
	}
	if err := en.Bookings.Cancel(ctx, bookingID); err != nil {
		return &StoreUnavailableError{Err: err}
	}
	return nil
}

// ListUserBookings returns every booking for the user reference.
func (en *DefaultReservationEngine) ListUserBookings(ctx context.Context, userRef string) ([]models.Booking, error) {
	if userRef == "" {
		return nil, &ValidationError{Reason: "missing user reference"}
	}
	bookings, err := en.Bookings.ListByUser(ctx, userRef)
	if err != nil {
		return nil, &StoreUnavailableError{Err: err}
	}
	return bookings, nil
}

// resolveSlot re-generates the slot the reference points at. The window is
// widened a day each way so midnight-crossing slots of the previous date are
// still considered.
func (en *DefaultReservationEngine) resolveSlot(ctx context.Context, ref models.SlotReference) (models.SlotInstance, error) {
	rules, err := en.Rules.ListActiveRules(ctx, ref.Start)
	if err != nil {
		return models.SlotInstance{}, &StoreUnavailableError{Err: err}
	}
	slots, err := Generate(rules, ref.Start.AddDate(0, 0, -1), ref.Start.AddDate(0, 0, 1))
	if err != nil {
		return models.SlotInstance{}, err
	}
	for _, s := range slots {
		if s.RuleID == ref.RuleID && s.Start.Equal(ref.Start) && Matches(s.Location, ref.Location) {
			return s, nil
		}
	}
	return models.SlotInstance{}, &ValidationError{Reason: "slot reference does not match any generated slot"}
}

// abandon releases a pending record after a terminal failure. Best effort:
// the expiry worker sweeps anything left behind.
func (en *DefaultReservationEngine) abandon(ctx context.Context, bookingID string) {
	if err := en.Bookings.Cancel(ctx, bookingID); err != nil {
		utils.GetLogger().Warn("failed to release pending booking",
			zap.String("bookingID", bookingID), zap.Error(err))
	}
}

// backoff sleeps for an exponentially growing, jittered delay, honoring the
// request deadline.
func (en *DefaultReservationEngine) backoff(ctx context.Context, attempt int) error {
	base := en.backoffBase()
	d := base << uint(attempt-1)
	d += time.Duration(rand.Int63n(int64(base)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
