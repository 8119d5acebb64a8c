package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwise/models"
)

type fakeRules struct {
	rules []models.ScheduleRule
}

func (f *fakeRules) ListActiveRules(ctx context.Context, asOf time.Time) ([]models.ScheduleRule, error) {
	return f.rules, nil
}

// fakeBookings mimics the store's conditional commit: the confirm step
// re-checks conflicts under a lock, so concurrent callers serialize the way
// the real transaction does.
type fakeBookings struct {
	mu          sync.Mutex
	byID        map[string]*models.Booking
	confirmErrs []error // scripted errors consumed one per ConfirmTransactionally call
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{byID: make(map[string]*models.Booking)}
}

func (f *fakeBookings) QueryConfirmed(ctx context.Context, location string, from, to time.Time) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.byID {
		if b.Status != models.BookingStatusConfirmed {
			continue
		}
		if !Matches(location, b.Location) {
			continue
		}
		if Overlaps(from, to, b.Start, b.End) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) CreatePending(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.byID[b.ID] = &cp
	return nil
}

func (f *fakeBookings) ConfirmTransactionally(ctx context.Context, b *models.Booking, matchLocation string, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.confirmErrs) > 0 {
		err := f.confirmErrs[0]
		f.confirmErrs = f.confirmErrs[1:]
		if err != nil {
			return err
		}
	}

	var confirmed []models.Booking
	for _, other := range f.byID {
		if other.ID != b.ID && other.Status == models.BookingStatusConfirmed {
			confirmed = append(confirmed, *other)
		}
	}
	candidate := models.SlotInstance{
		Start:    b.Start,
		End:      b.End,
		Location: matchLocation,
		Capacity: capacity,
	}
	if HasConflict(candidate, b.Location, confirmed) {
		return ErrCommitConditionFailed
	}

	stored, ok := f.byID[b.ID]
	if !ok || stored.Status != models.BookingStatusPending {
		return ErrCommitConditionFailed
	}
	stored.Status = models.BookingStatusConfirmed
	stored.Version++
	return nil
}

func (f *fakeBookings) Cancel(ctx context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.byID[bookingID]; ok {
		b.Status = models.BookingStatusCancelled
		b.Version++
	}
	return nil
}

func (f *fakeBookings) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) ListByUser(ctx context.Context, userRef string) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.byID {
		if b.UserRef == userRef {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) ExpireStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.byID {
		if b.Status == models.BookingStatusPending && b.CreatedAt.Before(olderThan) {
			b.Status = models.BookingStatusCancelled
			n++
		}
	}
	return n, nil
}

type fakeExpiry struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
}

func newFakeExpiry() *fakeExpiry {
	return &fakeExpiry{scheduled: make(map[string]time.Time)}
}

func (f *fakeExpiry) ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[bookingID] = at
	return nil
}

var fixedNow = time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)

// mondaySlotStart is the first slot generated by the test rule after fixedNow.
var mondaySlotStart = time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(capacity int, bookings *fakeBookings) *DefaultReservationEngine {
	rule := weeklyRule("mon-10", []time.Weekday{time.Monday}, 600, 660, "room-A")
	rule.Capacity = capacity
	return &DefaultReservationEngine{
		Rules:       &fakeRules{rules: []models.ScheduleRule{rule}},
		Bookings:    bookings,
		MaxAttempts: 5,
		BackoffBase: time.Millisecond,
		Now:         func() time.Time { return fixedNow },
	}
}

func mondayRef() models.SlotReference {
	return models.SlotReference{RuleID: "mon-10", Location: "room-A", Start: mondaySlotStart}
}

func TestReserveHappyPath(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(1, bookings)
	expiry := newFakeExpiry()
	en.Expiry = expiry
	en.PendingTTL = 10 * time.Minute

	b, err := en.Reserve(context.Background(), mondayRef(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, "room-A", b.Location)
	assert.Equal(t, mondaySlotStart, b.Start)
	assert.Equal(t, int64(2), b.Version)

	stored, _ := bookings.GetByID(context.Background(), b.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.BookingStatusConfirmed, stored.Status)

	at, ok := expiry.scheduled[b.ID]
	require.True(t, ok, "pending expiry should be scheduled")
	assert.Equal(t, fixedNow.Add(10*time.Minute), at)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(1, bookings)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = en.Reserve(context.Background(), mondayRef(), "user-1")
		}(i)
	}
	wg.Wait()

	var ok, collided int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		var ce *CollisionError
		require.ErrorAs(t, err, &ce)
		collided++
	}
	assert.Equal(t, 1, ok, "exactly one reservation must win")
	assert.Equal(t, 1, collided)

	confirmed, err := bookings.QueryConfirmed(context.Background(), "room-A", mondaySlotStart, mondaySlotStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestReserveCapacityThree(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(3, bookings)

	for i := 0; i < 3; i++ {
		_, err := en.Reserve(context.Background(), mondayRef(), "user-1")
		require.NoError(t, err, "reservation %d within capacity", i+1)
	}

	_, err := en.Reserve(context.Background(), mondayRef(), "user-1")
	var ce *CollisionError
	require.ErrorAs(t, err, &ce)
}

func TestReserveTransientAbortThenSuccess(t *testing.T) {
	bookings := newFakeBookings()
	bookings.confirmErrs = []error{ErrTransientTxn}
	en := newTestEngine(1, bookings)

	b, err := en.Reserve(context.Background(), mondayRef(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
}

func TestReserveRetryExhaustion(t *testing.T) {
	bookings := newFakeBookings()
	bookings.confirmErrs = []error{ErrTransientTxn, ErrTransientTxn}
	en := newTestEngine(1, bookings)
	en.MaxAttempts = 2

	_, err := en.Reserve(context.Background(), mondayRef(), "user-1")
	var te *TransientStoreError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)

	// The pending record is released so it cannot block future reservations.
	for _, b := range bookings.byID {
		assert.Equal(t, models.BookingStatusCancelled, b.Status)
	}
}

func TestReserveValidation(t *testing.T) {
	en := newTestEngine(1, newFakeBookings())
	ctx := context.Background()

	var ve *ValidationError

	_, err := en.Reserve(ctx, mondayRef(), "")
	require.ErrorAs(t, err, &ve)

	ref := mondayRef()
	ref.Location = "any"
	_, err = en.Reserve(ctx, ref, "user-1")
	require.ErrorAs(t, err, &ve)

	ref = mondayRef()
	ref.Start = time.Time{}
	_, err = en.Reserve(ctx, ref, "user-1")
	require.ErrorAs(t, err, &ve)

	// A start time no rule generates is rejected before any write.
	ref = mondayRef()
	ref.Start = ref.Start.Add(30 * time.Minute)
	_, err = en.Reserve(ctx, ref, "user-1")
	require.ErrorAs(t, err, &ve)
}

func TestReserveWildcardRuleResolvesToConcreteLocation(t *testing.T) {
	bookings := newFakeBookings()
	rule := weeklyRule("mon-10", []time.Weekday{time.Monday}, 600, 660, "")
	en := &DefaultReservationEngine{
		Rules:       &fakeRules{rules: []models.ScheduleRule{rule}},
		Bookings:    bookings,
		MaxAttempts: 5,
		BackoffBase: time.Millisecond,
		Now:         func() time.Time { return fixedNow },
	}

	b, err := en.Reserve(context.Background(), mondayRef(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "room-A", b.Location)

	// The wildcard slot is now exhausted everywhere, not just at room-A.
	ref := mondayRef()
	ref.Location = "room-B"
	_, err = en.Reserve(context.Background(), ref, "user-2")
	var ce *CollisionError
	require.ErrorAs(t, err, &ce)
}

func TestCancelBooking(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(1, bookings)
	en.CancelLead = 24 * time.Hour
	ctx := context.Background()

	b, err := en.Reserve(ctx, mondayRef(), "user-1")
	require.NoError(t, err)

	var ve *ValidationError

	err = en.CancelBooking(ctx, "no-such-id", "user-1")
	require.ErrorAs(t, err, &ve)

	err = en.CancelBooking(ctx, b.ID, "someone-else")
	require.ErrorAs(t, err, &ve)

	// Slot starts ~2.9 days after fixedNow, beyond the 24h lead.
	require.NoError(t, en.CancelBooking(ctx, b.ID, "user-1"))

	// Cancelling again is a no-op.
	require.NoError(t, en.CancelBooking(ctx, b.ID, "user-1"))
}

func TestCancelBookingLeadTime(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(1, bookings)
	en.CancelLead = 24 * time.Hour
	en.Now = func() time.Time { return mondaySlotStart.Add(-time.Hour) }
	ctx := context.Background()

	cp := models.Booking{
		ID:       "close-to-start",
		UserRef:  "user-1",
		RuleID:   "mon-10",
		Location: "room-A",
		Start:    mondaySlotStart,
		End:      mondaySlotStart.Add(time.Hour),
		Status:   models.BookingStatusConfirmed,
		Version:  2,
	}
	bookings.byID[cp.ID] = &cp

	var ve *ValidationError
	err := en.CancelBooking(ctx, cp.ID, "user-1")
	require.ErrorAs(t, err, &ve)
}

func TestListAvailableSlotsOmitsFullSlots(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(1, bookings)
	ctx := context.Background()

	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 14, 0, 0, 0, 0, time.UTC)

	slots, err := en.ListAvailableSlots(ctx, from, to, "room-A")
	require.NoError(t, err)
	require.Len(t, slots, 2) // both Mondays open

	_, err = en.Reserve(ctx, mondayRef(), "user-1")
	require.NoError(t, err)

	slots, err = en.ListAvailableSlots(ctx, from, to, "room-A")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-12-08", slots[0].Date)
}

func TestListAvailableSlotsDropsPast(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(1, bookings)
	en.Now = func() time.Time { return time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC) }

	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 14, 0, 0, 0, 0, time.UTC)

	slots, err := en.ListAvailableSlots(context.Background(), from, to, "room-A")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-12-08", slots[0].Date)
}

func TestListUserBookings(t *testing.T) {
	bookings := newFakeBookings()
	en := newTestEngine(2, bookings)
	ctx := context.Background()

	_, err := en.Reserve(ctx, mondayRef(), "user-1")
	require.NoError(t, err)
	_, err = en.Reserve(ctx, mondayRef(), "user-2")
	require.NoError(t, err)

	mine, err := en.ListUserBookings(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = en.ListUserBookings(ctx, "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
