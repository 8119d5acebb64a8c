package reservation

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports malformed input or a slot reference that does not
// match any generated slot. Detected before any store write, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// CollisionError reports that a confirmed booking genuinely occupies the
// requested slot. A correctness signal, never retried.
type CollisionError struct {
	Location string
	Start    time.Time
	End      time.Time
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("slot unavailable: %s %s to %s",
		e.Location, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// TransientStoreError reports that the store kept aborting the reservation
// transaction until the attempt bound ran out. The caller may try again.
type TransientStoreError struct {
	Attempts int
	Err      error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("reservation did not commit after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// StoreUnavailableError reports that the store could not be reached at all.
// No partial writes are possible given the conditional-write semantics.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return "booking store unavailable: " + e.Err.Error()
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Sentinels a BookingRepository returns from ConfirmTransactionally so the
// engine can tell a failed commit condition from store contention.
var (
	// ErrCommitConditionFailed means the store detected a conflicting
	// booking (or exhausted capacity) at commit time. The engine re-reads
	// and classifies: a genuine overlap becomes a CollisionError.
	ErrCommitConditionFailed = errors.New("reservation: commit condition failed")
	// ErrTransientTxn means the transaction aborted due to contention and
	// the whole check-then-commit cycle may be retried.
	ErrTransientTxn = errors.New("reservation: transient transaction abort")
)
