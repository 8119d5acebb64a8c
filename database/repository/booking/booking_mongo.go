package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotwise/database"
	"slotwise/models"
	"slotwise/services/reservation"
)

// MongoBookingRepo implements reservation.BookingRepository using MongoDB.
//
// Three collections cooperate to make the read-then-write cycle safe across
// stateless instances:
//   - bookings: the booking records themselves;
//   - slot_claims: one counter document per slot instance, conditionally
//     incremented while below capacity;
//   - day_guards: one document per calendar day. Every confirm transaction
//     increments the guard of each day its interval touches, so any two
//     transactions with overlapping intervals write a common document and
//     MongoDB aborts one of them with a write conflict instead of letting
//     both snapshot reads miss each other.
type MongoBookingRepo struct {
	client     *mongo.Client
	bookings   *mongo.Collection
	slotClaims *mongo.Collection
	dayGuards  *mongo.Collection
}

// NewMongoBookingRepo constructs a new instance of MongoBookingRepo.
func NewMongoBookingRepo() *MongoBookingRepo {
	db := database.DB()
	return &MongoBookingRepo{
		client:     db.Client(),
		bookings:   db.Collection("bookings"),
		slotClaims: db.Collection("slot_claims"),
		dayGuards:  db.Collection("day_guards"),
	}
}

// EnsureIndexes creates the necessary indexes on the booking collections.
func (repo *MongoBookingRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// Primary conflict-read pattern: confirmed bookings at a location
		// inside a time window.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "location", Value: 1},
				{Key: "start", Value: 1},
				{Key: "end", Value: 1},
			},
			Options: options.Index().SetName("status_location_window_idx"),
		},
		{
			Keys:    bson.D{{Key: "user_ref", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_idx"),
		},
		// Sweep pattern for stale pending records.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("status_created_idx"),
		},
	}
	if _, err := repo.bookings.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}

// QueryConfirmed returns confirmed bookings intersecting [from, to) at the
// given location, ordered by start. The wildcard location drops the location
// filter entirely.
func (repo *MongoBookingRepo) QueryConfirmed(ctx context.Context, location string, from, to time.Time) ([]models.Booking, error) {
	filter := bson.M{
		"status": models.BookingStatusConfirmed,
		"start":  bson.M{"$lt": to},
		"end":    bson.M{"$gt": from},
	}
	if loc := reservation.NormalizeLocation(location); loc != models.LocationAny {
		filter["location"] = loc
	}
	cursor, err := repo.bookings.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error querying confirmed bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}

// CreatePending inserts the booking record in pending state. Pending records
// hold no capacity; the expiry worker sweeps abandoned ones.
func (repo *MongoBookingRepo) CreatePending(ctx context.Context, b *models.Booking) error {
	if _, err := repo.bookings.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("error creating pending booking: %w", err)
	}
	return nil
}

// ConfirmTransactionally runs the conditional commit: re-check conflicts,
// claim capacity and flip the pending record to confirmed, all in one
// transaction. Concurrent attempts on the same slot contend on the claim
// document; overlapping attempts on the same day contend on the day guards.
func (repo *MongoBookingRepo) ConfirmTransactionally(
	ctx context.Context,
	b *models.Booking,
	matchLocation string,
	capacity int,
) error {
	if capacity < 1 {
		capacity = 1
	}

	sess, err := repo.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		// Touch one guard per calendar day the interval intersects.
		for _, day := range guardDays(b.Start, b.End) {
			if _, err := repo.dayGuards.UpdateOne(sc,
				bson.M{"_id": day},
				bson.M{"$inc": bson.M{"version": 1}},
				options.Update().SetUpsert(true),
			); err != nil {
				return fmt.Errorf("guard update failed: %w", err)
			}
		}

		// Re-validate inside the transaction.
		existing, err := repo.queryConfirmedTxn(sc, matchLocation, b.Start, b.End)
		if err != nil {
			return err
		}
		candidate := models.SlotInstance{
			Start:    b.Start,
			End:      b.End,
			Location: matchLocation,
			Capacity: capacity,
			RuleID:   b.RuleID,
		}
		if reservation.HasConflict(candidate, b.Location, existing) {
			return reservation.ErrCommitConditionFailed
		}

		// Claim one capacity unit. A full slot makes the filter miss and the
		// upsert collide with the existing claim's _id.
		claimID := claimKey(b.RuleID, b.Start, b.End)
		if _, err := repo.slotClaims.UpdateOne(sc,
			bson.M{"_id": claimID, "count": bson.M{"$lt": capacity}},
			bson.M{"$inc": bson.M{"count": 1}},
			options.Update().SetUpsert(true),
		); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return reservation.ErrCommitConditionFailed
			}
			return fmt.Errorf("slot claim failed: %w", err)
		}

		res, err := repo.bookings.UpdateOne(sc,
			bson.M{"id": b.ID, "status": models.BookingStatusPending},
			bson.M{
				"$set": bson.M{"status": models.BookingStatusConfirmed},
				"$inc": bson.M{"version": 1},
			},
		)
		if err != nil {
			return fmt.Errorf("booking confirm failed: %w", err)
		}
		if res.MatchedCount == 0 {
			// The pending record expired or was cancelled underneath us.
			return reservation.ErrCommitConditionFailed
		}
		return nil
	}

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
	if err != nil {
		if errors.Is(err, reservation.ErrCommitConditionFailed) {
			return err
		}
		if isTransientTxnError(err) {
			return fmt.Errorf("%w: %v", reservation.ErrTransientTxn, err)
		}
		return fmt.Errorf("booking transaction failed: %w", err)
	}
	return nil
}

// Cancel marks a booking cancelled and, for confirmed bookings, releases its
// capacity claim in the same transaction.
func (repo *MongoBookingRepo) Cancel(ctx context.Context, bookingID string) error {
	sess, err := repo.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		var b models.Booking
		err := repo.bookings.FindOne(sc, bson.M{"id": bookingID}).Decode(&b)
		if err == mongo.ErrNoDocuments {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error fetching booking %s: %w", bookingID, err)
		}
		if b.Status == models.BookingStatusCancelled {
			return nil
		}
		if b.Status == models.BookingStatusConfirmed {
			claimID := claimKey(b.RuleID, b.Start, b.End)
			if _, err := repo.slotClaims.UpdateOne(sc,
				bson.M{"_id": claimID, "count": bson.M{"$gt": 0}},
				bson.M{"$inc": bson.M{"count": -1}},
			); err != nil {
				return fmt.Errorf("claim release failed: %w", err)
			}
		}
		if _, err := repo.bookings.UpdateOne(sc,
			bson.M{"id": bookingID},
			bson.M{
				"$set": bson.M{"status": models.BookingStatusCancelled},
				"$inc": bson.M{"version": 1},
			},
		); err != nil {
			return fmt.Errorf("booking cancel failed: %w", err)
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		return fmt.Errorf("cancel transaction failed: %w", err)
	}
	return nil
}

// GetByID returns a booking or nil when it does not exist.
func (repo *MongoBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	var b models.Booking
	err := repo.bookings.FindOne(ctx, bson.M{"id": bookingID}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching booking %s: %w", bookingID, err)
	}
	return &b, nil
}

// ListByUser returns all bookings for a user reference, newest first.
func (repo *MongoBookingRepo) ListByUser(ctx context.Context, userRef string) ([]models.Booking, error) {
	cursor, err := repo.bookings.Find(ctx,
		bson.M{"user_ref": userRef},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings for user: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}

// ExpireStalePending cancels pending bookings created before the cutoff.
// Pending records hold no capacity claim, so a plain bulk update suffices.
func (repo *MongoBookingRepo) ExpireStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := repo.bookings.UpdateMany(ctx,
		bson.M{
			"status":     models.BookingStatusPending,
			"created_at": bson.M{"$lt": olderThan},
		},
		bson.M{
			"$set": bson.M{"status": models.BookingStatusCancelled},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("error expiring pending bookings: %w", err)
	}
	return res.ModifiedCount, nil
}

// queryConfirmedTxn mirrors QueryConfirmed inside a session context.
func (repo *MongoBookingRepo) queryConfirmedTxn(sc mongo.SessionContext, location string, from, to time.Time) ([]models.Booking, error) {
	filter := bson.M{
		"status": models.BookingStatusConfirmed,
		"start":  bson.M{"$lt": to},
		"end":    bson.M{"$gt": from},
	}
	if loc := reservation.NormalizeLocation(location); loc != models.LocationAny {
		filter["location"] = loc
	}
	cursor, err := repo.bookings.Find(sc, filter)
	if err != nil {
		return nil, fmt.Errorf("conflict re-read failed: %w", err)
	}
	defer cursor.Close(sc)

	var bookings []models.Booking
	if err := cursor.All(sc, &bookings); err != nil {
		return nil, fmt.Errorf("conflict re-read decode failed: %w", err)
	}
	return bookings, nil
}

// claimKey identifies one slot instance: the rule it came from plus the
// exact interval. Wildcard slots booked at different locations still share
// the claim, which keeps wildcard capacity conservative.
func claimKey(ruleID string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", ruleID, start.UTC().Unix(), end.UTC().Unix())
}

// guardDays lists the UTC calendar days the half-open interval touches.
func guardDays(start, end time.Time) []string {
	var days []string
	last := end.UTC().Add(-time.Nanosecond)
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(models.DateLayout))
	}
	return days
}

// isTransientTxnError classifies driver failures that are safe to retry.
func isTransientTxnError(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if ce.HasErrorLabel("TransientTransactionError") || ce.HasErrorLabel("UnknownTransactionCommitResult") {
			return true
		}
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		if we.HasErrorLabel("TransientTransactionError") {
			return true
		}
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
