package ruleRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotwise/database"
	"slotwise/models"
)

// MongoRuleRepo implements RuleRepository using MongoDB.
type MongoRuleRepo struct {
	coll *mongo.Collection
}

// NewMongoRuleRepo constructs a new instance of MongoRuleRepo.
func NewMongoRuleRepo() *MongoRuleRepo {
	return &MongoRuleRepo{coll: database.DB().Collection("schedule_rules")}
}

// EnsureIndexes creates the necessary indexes on the rule collection.
func (r *MongoRuleRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "validUntil", Value: 1}},
			Options: options.Index().SetName("valid_until_idx"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create rule indexes: %w", err)
	}
	return nil
}

// ListActiveRules returns rules still valid as of the given time. Rules
// without a validity end never expire.
func (r *MongoRuleRepo) ListActiveRules(ctx context.Context, asOf time.Time) ([]models.ScheduleRule, error) {
	asOfDate := asOf.Format(models.DateLayout)
	filter := bson.M{
		"$or": bson.A{
			bson.M{"validUntil": bson.M{"$exists": false}},
			bson.M{"validUntil": ""},
			bson.M{"validUntil": bson.M{"$gte": asOfDate}},
		},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing active rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []models.ScheduleRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("error decoding rules: %w", err)
	}
	return rules, nil
}

// GetByID retrieves a rule document by ID.
func (r *MongoRuleRepo) GetByID(ctx context.Context, id string) (*models.ScheduleRule, error) {
	var rule models.ScheduleRule
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching rule %s: %w", id, err)
	}
	return &rule, nil
}

// Create inserts a new rule document.
func (r *MongoRuleRepo) Create(ctx context.Context, rule models.ScheduleRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, rule); err != nil {
		return fmt.Errorf("error creating rule: %w", err)
	}
	return nil
}

// ReplaceAll swaps the entire rule set in one pass.
func (r *MongoRuleRepo) ReplaceAll(ctx context.Context, rules []models.ScheduleRule) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("error clearing rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rules))
	for i, rule := range rules {
		docs[i] = rule
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error inserting rules: %w", err)
	}
	return nil
}

// Delete removes a rule by ID.
func (r *MongoRuleRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, fmt.Errorf("error deleting rule %s: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}
