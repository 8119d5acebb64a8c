package ruleRepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"slotwise/models"
	"slotwise/utils"
)

const activeRulesKey = "rules:active"

// CachedRuleRepo wraps a RuleRepository with a short-TTL Redis cache for the
// read-mostly active rule set. Writes invalidate the cache. Only rules are
// cached here; booking state never is.
type CachedRuleRepo struct {
	Inner RuleRepository
	Cache *redis.Client
	TTL   time.Duration
}

// NewCachedRuleRepo constructs a caching decorator around inner.
func NewCachedRuleRepo(inner RuleRepository, cache *redis.Client, ttl time.Duration) *CachedRuleRepo {
	return &CachedRuleRepo{Inner: inner, Cache: cache, TTL: ttl}
}

// ListActiveRules serves from Redis when possible. The cached set is the
// unfiltered active set; asOf filtering stays in the inner repo, so cached
// entries keep a TTL short enough that day boundaries don't matter.
func (r *CachedRuleRepo) ListActiveRules(ctx context.Context, asOf time.Time) ([]models.ScheduleRule, error) {
	logger := utils.GetLogger()

	key := activeRulesKey + ":" + asOf.Format(models.DateLayout)
	if data, err := r.Cache.Get(ctx, key).Result(); err == nil {
		var rules []models.ScheduleRule
		if jsonErr := json.Unmarshal([]byte(data), &rules); jsonErr == nil {
			return rules, nil
		}
		logger.Warn("discarding undecodable rule cache entry", zap.String("key", key))
	}

	rules, err := r.Inner.ListActiveRules(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if data, jsonErr := json.Marshal(rules); jsonErr == nil {
		if setErr := r.Cache.Set(ctx, key, data, r.TTL).Err(); setErr != nil {
			logger.Warn("failed to cache active rules", zap.Error(setErr))
		}
	}
	return rules, nil
}

// GetByID bypasses the cache; single-rule reads are rare and cheap.
func (r *CachedRuleRepo) GetByID(ctx context.Context, id string) (*models.ScheduleRule, error) {
	return r.Inner.GetByID(ctx, id)
}

// Create writes through and invalidates.
func (r *CachedRuleRepo) Create(ctx context.Context, rule models.ScheduleRule) error {
	if err := r.Inner.Create(ctx, rule); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// ReplaceAll writes through and invalidates.
func (r *CachedRuleRepo) ReplaceAll(ctx context.Context, rules []models.ScheduleRule) error {
	if err := r.Inner.ReplaceAll(ctx, rules); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// Delete writes through and invalidates.
func (r *CachedRuleRepo) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := r.Inner.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	r.invalidate(ctx)
	return existed, nil
}

func (r *CachedRuleRepo) invalidate(ctx context.Context) {
	iter := r.Cache.Scan(ctx, 0, activeRulesKey+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.Cache.Del(ctx, iter.Val()).Err(); err != nil {
			utils.GetLogger().Warn("failed to invalidate rule cache", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		utils.GetLogger().Warn("rule cache invalidation scan failed", zap.Error(err))
	}
}
