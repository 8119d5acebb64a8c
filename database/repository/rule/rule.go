package ruleRepo

import (
	"context"
	"time"

	"slotwise/models"
)

// RuleRepository defines the data access methods for schedule rules. Rules
// are owned by the admin collaborator; the engine only reads them.
type RuleRepository interface {
	// ListActiveRules returns rules whose validity window has not ended
	// before asOf.
	ListActiveRules(ctx context.Context, asOf time.Time) ([]models.ScheduleRule, error)
	// GetByID returns a rule or nil when it does not exist.
	GetByID(ctx context.Context, id string) (*models.ScheduleRule, error)
	// Create persists a new rule.
	Create(ctx context.Context, rule models.ScheduleRule) error
	// ReplaceAll swaps the whole rule set, matching how the schedule admin
	// saves edits.
	ReplaceAll(ctx context.Context, rules []models.ScheduleRule) error
	// Delete removes a rule and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}
