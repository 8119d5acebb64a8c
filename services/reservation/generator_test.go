package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwise/models"
)

func weeklyRule(id string, weekdays []time.Weekday, startMin, endMin int, loc string) models.ScheduleRule {
	return models.ScheduleRule{
		ID:          id,
		Kind:        models.RecurrenceWeekly,
		Weekdays:    weekdays,
		StartMinute: startMin,
		EndMinute:   endMin,
		Timezone:    "UTC",
		Location:    loc,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateWeeklyMondays(t *testing.T) {
	rules := []models.ScheduleRule{
		weeklyRule("mon-10", []time.Weekday{time.Monday}, 600, 660, "room-A"),
	}

	// 2025-12-01 and 2025-12-08 are the Mondays in this window.
	slots, err := Generate(rules, day(2025, 12, 1), day(2025, 12, 14))
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, "2025-12-01", slots[0].Date)
	assert.Equal(t, time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2025, 12, 1, 11, 0, 0, 0, time.UTC), slots[0].End)
	assert.Equal(t, "room-A", slots[0].Location)
	assert.Equal(t, 1, slots[0].Capacity)
	assert.Equal(t, "mon-10", slots[0].RuleID)
	assert.Equal(t, "2025-12-08", slots[1].Date)
}

func TestGenerateDeterministic(t *testing.T) {
	rules := []models.ScheduleRule{
		weeklyRule("b", []time.Weekday{time.Monday, time.Wednesday}, 540, 600, "room-B"),
		weeklyRule("a", []time.Weekday{time.Monday}, 540, 600, "room-A"),
	}

	first, err := Generate(rules, day(2025, 12, 1), day(2025, 12, 7))
	require.NoError(t, err)
	second, err := Generate(rules, day(2025, 12, 1), day(2025, 12, 7))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Equal start times order by rule ID.
	require.GreaterOrEqual(t, len(first), 2)
	assert.Equal(t, "a", first[0].RuleID)
	assert.Equal(t, "b", first[1].RuleID)
}

func TestGenerateCrossesMidnight(t *testing.T) {
	rule := models.ScheduleRule{
		ID:          "night",
		Kind:        models.RecurrenceDates,
		Dates:       []string{"2025-12-01"},
		StartMinute: 1380, // 23:00
		EndMinute:   60,   // 01:00 next day
		Timezone:    "UTC",
		Location:    "room-A",
	}

	// The window includes both the start date and the spill-over date; the
	// instance belongs to the date it starts on, so only one slot comes out.
	slots, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 1), day(2025, 12, 2))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-12-01", slots[0].Date)
	assert.Equal(t, time.Date(2025, 12, 1, 23, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2025, 12, 2, 1, 0, 0, 0, time.UTC), slots[0].End)
}

func TestGenerateBlackoutsAndValidity(t *testing.T) {
	rule := weeklyRule("mon", []time.Weekday{time.Monday}, 600, 660, "room-A")
	rule.Blackouts = []string{"2025-12-08"}
	rule.ValidUntil = "2025-12-14"

	slots, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 1), day(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, slots, 1) // Dec 8 blacked out, Dec 15+ past validity
	assert.Equal(t, "2025-12-01", slots[0].Date)
}

func TestGenerateValidFrom(t *testing.T) {
	rule := weeklyRule("mon", []time.Weekday{time.Monday}, 600, 660, "room-A")
	rule.ValidFrom = "2025-12-08"

	slots, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 1), day(2025, 12, 14))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-12-08", slots[0].Date)
}

func TestGenerateLocalTimezone(t *testing.T) {
	rule := weeklyRule("ams", []time.Weekday{time.Monday}, 600, 660, "room-A")
	rule.Timezone = "Europe/Amsterdam"

	slots, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 1), day(2025, 12, 1))
	require.NoError(t, err)
	require.Len(t, slots, 1)

	// 10:00 Amsterdam in December is 09:00 UTC.
	assert.Equal(t, time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC), slots[0].Start.UTC())
}

func TestGenerateWildcardLocationNormalized(t *testing.T) {
	rule := weeklyRule("w", []time.Weekday{time.Monday}, 600, 660, "")

	slots, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 1), day(2025, 12, 1))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.LocationAny, slots[0].Location)
}

func TestGenerateRejectsInvalidRule(t *testing.T) {
	rule := weeklyRule("bad", nil, 600, 660, "room-A")

	_, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 1), day(2025, 12, 7))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestGenerateRejectsReversedRange(t *testing.T) {
	rule := weeklyRule("mon", []time.Weekday{time.Monday}, 600, 660, "room-A")

	_, err := Generate([]models.ScheduleRule{rule}, day(2025, 12, 7), day(2025, 12, 1))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
