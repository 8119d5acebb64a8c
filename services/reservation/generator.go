package reservation

import (
	"sort"
	"time"

	"slotwise/models"
)

// Generate expands rules into concrete slot instances for every calendar
// date in [from, to] (date parts only, inclusive). It is a pure function:
// identical inputs yield an identical, deterministically ordered sequence,
// ascending by start timestamp with ties broken by rule ID.
//
// A date produces a slot when it matches the rule's recurrence, falls inside
// the rule's validity window and is not blacked out. Windows that cross
// midnight end on the following date; the instance still belongs to the date
// it starts on, so no date is counted twice.
func Generate(rules []models.ScheduleRule, from, to time.Time) ([]models.SlotInstance, error) {
	fromDay := dateOnly(from)
	toDay := dateOnly(to)
	if toDay.Before(fromDay) {
		return nil, &ValidationError{Reason: "date range ends before it starts"}
	}

	var out []models.SlotInstance
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		tz, _ := time.LoadLocation(rule.Timezone) // Validate already checked it

		for d := fromDay; !d.After(toDay); d = d.AddDate(0, 0, 1) {
			ds := d.Format(models.DateLayout)
			if !ruleMatchesDate(rule, d, ds) {
				continue
			}
			start := time.Date(d.Year(), d.Month(), d.Day(), 0, rule.StartMinute, 0, 0, tz)
			endDay := d
			if rule.CrossesMidnight() {
				endDay = d.AddDate(0, 0, 1)
			}
			end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 0, rule.EndMinute, 0, 0, tz)

			out = append(out, models.SlotInstance{
				Date:     ds,
				Start:    start,
				End:      end,
				Location: NormalizeLocation(rule.Location),
				Capacity: rule.SlotCapacity(),
				RuleID:   rule.ID,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out, nil
}

// ruleMatchesDate applies the recurrence predicate plus validity window and
// blackout filtering for a single candidate date.
func ruleMatchesDate(rule models.ScheduleRule, d time.Time, ds string) bool {
	if rule.ValidFrom != "" && ds < rule.ValidFrom {
		return false
	}
	if rule.ValidUntil != "" && ds > rule.ValidUntil {
		return false
	}
	for _, b := range rule.Blackouts {
		if b == ds {
			return false
		}
	}
	switch rule.Kind {
	case models.RecurrenceWeekly:
		for _, wd := range rule.Weekdays {
			if d.Weekday() == wd {
				return true
			}
		}
	case models.RecurrenceDates:
		for _, rd := range rule.Dates {
			if rd == ds {
				return true
			}
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
