package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used throughout the engine.
const DateLayout = "2006-01-02"

// LocationAny is the sentinel location meaning a rule applies to every
// concrete location. Bookings never store it; it is resolved to the
// requested location at reservation time.
const LocationAny = "any"

// RecurrenceKind selects how a schedule rule picks its dates.
type RecurrenceKind string

const (
	// RecurrenceWeekly matches a fixed set of weekdays.
	RecurrenceWeekly RecurrenceKind = "weekly"
	// RecurrenceDates matches an explicit set of calendar dates.
	RecurrenceDates RecurrenceKind = "dates"
)

// ScheduleRule describes a recurring availability window at a location.
type ScheduleRule struct {
	ID          string         `bson:"id" json:"id"`
	Kind        RecurrenceKind `bson:"kind" json:"kind"`
	Weekdays    []time.Weekday `bson:"weekdays,omitempty" json:"weekdays,omitempty"` // used when Kind == weekly
	Dates       []string       `bson:"dates,omitempty" json:"dates,omitempty"`       // used when Kind == dates
	StartMinute int            `bson:"startMinute" json:"startMinute"`               // minutes from midnight, local to Timezone
	EndMinute   int            `bson:"endMinute" json:"endMinute"`                   // <= StartMinute means the window crosses midnight
	Timezone    string         `bson:"timezone" json:"timezone"`                     // IANA name, e.g. "Europe/Amsterdam"
	Location    string         `bson:"location" json:"location"`                     // concrete identifier or LocationAny
	Capacity    int            `bson:"capacity" json:"capacity"`                     // simultaneous confirmed bookings per slot; 0 means 1
	ValidFrom   string         `bson:"validFrom,omitempty" json:"validFrom,omitempty"`
	ValidUntil  string         `bson:"validUntil,omitempty" json:"validUntil,omitempty"`
	Blackouts   []string       `bson:"blackouts,omitempty" json:"blackouts,omitempty"` // dates excluded even if the recurrence matches
}

// SlotCapacity returns the effective capacity of slots generated from the rule.
func (r ScheduleRule) SlotCapacity() int {
	if r.Capacity < 1 {
		return 1
	}
	return r.Capacity
}

// CrossesMidnight reports whether the rule's time window ends on the day
// after it starts.
func (r ScheduleRule) CrossesMidnight() bool {
	return r.EndMinute <= r.StartMinute
}

// Validate checks the rule's structural invariants.
func (r ScheduleRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	switch r.Kind {
	case RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			return fmt.Errorf("rule %s: weekly recurrence without weekdays", r.ID)
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("rule %s: invalid weekday %d", r.ID, wd)
			}
		}
	case RecurrenceDates:
		if len(r.Dates) == 0 {
			return fmt.Errorf("rule %s: date recurrence without dates", r.ID)
		}
		for _, d := range r.Dates {
			if _, err := time.Parse(DateLayout, d); err != nil {
				return fmt.Errorf("rule %s: invalid date %q: %w", r.ID, d, err)
			}
		}
	default:
		return fmt.Errorf("rule %s: unknown recurrence kind %q", r.ID, r.Kind)
	}
	if r.StartMinute < 0 || r.StartMinute >= 24*60 {
		return fmt.Errorf("rule %s: start minute %d out of range", r.ID, r.StartMinute)
	}
	if r.EndMinute < 1 || r.EndMinute > 24*60 {
		return fmt.Errorf("rule %s: end minute %d out of range", r.ID, r.EndMinute)
	}
	if r.EndMinute == r.StartMinute {
		return fmt.Errorf("rule %s: empty time window", r.ID)
	}
	if r.Capacity < 0 {
		return fmt.Errorf("rule %s: negative capacity %d", r.ID, r.Capacity)
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("rule %s: invalid timezone %q: %w", r.ID, r.Timezone, err)
	}
	var from, until time.Time
	var err error
	if r.ValidFrom != "" {
		if from, err = time.Parse(DateLayout, r.ValidFrom); err != nil {
			return fmt.Errorf("rule %s: invalid validFrom %q: %w", r.ID, r.ValidFrom, err)
		}
	}
	if r.ValidUntil != "" {
		if until, err = time.Parse(DateLayout, r.ValidUntil); err != nil {
			return fmt.Errorf("rule %s: invalid validUntil %q: %w", r.ID, r.ValidUntil, err)
		}
	}
	if !from.IsZero() && !until.IsZero() && from.After(until) {
		return fmt.Errorf("rule %s: validity window starts after it ends", r.ID)
	}
	for _, d := range r.Blackouts {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("rule %s: invalid blackout date %q: %w", r.ID, d, err)
		}
	}
	return nil
}
