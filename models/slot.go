package models

import "time"

// SlotInstance is one concrete, datable occurrence derived from a schedule
// rule. Instances are computed on demand and never persisted; the same rule
// and date always produce the same instance.
type SlotInstance struct {
	Date     string    `json:"date"` // calendar date in the rule's timezone
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location"` // may still be LocationAny until a booking resolves it
	Capacity int       `json:"capacity"`
	RuleID   string    `json:"ruleId"`
}
