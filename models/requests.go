package models

import "time"

// SlotReference addresses one generated slot instance: the rule it came
// from, the concrete location the caller wants, and the slot's start time.
type SlotReference struct {
	RuleID   string    `json:"ruleId" binding:"required"`
	Location string    `json:"location" binding:"required"`
	Start    time.Time `json:"start" binding:"required"`
}

// ReserveRequest is the payload for creating a booking.
type ReserveRequest struct {
	Slot    SlotReference `json:"slot" binding:"required"`
	UserRef string        `json:"userRef" binding:"required"`
}

// CancelRequest identifies the caller cancelling a booking.
type CancelRequest struct {
	UserRef string `json:"userRef" binding:"required"`
}
