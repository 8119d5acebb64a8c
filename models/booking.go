package models

import "time"

// Booking status values.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking represents a reservation of one slot instance.
type Booking struct {
	ID        string    `bson:"id" json:"id"`             // UUID assigned at creation
	UserRef   string    `bson:"user_ref" json:"user_ref"` // opaque user reference
	RuleID    string    `bson:"rule_id" json:"rule_id"`   // rule the booked slot was generated from
	Location  string    `bson:"location" json:"location"` // always concrete, never LocationAny
	Start     time.Time `bson:"start" json:"start"`       // UTC
	End       time.Time `bson:"end" json:"end"`           // UTC
	Status    string    `bson:"status" json:"status"`     // pending | confirmed | cancelled
	Version   int64     `bson:"version" json:"version"`   // advances on every state change
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
