package notify

import "time"

// Notification types surfaced in the admin panel.
const (
	TypeBookingCreated   = "booking_created"
	TypeBookingCancelled = "booking_cancelled"
	TypeBookingConfirmed = "booking_confirmed"
	TypeConfirmationSent = "confirmation_sent"
	TypeEscalation       = "escalation"
)

// Notification is one admin panel record.
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
