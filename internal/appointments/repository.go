package appointments

import (
	"context"
	"time"
)

// Repository defines the interface for appointment storage
type Repository interface {
	// Create commits a booking inside a transaction, failing with
	// ErrSlotTaken when the stylist already has an overlapping
	// PENDING or CONFIRMED appointment.
	Create(ctx context.Context, req *CreateRequest) (*Appointment, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	SetCalendarEventID(ctx context.Context, id, eventID string) error

	DueForConfirmation(ctx context.Context, from, to time.Time) ([]DueAppointment, error)
	DueForAutoCancel(ctx context.Context, now time.Time, sentBefore time.Time, startBefore time.Time) ([]DueAppointment, error)
	DueForReminder(ctx context.Context, from, to time.Time) ([]DueAppointment, error)
	PendingAwaitingReply(ctx context.Context, phone string) (*DueAppointment, error)

	MarkConfirmationSent(ctx context.Context, id string, at time.Time) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
}
