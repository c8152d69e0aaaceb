package appointments

import (
	"strings"
	"time"
)

// Appointment statuses. Stored as strings; stable wire values.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusNoShow    = "NO_SHOW"
)

// Appointment is one reservation for a customer with a stylist covering
// one or more services.
type Appointment struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	StylistID          string     `json:"stylist_id"`
	ServiceIDs         []string   `json:"service_ids"`
	StartTime          time.Time  `json:"start_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	Status             string     `json:"status"`
	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`
	ReminderSentAt     *time.Time `json:"reminder_sent_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CalendarEventID    string     `json:"calendar_event_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// EndTime is the exclusive end of the reserved interval.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// CreateRequest carries the fields required to commit a booking.
type CreateRequest struct {
	CustomerID      string
	StylistID       string
	ServiceIDs      []string
	StartTime       time.Time
	DurationMinutes int
}

// Validate rejects requests the repository cannot persist.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return ErrMissingCustomer
	}
	if strings.TrimSpace(r.StylistID) == "" {
		return ErrMissingStylist
	}
	if len(r.ServiceIDs) == 0 {
		return ErrMissingServices
	}
	if r.StartTime.IsZero() {
		return ErrMissingStart
	}
	if r.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// DueAppointment is the scheduler's read model: the appointment joined
// with the contact fields needed to send a template.
type DueAppointment struct {
	Appointment
	CustomerPhone     string `json:"customer_phone"`
	CustomerFirstName string `json:"customer_first_name"`
	StylistName       string `json:"stylist_name"`
}
