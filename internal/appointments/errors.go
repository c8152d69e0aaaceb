package appointments

import "errors"

var (
	// ErrMissingCustomer is returned when a request lacks the customer id
	ErrMissingCustomer = errors.New("customer id is required")

	// ErrMissingStylist is returned when a request lacks the stylist id
	ErrMissingStylist = errors.New("stylist id is required")

	// ErrMissingServices is returned when a request has no services
	ErrMissingServices = errors.New("at least one service is required")

	// ErrMissingStart is returned when a request lacks the start time
	ErrMissingStart = errors.New("start time is required")

	// ErrInvalidDuration is returned for non-positive durations
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrAppointmentNotFound is returned when no appointment matches
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned when a concurrent booking already holds
	// the stylist for an overlapping interval
	ErrSlotTaken = errors.New("slot already taken")
)
