package booking

import (
	"fmt"
	"time"
)

// Slot is a concrete appointment start offered to or chosen by the
// customer. StartTime is an ISO-8601 timestamp with a UTC offset, kept
// as a string so checkpoints round-trip byte for byte.
type Slot struct {
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	StylistID       string `json:"stylist_id,omitempty"`
	StylistName     string `json:"stylist_name,omitempty"`
	IsSoonestAny    bool   `json:"is_soonest_any,omitempty"`
}

// Start parses the slot's start time. The offset in the timestamp is
// required; a bare local time is an error.
func (s Slot) Start() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking: parse slot start %q: %w", s.StartTime, err)
	}
	return t, nil
}

// End returns the slot's end time, or the zero time when the start does
// not parse.
func (s Slot) End() (time.Time, error) {
	start, err := s.Start()
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(s.DurationMinutes) * time.Minute), nil
}
