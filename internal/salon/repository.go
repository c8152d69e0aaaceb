package salon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrPolicyNotFound is returned when a policy key is missing
var ErrPolicyNotFound = errors.New("policy not found")

// Repository defines the interface for salon configuration storage
type Repository interface {
	WeeklyHours(ctx context.Context) ([]BusinessHours, error)
	HoursFor(ctx context.Context, day time.Weekday) (*BusinessHours, error)
	IsHoliday(ctx context.Context, day time.Time) (bool, error)
	Holidays(ctx context.Context, from, to time.Time) ([]Holiday, error)
	Policy(ctx context.Context, key string) (string, error)
	PoliciesByPrefix(ctx context.Context, prefix string) ([]Policy, error)
}

// InMemoryRepository is a stub implementation backed by maps.
type InMemoryRepository struct {
	mu       sync.RWMutex
	hours    map[time.Weekday]BusinessHours
	holidays map[string]Holiday
	policies map[string]string
}

// NewInMemoryRepository creates an in-memory salon configuration.
func NewInMemoryRepository(hours []BusinessHours, holidays []Holiday, policies map[string]string) *InMemoryRepository {
	r := &InMemoryRepository{
		hours:    make(map[time.Weekday]BusinessHours),
		holidays: make(map[string]Holiday),
		policies: make(map[string]string),
	}
	for _, h := range hours {
		r.hours[h.DayOfWeek] = h
	}
	for _, h := range holidays {
		r.holidays[dayKey(h.Day)] = h
	}
	for k, v := range policies {
		r.policies[k] = v
	}
	return r
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeeklyHours returns the configured weekly schedule.
func (r *InMemoryRepository) WeeklyHours(ctx context.Context) ([]BusinessHours, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BusinessHours, 0, len(r.hours))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if h, ok := r.hours[d]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// HoursFor returns the window for one weekday; missing days count as closed.
func (r *InMemoryRepository) HoursFor(ctx context.Context, day time.Weekday) (*BusinessHours, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.hours[day]; ok {
		clone := h
		return &clone, nil
	}
	return &BusinessHours{DayOfWeek: day, Closed: true}, nil
}

// IsHoliday reports whether the calendar day is a configured closure.
func (r *InMemoryRepository) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.holidays[dayKey(day)]
	return ok, nil
}

// Holidays lists closures inside [from, to].
func (r *InMemoryRepository) Holidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Holiday
	for _, h := range r.holidays {
		if !h.Day.Before(from) && !h.Day.After(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Policy returns one policy value by key.
func (r *InMemoryRepository) Policy(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.policies[key]
	if !ok {
		return "", ErrPolicyNotFound
	}
	return v, nil
}

// PoliciesByPrefix returns every policy whose key starts with prefix.
func (r *InMemoryRepository) PoliciesByPrefix(ctx context.Context, prefix string) ([]Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Policy
	for k, v := range r.policies {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Policy{Key: k, Value: v})
		}
	}
	return out, nil
}
