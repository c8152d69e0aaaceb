package catalog

import "strings"

// Service categories. Stored as strings in the database and used as
// wire values in tool arguments, so the spelling is load-bearing.
const (
	CategoryHairdressing = "HAIRDRESSING"
	CategoryAesthetics   = "AESTHETICS"
)

// Service is one bookable catalog entry.
type Service struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category"`
	Active          bool   `json:"active"`
}

// Stylist is a member of staff with their own working calendar.
type Stylist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	CalendarID string   `json:"calendar_id"`
	Active     bool     `json:"active"`
}

// WorksIn reports whether the stylist covers the given category.
func (s *Stylist) WorksIn(category string) bool {
	for _, c := range s.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// ServiceOption is one candidate offered when a query is ambiguous.
type ServiceOption struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category"`
}

// ServiceDetail pairs a resolved service name with its duration, used
// to accumulate booking totals.
type ServiceDetail struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category"`
}
