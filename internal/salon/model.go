package salon

import (
	"fmt"
	"time"
)

// BusinessHours is the opening window for one weekday. Times are local
// "HH:MM" strings in the salon timezone; Closed marks the whole day off.
type BusinessHours struct {
	DayOfWeek time.Weekday `json:"day_of_week"`
	Start     string       `json:"start"`
	End       string       `json:"end"`
	Closed    bool         `json:"closed"`
}

// Window parses the opening window into minutes from midnight. Closed
// days return ok=false.
func (h *BusinessHours) Window() (startMin, endMin int, ok bool) {
	if h.Closed {
		return 0, 0, false
	}
	start, err := ParseClock(h.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseClock(h.End)
	if err != nil || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// ParseClock converts an "HH:MM" string to minutes from midnight.
func ParseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("salon: bad clock value %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("salon: clock value %q out of range", s)
	}
	return hh*60 + mm, nil
}

// Holiday is one full-day closure beyond the weekly schedule.
type Holiday struct {
	Day  time.Time `json:"day"`
	Name string    `json:"name"`
}

// Policy is one key-value configuration entry. FAQ entries use keys
// prefixed "faq_".
type Policy struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FAQPrefix selects the policy entries surfaced by the FAQ lookup.
const FAQPrefix = "faq_"
