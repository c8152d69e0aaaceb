package booking

import "strings"

// StylistAny marks "no preference": the flow advances without pinning
// a stylist, and availability searches span the whole team until a
// concrete slot fixes one.
const StylistAny = "ANY"

// ServiceDetail is a resolved catalog service carried inside the
// checkpoint, enough to compute durations and the prescribed category
// without another catalog lookup.
type ServiceDetail struct {
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CollectedData accumulates everything the flow has gathered so far.
// Every field serializes to JSON; the struct is the checkpoint payload.
type CollectedData struct {
	Services             []string        `json:"services,omitempty"`
	ServiceDetails       []ServiceDetail `json:"service_details,omitempty"`
	TotalDurationMinutes int             `json:"total_duration_minutes,omitempty"`

	StylistID   string `json:"stylist_id,omitempty"`
	StylistName string `json:"stylist_name,omitempty"`

	Slot       *Slot  `json:"slot,omitempty"`
	SlotsShown []Slot `json:"slots_shown,omitempty"`

	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Notes      string `json:"notes,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`

	// Flags owned by the transition logic.
	NotesAsked              bool `json:"notes_asked,omitempty"`
	DatePreferenceRequested bool `json:"date_preference_requested,omitempty"`
	AwaitingCategoryChoice  bool `json:"awaiting_category_choice,omitempty"`
	NameConfirmationPending bool `json:"name_confirmation_pending,omitempty"`
	AppointeeNameConfirmed  bool `json:"appointee_name_confirmed,omitempty"`
	UseCustomerName         bool `json:"use_customer_name,omitempty"`
	ThirdParty              bool `json:"third_party,omitempty"`

	// Pending stylist change, held until the customer confirms.
	PendingStylistChange bool   `json:"pending_stylist_change,omitempty"`
	PendingSlot          *Slot  `json:"pending_slot,omitempty"`
	PendingStylistID     string `json:"pending_stylist_id,omitempty"`
	PendingStylistName   string `json:"pending_stylist_name,omitempty"`
}

// AddServices appends names to the accumulated service list, skipping
// blanks and case-insensitive duplicates.
func (d *CollectedData) AddServices(names []string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if d.hasService(name) {
			continue
		}
		d.Services = append(d.Services, name)
	}
}

func (d *CollectedData) hasService(name string) bool {
	for _, s := range d.Services {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// PrimaryCategory returns the category the flow should search in,
// taken from the first resolved service detail.
func (d *CollectedData) PrimaryCategory() string {
	for _, det := range d.ServiceDetails {
		if det.Category != "" {
			return det.Category
		}
	}
	return ""
}

// reset clears everything except the linked customer record.
func (d *CollectedData) reset() {
	customerID := d.CustomerID
	*d = CollectedData{CustomerID: customerID}
}
