package booking

// IntentType identifies what the customer is trying to do in a single
// message. The classifier emits exactly one per turn.
type IntentType string

// Booking-flow intents. These drive FSM transitions.
const (
	IntentStartBooking            IntentType = "START_BOOKING"
	IntentSelectService           IntentType = "SELECT_SERVICE"
	IntentConfirmServices         IntentType = "CONFIRM_SERVICES"
	IntentSelectStylist           IntentType = "SELECT_STYLIST"
	IntentCheckAvailability       IntentType = "CHECK_AVAILABILITY"
	IntentSelectSlot              IntentType = "SELECT_SLOT"
	IntentConfirmStylistChange    IntentType = "CONFIRM_STYLIST_CHANGE"
	IntentProvideCustomerData     IntentType = "PROVIDE_CUSTOMER_DATA"
	IntentUseCustomerName         IntentType = "USE_CUSTOMER_NAME"
	IntentConfirmName             IntentType = "CONFIRM_NAME"
	IntentCorrectName             IntentType = "CORRECT_NAME"
	IntentProvideThirdPartyBooking IntentType = "PROVIDE_THIRD_PARTY_BOOKING"
	IntentConfirmBooking          IntentType = "CONFIRM_BOOKING"
	IntentCancelBooking           IntentType = "CANCEL_BOOKING"
)

// Conversational intents. These never move the FSM. The last two are
// lifecycle intents: replies to the 48-hour confirmation template.
const (
	IntentGreeting           IntentType = "GREETING"
	IntentFAQ                IntentType = "FAQ"
	IntentEscalate           IntentType = "ESCALATE"
	IntentUpdateName         IntentType = "UPDATE_NAME"
	IntentUnknown            IntentType = "UNKNOWN"
	IntentConfirmAppointment IntentType = "CONFIRM_APPOINTMENT"
	IntentDeclineAppointment IntentType = "DECLINE_APPOINTMENT"
)

// BookingIntents is the set routed to the booking handler.
var BookingIntents = []IntentType{
	IntentStartBooking,
	IntentSelectService,
	IntentConfirmServices,
	IntentSelectStylist,
	IntentCheckAvailability,
	IntentSelectSlot,
	IntentConfirmStylistChange,
	IntentProvideCustomerData,
	IntentUseCustomerName,
	IntentConfirmName,
	IntentCorrectName,
	IntentProvideThirdPartyBooking,
	IntentConfirmBooking,
	IntentCancelBooking,
}

// NonBookingIntents is the set routed to the conversational handler.
var NonBookingIntents = []IntentType{
	IntentGreeting,
	IntentFAQ,
	IntentEscalate,
	IntentUpdateName,
	IntentUnknown,
	IntentConfirmAppointment,
	IntentDeclineAppointment,
}

var bookingIntentSet = func() map[IntentType]struct{} {
	m := make(map[IntentType]struct{}, len(BookingIntents))
	for _, t := range BookingIntents {
		m[t] = struct{}{}
	}
	return m
}()

var nonBookingIntentSet = func() map[IntentType]struct{} {
	m := make(map[IntentType]struct{}, len(NonBookingIntents))
	for _, t := range NonBookingIntents {
		m[t] = struct{}{}
	}
	return m
}()

// IsBookingIntent reports whether t belongs to the booking flow.
func IsBookingIntent(t IntentType) bool {
	_, ok := bookingIntentSet[t]
	return ok
}

// IntentsFor lists the booking intents the transition table accepts in
// a state. CANCEL_BOOKING is valid from every state except BOOKED. The
// classifier feeds this list into its prompt so the model only picks
// intents the FSM can act on.
func IntentsFor(state State) []IntentType {
	switch state {
	case StateIdle:
		return []IntentType{IntentStartBooking, IntentCancelBooking}
	case StateServiceSelection:
		return []IntentType{IntentSelectService, IntentConfirmServices, IntentSelectStylist, IntentCancelBooking}
	case StateStylistSelection:
		return []IntentType{IntentSelectStylist, IntentCancelBooking}
	case StateSlotSelection:
		return []IntentType{IntentCheckAvailability, IntentSelectSlot, IntentConfirmStylistChange, IntentCancelBooking}
	case StateCustomerData:
		return []IntentType{
			IntentProvideCustomerData, IntentUseCustomerName, IntentConfirmName,
			IntentCorrectName, IntentProvideThirdPartyBooking, IntentCancelBooking,
		}
	case StateConfirmation:
		return []IntentType{IntentConfirmBooking, IntentCancelBooking}
	case StateBooked:
		return []IntentType{IntentStartBooking}
	}
	return nil
}

// KnownIntent reports whether t is any recognized intent type.
func KnownIntent(t IntentType) bool {
	if _, ok := bookingIntentSet[t]; ok {
		return true
	}
	_, ok := nonBookingIntentSet[t]
	return ok
}

// Entities carries the structured values the classifier extracted from
// the customer's message. All fields are optional.
type Entities struct {
	FirstName       string   `json:"first_name,omitempty"`
	LastName        string   `json:"last_name,omitempty"`
	Services        []string `json:"services,omitempty"`
	Slot            *Slot    `json:"slot,omitempty"`
	SlotTime        string   `json:"slot_time,omitempty"`
	StylistID       string   `json:"stylist_id,omitempty"`
	StylistName     string   `json:"stylist_name,omitempty"`
	SelectionNumber int      `json:"selection_number,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Date            string   `json:"date,omitempty"`
	ThirdParty      bool     `json:"third_party,omitempty"`
}

// Intent is one classified customer turn.
type Intent struct {
	Type         IntentType `json:"intent"`
	Entities     Entities   `json:"entities"`
	Confidence   float64    `json:"confidence"`
	ServiceQuery string     `json:"service_query,omitempty"`
	RawMessage   string     `json:"-"`
}
