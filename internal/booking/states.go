package booking

// State is one stage of the booking flow. Values are stable strings
// used as the wire format in checkpoint snapshots.
type State string

const (
	StateIdle             State = "IDLE"
	StateServiceSelection State = "SERVICE_SELECTION"
	StateStylistSelection State = "STYLIST_SELECTION"
	StateSlotSelection    State = "SLOT_SELECTION"
	StateCustomerData     State = "CUSTOMER_DATA"
	StateConfirmation     State = "CONFIRMATION"
	StateBooked           State = "BOOKED"
)

// AllStates lists every valid state in flow order.
var AllStates = []State{
	StateIdle,
	StateServiceSelection,
	StateStylistSelection,
	StateSlotSelection,
	StateCustomerData,
	StateConfirmation,
	StateBooked,
}

var stateOrder = map[State]int{
	StateIdle:             0,
	StateServiceSelection: 1,
	StateStylistSelection: 2,
	StateSlotSelection:    3,
	StateCustomerData:     4,
	StateConfirmation:     5,
	StateBooked:           6,
}

// Valid reports whether s is one of the seven flow states.
func (s State) Valid() bool {
	_, ok := stateOrder[s]
	return ok
}

// Before reports whether s comes earlier in the flow than other.
func (s State) Before(other State) bool {
	return stateOrder[s] < stateOrder[other]
}
