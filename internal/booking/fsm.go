// Package booking is the state machine behind the reservation flow:
// the transition table, per-state data requirements and the snapshot
// format checkpoints are built from. It has no side effects of its
// own; slot validation and the clock come in through interfaces.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// SlotChecker validates a chosen slot against structural rules and
// salon policy. The scheduling package provides the real one.
type SlotChecker interface {
	ValidateSlot(ctx context.Context, slot Slot) error
}

// TransitionResult is the outcome of one transition attempt. Failed
// attempts leave the FSM untouched; Errors carries machine-readable
// reasons the handler turns into a friendly redirect.
type TransitionResult struct {
	Success    bool
	From       State
	NewState   State
	Errors     []string
	Warning    string
	NextAction *Action
	Data       CollectedData
}

// FSM drives a single conversation's booking flow. It is not safe for
// concurrent use; the per-conversation lock upstream guarantees one
// turn at a time.
type FSM struct {
	state       State
	data        CollectedData
	lastUpdated time.Time
	slots       SlotChecker
	logger      *logging.Logger
	now         func() time.Time
}

// New returns a fresh FSM in IDLE. The checker may be nil, which
// disables slot policy validation.
func New(checker SlotChecker, logger *logging.Logger) *FSM {
	if logger == nil {
		logger = logging.Default()
	}
	return &FSM{
		state:  StateIdle,
		slots:  checker,
		logger: logger.WithComponent("booking.fsm"),
		now:    time.Now,
	}
}

// State returns the current flow state.
func (f *FSM) State() State { return f.state }

// Data returns a copy of the collected data.
func (f *FSM) Data() CollectedData { return f.data }

// LastUpdated reports when the FSM last changed.
func (f *FSM) LastUpdated() time.Time { return f.lastUpdated }

// Patch applies fn to the collected data in place. Handlers use it to
// record tool results such as resolved services or shown slots.
func (f *FSM) Patch(fn func(*CollectedData)) {
	fn(&f.data)
	f.lastUpdated = f.now()
}

// RefreshSlot re-checks a previously chosen slot after the state was
// loaded from a checkpoint. A slot that no longer passes is cleared,
// and a flow already past slot selection is pulled back to it. BOOKED
// conversations are left alone; their slot is historical.
func (f *FSM) RefreshSlot(check func(Slot) error) {
	if f.data.Slot == nil || f.state == StateBooked {
		return
	}
	err := check(*f.data.Slot)
	if err == nil {
		return
	}
	f.logger.Info("stale slot cleared",
		"state", f.state,
		"start_time", f.data.Slot.StartTime,
		"reason", err.Error(),
	)
	f.data.Slot = nil
	if StateSlotSelection.Before(f.state) {
		f.state = StateSlotSelection
	}
}

// ReopenSlotSelection clears the chosen slot and returns the flow to
// SLOT_SELECTION. The handler calls it when a concurrent booking took
// the slot between confirmation and commit.
func (f *FSM) ReopenSlotSelection() {
	f.data.Slot = nil
	f.data.PendingStylistChange = false
	f.data.PendingSlot = nil
	f.data.PendingStylistID = ""
	f.data.PendingStylistName = ""
	f.state = StateSlotSelection
	f.lastUpdated = f.now()
	f.logger.Info("slot selection reopened after booking conflict")
}

// Transition attempts to apply one classified intent. Business rule
// violations come back inside the result; the error return is reserved
// for unexpected failures such as a cancelled context during slot
// validation.
func (f *FSM) Transition(ctx context.Context, intent Intent) (TransitionResult, error) {
	from := f.state

	if intent.Type == IntentCancelBooking {
		return f.cancel(from), nil
	}

	merged := f.mergedView(intent.Entities)

	target, ok := f.target(from, intent, &merged)
	if !ok {
		return f.fail(from, fmt.Sprintf("transition not allowed from %s via %s", from, intent.Type)), nil
	}

	if missing := requiredData(from, intent, &merged); len(missing) > 0 {
		errs := make([]string, len(missing))
		for i, field := range missing {
			errs[i] = "missing required data: " + field
		}
		res := f.fail(from, errs...)
		return res, nil
	}

	// Slot picking carries its own validation and the stylist-change
	// guard; both can redirect the transition before anything merges.
	if from == StateSlotSelection && intent.Type == IntentSelectSlot {
		res, done, err := f.applySlotSelection(ctx, intent)
		if done || err != nil {
			return res, err
		}
	}
	if from == StateSlotSelection && intent.Type == IntentConfirmStylistChange {
		f.applyPendingStylist()
	}
	if from == StateBooked && intent.Type == IntentStartBooking {
		// Re-entering the flow after a completed booking starts clean,
		// keeping only the linked customer.
		f.data.reset()
	}

	f.merge(intent.Type, intent.Entities)
	f.state = target
	f.postHooks(from, intent.Type)
	f.lastUpdated = f.now()

	f.logger.Info("fsm transition",
		"from", from,
		"to", f.state,
		"intent", intent.Type,
	)

	action := f.RequiredAction(intent)
	return TransitionResult{
		Success:    true,
		From:       from,
		NewState:   f.state,
		NextAction: &action,
		Data:       f.data,
	}, nil
}

func (f *FSM) cancel(from State) TransitionResult {
	if from == StateBooked {
		return f.fail(from, fmt.Sprintf("transition not allowed from %s via %s", from, IntentCancelBooking))
	}
	f.data.reset()
	f.state = StateIdle
	f.lastUpdated = f.now()
	f.logger.Info("fsm transition", "from", from, "to", f.state, "intent", IntentCancelBooking)
	action := Action{Type: ActionGenerateResponse, ResponseTemplate: TemplateBookingCancelled}
	return TransitionResult{
		Success:    true,
		From:       from,
		NewState:   StateIdle,
		NextAction: &action,
		Data:       f.data,
	}
}

func (f *FSM) fail(from State, errs ...string) TransitionResult {
	return TransitionResult{
		Success:  false,
		From:     from,
		NewState: from,
		Errors:   errs,
		Data:     f.data,
	}
}

// target resolves the transition table cell. The CUSTOMER_DATA
// self-loop advances to CONFIRMATION once both the appointee name and
// the notes question are settled.
func (f *FSM) target(from State, intent Intent, merged *CollectedData) (State, bool) {
	switch from {
	case StateIdle:
		if intent.Type == IntentStartBooking {
			return StateServiceSelection, true
		}
	case StateServiceSelection:
		switch intent.Type {
		case IntentSelectService:
			return StateServiceSelection, true
		case IntentConfirmServices:
			return StateStylistSelection, true
		case IntentSelectStylist:
			// Shortcut, only when services exist and a stylist was named.
			if len(f.data.Services) > 0 && intent.Entities.StylistID != "" {
				return StateStylistSelection, true
			}
		}
	case StateStylistSelection:
		if intent.Type == IntentSelectStylist {
			return StateSlotSelection, true
		}
	case StateSlotSelection:
		switch intent.Type {
		case IntentCheckAvailability:
			return StateSlotSelection, true
		case IntentSelectSlot, IntentConfirmStylistChange:
			return StateCustomerData, true
		}
	case StateCustomerData:
		switch intent.Type {
		case IntentProvideCustomerData:
			if merged.FirstName != "" && f.data.NotesAsked && !f.data.NameConfirmationPending {
				return StateConfirmation, true
			}
			return StateCustomerData, true
		case IntentUseCustomerName, IntentConfirmName, IntentCorrectName, IntentProvideThirdPartyBooking:
			return StateCustomerData, true
		}
	case StateConfirmation:
		if intent.Type == IntentConfirmBooking {
			return StateBooked, true
		}
	case StateBooked:
		if intent.Type == IntentStartBooking {
			return StateServiceSelection, true
		}
	}
	return from, false
}

// requiredData returns the names of fields a cell needs but the merged
// view lacks.
func requiredData(from State, intent Intent, merged *CollectedData) []string {
	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	switch {
	case from == StateServiceSelection && intent.Type == IntentSelectService:
		need(len(merged.Services) > 0, "services")
	case from == StateServiceSelection && intent.Type == IntentConfirmServices:
		need(len(merged.Services) > 0, "services")
	case from == StateStylistSelection && intent.Type == IntentSelectStylist:
		need(merged.StylistID != "", "stylist_id")
	case from == StateSlotSelection && intent.Type == IntentSelectSlot:
		e := intent.Entities
		need(e.Slot != nil || e.SlotTime != "" || e.SelectionNumber > 0, "slot")
	case from == StateSlotSelection && intent.Type == IntentConfirmStylistChange:
		need(merged.PendingStylistChange && merged.PendingSlot != nil, "pending_stylist_change")
	case from == StateCustomerData && intent.Type == IntentConfirmName:
		need(merged.NameConfirmationPending, "name_confirmation_pending")
	case from == StateConfirmation && intent.Type == IntentConfirmBooking:
		need(len(merged.Services) > 0, "services")
		need(merged.StylistID != "", "stylist_id")
		need(merged.Slot != nil, "slot")
		need(merged.FirstName != "", "first_name")
	}
	return missing
}

// applySlotSelection resolves and validates the chosen slot. done is
// true when the transition already produced its result, either a
// failure or the stay-and-confirm stylist-change path.
func (f *FSM) applySlotSelection(ctx context.Context, intent Intent) (TransitionResult, bool, error) {
	from := f.state
	slot, warning := f.resolveSlotEntity(intent.Entities)
	if slot == nil {
		res := f.fail(from)
		res.Warning = warning
		return res, true, nil
	}

	if f.data.TotalDurationMinutes > 0 {
		slot.DurationMinutes = f.data.TotalDurationMinutes
	}

	if f.slots != nil {
		if err := f.slots.ValidateSlot(ctx, *slot); err != nil {
			if ctx.Err() != nil {
				return TransitionResult{}, true, ctx.Err()
			}
			return f.fail(from, err.Error()), true, nil
		}
	}

	// A slot borrowed from another stylist's calendar needs an explicit
	// go-ahead before the flow switches stylists.
	if slot.StylistID != "" && f.data.StylistID != "" && slot.StylistID != f.data.StylistID && slot.IsSoonestAny {
		f.data.PendingStylistChange = true
		f.data.PendingSlot = slot
		f.data.PendingStylistID = slot.StylistID
		f.data.PendingStylistName = slot.StylistName
		f.lastUpdated = f.now()
		action := f.RequiredAction(intent)
		return TransitionResult{
			Success:    true,
			From:       from,
			NewState:   StateSlotSelection,
			NextAction: &action,
			Data:       f.data,
		}, true, nil
	}

	f.data.Slot = slot
	if slot.StylistID != "" && (f.data.StylistID == "" || f.data.StylistID == StylistAny) {
		f.data.StylistID = slot.StylistID
		f.data.StylistName = slot.StylistName
	}
	return TransitionResult{}, false, nil
}

// resolveSlotEntity turns whatever the classifier extracted into a
// concrete slot: a full slot object, an index into the last shown
// list, or a bare time matched against it.
func (f *FSM) resolveSlotEntity(e Entities) (*Slot, string) {
	if e.Slot != nil && e.Slot.StartTime != "" {
		s := *e.Slot
		return &s, ""
	}
	if e.SelectionNumber > 0 {
		if e.SelectionNumber <= len(f.data.SlotsShown) {
			s := f.data.SlotsShown[e.SelectionNumber-1]
			return &s, ""
		}
		return nil, fmt.Sprintf("selection %d is out of range of the %d shown slots", e.SelectionNumber, len(f.data.SlotsShown))
	}
	if e.SlotTime != "" {
		for _, shown := range f.data.SlotsShown {
			if shown.StartTime == e.SlotTime || strings.Contains(shown.StartTime, e.SlotTime) {
				s := shown
				return &s, ""
			}
		}
		return nil, fmt.Sprintf("time %q does not match any shown slot", e.SlotTime)
	}
	return nil, "no slot in message"
}

func (f *FSM) applyPendingStylist() {
	d := &f.data
	if !d.PendingStylistChange || d.PendingSlot == nil {
		return
	}
	d.Slot = d.PendingSlot
	d.StylistID = d.PendingStylistID
	d.StylistName = d.PendingStylistName
	d.PendingStylistChange = false
	d.PendingSlot = nil
	d.PendingStylistID = ""
	d.PendingStylistName = ""
}

// merge folds intent entities into the collected data. Services
// accumulate; scalars overwrite when non-empty.
func (f *FSM) merge(t IntentType, e Entities) {
	d := &f.data

	d.AddServices(e.Services)
	if e.StylistID != "" {
		d.StylistID = e.StylistID
	}
	if e.StylistName != "" {
		d.StylistName = e.StylistName
	}
	if name := strings.TrimSpace(e.FirstName); name != "" {
		d.FirstName = name
	}
	if name := strings.TrimSpace(e.LastName); name != "" {
		d.LastName = name
	}
	if e.Notes != "" {
		d.Notes = e.Notes
	}

	switch t {
	case IntentUseCustomerName:
		d.UseCustomerName = true
		if d.FirstName != "" {
			d.NameConfirmationPending = true
		}
	case IntentConfirmName:
		d.NameConfirmationPending = false
		d.AppointeeNameConfirmed = true
	case IntentCorrectName:
		d.NameConfirmationPending = false
		d.UseCustomerName = false
		if strings.TrimSpace(e.FirstName) == "" {
			// A rejection without a replacement wipes the stored name
			// so the flow asks for it again.
			d.FirstName = ""
			d.LastName = ""
		} else {
			d.AppointeeNameConfirmed = true
		}
	case IntentProvideThirdPartyBooking:
		// The appointee changed, so the name and notes phases restart.
		d.ThirdParty = true
		d.UseCustomerName = false
		d.NameConfirmationPending = false
		d.FirstName = ""
		d.LastName = ""
		d.Notes = ""
		d.NotesAsked = false
	}
}

// postHooks applies side effects that depend on the edge just taken.
func (f *FSM) postHooks(from State, t IntentType) {
	d := &f.data

	if f.state == StateSlotSelection && from == StateStylistSelection {
		d.DatePreferenceRequested = false
		d.SlotsShown = nil
	}
	if f.state == StateStylistSelection {
		d.AwaitingCategoryChoice = false
	}

	// The notes question is owed as soon as a settled name exists. The
	// flag flips here so the following PROVIDE_CUSTOMER_DATA advances.
	if f.state == StateCustomerData && d.FirstName != "" && !d.NameConfirmationPending && !d.NotesAsked {
		d.NotesAsked = true
	}
}

// mergedView is the union of collected data and the intent's entities,
// used for requirement checks without mutating anything.
func (f *FSM) mergedView(e Entities) CollectedData {
	merged := f.data
	merged.Services = append([]string(nil), f.data.Services...)
	merged.AddServices(e.Services)
	if e.StylistID != "" {
		merged.StylistID = e.StylistID
	}
	if name := strings.TrimSpace(e.FirstName); name != "" {
		merged.FirstName = name
	}
	if e.Slot != nil {
		s := *e.Slot
		merged.Slot = &s
	}
	if e.Notes != "" {
		merged.Notes = e.Notes
	}
	return merged
}
