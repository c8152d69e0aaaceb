package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/salonware/booking-assistant/internal/appointments"
	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/customers"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// ToolExecutor runs one named tool. The tools package provides the
// registry-backed implementation.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

type serviceDurations interface {
	Durations(ctx context.Context, names []string) ([]catalog.ServiceDetail, int, error)
}

type stylistDirectory interface {
	Get(ctx context.Context, category string) ([]catalog.Stylist, error)
}

type customerLookup interface {
	GetByPhone(ctx context.Context, phone string) (*customers.Customer, error)
}

// Turn is the per-message context a handler operates on. The FSM is
// live: handlers mutate it and the orchestrator persists the result.
type Turn struct {
	ConversationID string
	CustomerPhone  string
	Intent         booking.Intent
	FSM            *booking.FSM
	History        []Message
}

// Reply is a handler's outcome for one turn.
type Reply struct {
	Text               string
	ToolsCalled        []string
	AppointmentCreated bool
	Escalated          bool
	EscalationReason   string
}

// BookingHandler executes booking intents: it drives the FSM, runs the
// prescribed tools and renders the reply.
type BookingHandler struct {
	tools     ToolExecutor
	catalog   serviceDurations
	stylists  stylistDirectory
	customers customerLookup
	formatter *Formatter
	logger    *logging.Logger
}

func NewBookingHandler(tools ToolExecutor, cat serviceDurations, stylists stylistDirectory, custs customerLookup, formatter *Formatter, logger *logging.Logger) *BookingHandler {
	if tools == nil {
		panic("conversation: tool executor is required")
	}
	if cat == nil {
		panic("conversation: service catalog is required")
	}
	if formatter == nil {
		panic("conversation: formatter is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{
		tools:     tools,
		catalog:   cat,
		stylists:  stylists,
		customers: custs,
		formatter: formatter,
		logger:    logger.WithComponent("conversation.booking"),
	}
}

func (h *BookingHandler) Handle(ctx context.Context, turn *Turn) (Reply, error) {
	fsm := turn.FSM
	before := fsm.Data()

	if turn.Intent.Type == booking.IntentSelectStylist {
		h.resolveStylistEntity(ctx, fsm, &turn.Intent)
	}
	if turn.Intent.Type == booking.IntentUseCustomerName {
		h.resolveCustomerName(ctx, turn, fsm, &turn.Intent)
	}

	res, err := fsm.Transition(ctx, turn.Intent)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: transition via %s: %w", turn.Intent.Type, err)
	}
	if !res.Success {
		h.logger.Info("transition rejected",
			"conversation_id", turn.ConversationID,
			"state", res.From,
			"intent", turn.Intent.Type,
			"errors", strings.Join(res.Errors, "; "),
			"warning", res.Warning,
		)
		return Reply{Text: redirectFor(res.NewState)}, nil
	}

	h.reconcileServices(ctx, fsm, before, turn.Intent)

	// Derive the action after reconciliation: resolved categories and
	// the mixed-category flag change what the state prescribes.
	action := fsm.RequiredAction(turn.Intent)
	switch action.Type {
	case booking.ActionCallTools:
		return h.runTools(ctx, turn, action)
	case booking.ActionGenerateResponse:
		return Reply{Text: h.formatter.Format(ctx, action, nil, fsm.Data())}, nil
	default:
		return Reply{Text: redirectFor(fsm.State())}, nil
	}
}

// resolveStylistEntity maps a stylist named by the customer, or picked
// by position from the shown list, onto a directory id. The "ANY"
// sentinel from the classifier passes through untouched.
func (h *BookingHandler) resolveStylistEntity(ctx context.Context, fsm *booking.FSM, intent *booking.Intent) {
	e := &intent.Entities
	if e.StylistID != "" || h.stylists == nil {
		return
	}
	data := fsm.Data()
	list, err := h.stylists.Get(ctx, data.PrimaryCategory())
	if err != nil {
		h.logger.Warn("stylist lookup failed", "error", err)
		return
	}
	if n := e.SelectionNumber; n > 0 && n <= len(list) {
		e.StylistID = list[n-1].ID
		e.StylistName = list[n-1].Name
		return
	}
	if name := strings.ToLower(strings.TrimSpace(e.StylistName)); name != "" {
		for _, st := range list {
			if strings.Contains(strings.ToLower(st.Name), name) {
				e.StylistID = st.ID
				e.StylistName = st.Name
				return
			}
		}
	}
}

// resolveCustomerName fills the appointee name from the customer record
// when the booking is "a mi nombre". An unknown phone leaves the
// entities empty, so the flow asks for the name instead.
func (h *BookingHandler) resolveCustomerName(ctx context.Context, turn *Turn, fsm *booking.FSM, intent *booking.Intent) {
	if h.customers == nil || intent.Entities.FirstName != "" || fsm.Data().FirstName != "" {
		return
	}
	cust, err := h.customers.GetByPhone(ctx, turn.CustomerPhone)
	if err != nil {
		if !errors.Is(err, customers.ErrCustomerNotFound) {
			h.logger.Warn("customer lookup failed", "error", err)
		}
		return
	}
	if cust.FirstName == "" {
		return
	}
	intent.Entities.FirstName = cust.FirstName
	intent.Entities.LastName = cust.LastName
	fsm.Patch(func(d *booking.CollectedData) { d.CustomerID = cust.ID })
}

// reconcileServices keeps service details and the duration total in
// step with the accumulated service names, applies a pending category
// choice, and raises the mixed-category question when services span
// both hairdressing and aesthetics.
func (h *BookingHandler) reconcileServices(ctx context.Context, fsm *booking.FSM, before booking.CollectedData, intent booking.Intent) {
	if before.AwaitingCategoryChoice && fsm.State() == booking.StateStylistSelection {
		h.applyCategoryChoice(fsm, intent.Entities.Services)
	}

	d := fsm.Data()
	if len(d.Services) == 0 || detailsCover(d) {
		return
	}
	details, total, err := h.catalog.Durations(ctx, d.Services)
	if err != nil {
		h.logger.Warn("service durations lookup failed",
			"services", strings.Join(d.Services, ", "), "error", err)
		return
	}
	fsm.Patch(func(cd *booking.CollectedData) {
		cd.ServiceDetails = toBookingDetails(details)
		cd.TotalDurationMinutes = total
	})

	if fsm.State() == booking.StateServiceSelection && categoryCount(details) > 1 {
		fsm.Patch(func(cd *booking.CollectedData) { cd.AwaitingCategoryChoice = true })
	}
}

// applyCategoryChoice narrows the accumulated services to the ones the
// customer chose to book first. The classifier names the kept services
// in the entities; unknown names leave the list untouched.
func (h *BookingHandler) applyCategoryChoice(fsm *booking.FSM, chosen []string) {
	if len(chosen) == 0 {
		return
	}
	keep := make(map[string]bool, len(chosen))
	for _, name := range chosen {
		keep[strings.ToLower(strings.TrimSpace(name))] = true
	}
	fsm.Patch(func(d *booking.CollectedData) {
		var services []string
		for _, s := range d.Services {
			if keep[strings.ToLower(s)] {
				services = append(services, s)
			}
		}
		if len(services) == 0 {
			return
		}
		d.Services = services
		d.ServiceDetails = nil
		d.TotalDurationMinutes = 0
	})
}

func (h *BookingHandler) runTools(ctx context.Context, turn *Turn, action booking.Action) (Reply, error) {
	fsm := turn.FSM
	extra := make(map[string]any)
	var called []string

	for _, call := range action.ToolCalls {
		out, err := h.tools.Execute(ctx, call.Name, h.callArgs(turn, call))
		called = append(called, call.Name)
		if err != nil {
			if call.Name == "book" && errors.Is(err, appointments.ErrSlotTaken) {
				fsm.ReopenSlotSelection()
				h.logger.Info("slot taken at commit, selection reopened",
					"conversation_id", turn.ConversationID)
				return Reply{Text: replySlotTaken, ToolsCalled: called}, nil
			}
			if call.Required {
				return Reply{}, fmt.Errorf("conversation: tool %s: %w", call.Name, err)
			}
			h.logger.Warn("optional tool failed, continuing", "tool", call.Name, "error", err)
			extra[call.Name] = map[string]any{"error": err.Error()}
			continue
		}
		h.logger.Info("tool executed",
			"conversation_id", turn.ConversationID,
			"tool", call.Name,
			"args", strings.Join(argKeys(call.Args), ","),
		)
		extra[call.Name] = out
	}

	template := action.ResponseTemplate
	reply := Reply{ToolsCalled: called}

	if m, ok := extra["search_services"].(map[string]any); ok {
		template = "service_options"
		extra["options"] = m["options"]
	}
	if m, ok := extra["list_stylists"].(map[string]any); ok {
		template = "stylist_options"
		extra["stylists"] = m["stylists"]
	}
	if m, ok := extra["find_next_available"].(map[string]any); ok {
		template = "slot_options"
		extra["slot_labels"] = h.recordShownSlots(fsm, slotsFromResult(m))
	}
	if m, ok := extra["check_availability"].(map[string]any); ok {
		if holiday, _ := m["holiday_detected"].(bool); holiday {
			return Reply{Text: replyHolidayClosed, ToolsCalled: called}, nil
		}
		template = "slot_options"
		slots, _ := m["available_slots"].([]booking.Slot)
		extra["slot_labels"] = h.recordShownSlots(fsm, slots)
	}
	if m, ok := extra["book"].(map[string]any); ok {
		reply.AppointmentCreated = true
		if id, _ := m["customer_id"].(string); id != "" {
			fsm.Patch(func(d *booking.CollectedData) { d.CustomerID = id })
		}
	}

	action.ResponseTemplate = template
	reply.Text = h.formatter.Format(ctx, action, extra, fsm.Data())
	return reply, nil
}

// callArgs copies the prescribed args and injects the identity fields
// the tool layer needs. Identity never comes from the model.
func (h *BookingHandler) callArgs(turn *Turn, call booking.ToolCall) map[string]any {
	args := make(map[string]any, len(call.Args)+2)
	for k, v := range call.Args {
		args[k] = v
	}
	if call.Name == "book" {
		args["conversation_id"] = turn.ConversationID
		args["phone"] = turn.CustomerPhone
	}
	return args
}

// recordShownSlots stores the offered slots on the FSM so a later "la
// 2" resolves by position, and returns their display labels in the
// same order.
func (h *BookingHandler) recordShownSlots(fsm *booking.FSM, slots []booking.Slot) []string {
	fsm.Patch(func(d *booking.CollectedData) { d.SlotsShown = slots })
	labels := make([]string, len(slots))
	for i, s := range slots {
		label := h.formatter.SlotLabel(s)
		if s.IsSoonestAny {
			label += " (el hueco más temprano)"
		}
		labels[i] = label
	}
	return labels
}

// slotsFromResult flattens a find_next_available result: the selected
// stylist's slots first, then the soonest-any slot as the final
// numbered option when it is not already in the list.
func slotsFromResult(m map[string]any) []booking.Slot {
	slots, _ := m["selected_stylist_slots"].([]booking.Slot)
	out := append([]booking.Slot(nil), slots...)
	if sa, ok := m["soonest_any"].(*booking.Slot); ok && sa != nil {
		s := *sa
		s.IsSoonestAny = true
		if !containsSlot(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func containsSlot(slots []booking.Slot, s booking.Slot) bool {
	for _, have := range slots {
		if have.StartTime == s.StartTime && have.StylistID == s.StylistID {
			return true
		}
	}
	return false
}

func detailsCover(d booking.CollectedData) bool {
	if len(d.ServiceDetails) != len(d.Services) {
		return false
	}
	for i, s := range d.Services {
		if !strings.EqualFold(d.ServiceDetails[i].Name, s) {
			return false
		}
	}
	return true
}

func toBookingDetails(details []catalog.ServiceDetail) []booking.ServiceDetail {
	out := make([]booking.ServiceDetail, len(details))
	for i, det := range details {
		out[i] = booking.ServiceDetail{
			Name:            det.Name,
			Category:        det.Category,
			DurationMinutes: det.DurationMinutes,
		}
	}
	return out
}

func categoryCount(details []catalog.ServiceDetail) int {
	seen := make(map[string]bool, 2)
	for _, det := range details {
		if det.Category != "" {
			seen[det.Category] = true
		}
	}
	return len(seen)
}

func argKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
