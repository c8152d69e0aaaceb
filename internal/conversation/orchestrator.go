package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/resilience"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// DefaultEscalationThreshold is the consecutive-failure count at which
// a conversation is handed to a human instead of retrying.
const DefaultEscalationThreshold = 3

const escalationTimeout = 10 * time.Second

// Escalator performs the human-handoff side effects: pausing the bot
// on the messaging platform and alerting the salon. The tools package
// provides the real one.
type Escalator interface {
	Escalate(ctx context.Context, conversationID, phone, reason string, history []string) error
}

// slotPolicy is what the orchestrator needs from the scheduling
// validator: full validation for fresh selections plus the lighter
// staleness check applied to slots restored from a checkpoint.
type slotPolicy interface {
	booking.SlotChecker
	CheckFreshness(slot booking.Slot) error
}

// OrchestratorConfig tunes the per-turn pipeline. Zero values fall
// back to the package defaults.
type OrchestratorConfig struct {
	MessageWindow       int
	EscalationThreshold int

	// ObserveIntent reports each classified intent to metrics. May be
	// nil.
	ObserveIntent func(intent string)
}

// Orchestrator runs the full pipeline for one inbound message: load
// the checkpoint, classify, drive the matching handler, audit the
// reply and persist the new state. Callers serialize invocations per
// conversation with Store.Lock.
type Orchestrator struct {
	store         *Store
	classifier    *Classifier
	router        *Router
	slots         slotPolicy
	escalator     Escalator
	window        int
	threshold     int
	observeIntent func(intent string)
	logger        *logging.Logger
}

func NewOrchestrator(store *Store, classifier *Classifier, router *Router, slots slotPolicy, escalator Escalator, cfg OrchestratorConfig, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("conversation: store is required")
	}
	if classifier == nil {
		panic("conversation: classifier is required")
	}
	if router == nil {
		panic("conversation: router is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	window := cfg.MessageWindow
	if window <= 0 {
		window = DefaultMessageWindow
	}
	threshold := cfg.EscalationThreshold
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	return &Orchestrator{
		store:         store,
		classifier:    classifier,
		router:        router,
		slots:         slots,
		escalator:     escalator,
		window:        window,
		threshold:     threshold,
		observeIntent: cfg.ObserveIntent,
		logger:        logger.WithComponent("conversation.orchestrator"),
	}
}

// ProcessMessage handles one customer message end to end and returns
// the reply text. An empty reply with a nil error means the bot stays
// quiet (the conversation belongs to a human). The error return is
// reserved for turns that could not run at all, such as a lost Redis
// or a cancelled context; those turns persist nothing and the broker
// may redeliver.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, phone, text string) (string, error) {
	state, err := o.store.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if state == nil {
		state = NewState(conversationID, phone)
	}

	if state.Escalated {
		// A human owns this conversation. Keep the transcript growing
		// but never answer.
		state.Append(RoleCustomer, text, o.window)
		o.persist(ctx, state)
		return "", nil
	}

	if state.ErrorCount >= o.threshold {
		o.logger.Warn("error threshold reached, handing off",
			"conversation_id", conversationID,
			"error_count", state.ErrorCount,
		)
		state.ErrorCount = 0
		state.Escalated = true
		state.Append(RoleCustomer, text, o.window)
		state.Append(RoleAssistant, replyEscalated, o.window)
		o.fireEscalation(state, "demasiados errores seguidos en la conversación")
		o.persist(ctx, state)
		return replyEscalated, nil
	}

	fsm := booking.New(o.slots, o.logger)
	if state.FSM.State != "" {
		// First contact carries no snapshot; New already starts at IDLE.
		fsm.Restore(state.FSM)
	}
	if o.slots != nil {
		fsm.RefreshSlot(o.slots.CheckFreshness)
	}
	if state.CustomerID != "" && fsm.Data().CustomerID == "" {
		fsm.Patch(func(d *booking.CollectedData) { d.CustomerID = state.CustomerID })
	}

	// History is the window as loaded; the new message joins it only
	// after the turn resolves.
	history := state.LastMessages(len(state.Messages))

	intent, err := o.classifier.Classify(ctx, text, fsm.State(), fsm.Data(), history)
	if err != nil {
		if errors.Is(err, resilience.ErrBreakerOpen) {
			o.logger.Warn("classifier circuit open", "conversation_id", conversationID)
			return o.degradedTurn(ctx, state, text), nil
		}
		return "", err
	}

	if fsm.State() == booking.StateCustomerData && fsm.Data().NameConfirmationPending {
		intent = resolveNameConfirmation(intent, text)
	}
	if o.observeIntent != nil {
		o.observeIntent(string(intent.Type))
	}

	turn := &Turn{
		ConversationID: conversationID,
		CustomerPhone:  phone,
		Intent:         intent,
		FSM:            fsm,
		History:        history,
	}

	reply, err := o.router.Dispatch(ctx, turn)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		o.logger.Error("turn failed",
			"conversation_id", conversationID,
			"intent", intent.Type,
			"error", err,
		)
		return o.degradedTurn(ctx, state, text), nil
	}

	var escalateReason string
	audit := auditReply(reply.Text, reply.ToolsCalled, state.AppointmentCreated || reply.AppointmentCreated)
	if !audit.Coherent {
		o.logger.Error("reply audit failed, overriding",
			"conversation_id", conversationID,
			"reason", audit.Reason,
		)
		reply = Reply{Text: replyAuditOverride, Escalated: true, EscalationReason: audit.Reason}
		escalateReason = audit.Reason
	}

	if reply.AppointmentCreated {
		state.AppointmentCreated = true
	}
	if reply.Escalated {
		state.Escalated = true
	}
	if id := fsm.Data().CustomerID; id != "" {
		state.CustomerID = id
	}
	state.ErrorCount = 0
	state.FSM = fsm.Snapshot()
	state.Append(RoleCustomer, text, o.window)
	if reply.Text != "" {
		state.Append(RoleAssistant, reply.Text, o.window)
	}
	if escalateReason != "" {
		// The escalate intent path already ran its side effects through
		// the tool; only the audit override owes them here.
		o.fireEscalation(state, escalateReason)
	}
	o.persist(ctx, state)
	return reply.Text, nil
}

// degradedTurn answers with the canned apology, counts the failure
// toward the handoff threshold and checkpoints the exchange. The FSM
// snapshot is deliberately not updated: the failed turn rolls back.
func (o *Orchestrator) degradedTurn(ctx context.Context, state *State, text string) string {
	state.ErrorCount++
	state.Append(RoleCustomer, text, o.window)
	state.Append(RoleAssistant, replyDegraded, o.window)
	o.persist(ctx, state)
	return replyDegraded
}

func (o *Orchestrator) persist(ctx context.Context, state *State) {
	if err := o.store.Put(ctx, state.ConversationID, state); err != nil {
		o.logger.Error("checkpoint write failed",
			"conversation_id", state.ConversationID,
			"error", err,
		)
	}
}

// fireEscalation runs the handoff side effects in the background so a
// slow platform call never delays the reply. The transcript is copied
// before the goroutine starts.
func (o *Orchestrator) fireEscalation(state *State, reason string) {
	if o.escalator == nil {
		return
	}
	conversationID, phone := state.ConversationID, state.CustomerPhone
	history := make([]string, 0, len(state.Messages))
	for _, m := range state.Messages {
		history = append(history, m.Role+": "+m.Content)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), escalationTimeout)
		defer cancel()
		if err := o.escalator.Escalate(ctx, conversationID, phone, reason, history); err != nil {
			o.logger.Error("escalation side effects failed",
				"conversation_id", conversationID,
				"error", err,
			)
		}
	}()
}

// resolveNameConfirmation pins the intent while a proposed appointee
// name awaits a yes or no. The classifier often reads a bare "sí" as
// CONFIRM_BOOKING at this point, so short answers are resolved
// lexically instead.
func resolveNameConfirmation(intent booking.Intent, text string) booking.Intent {
	switch intent.Type {
	case booking.IntentConfirmName, booking.IntentCorrectName,
		booking.IntentProvideThirdPartyBooking, booking.IntentCancelBooking,
		booking.IntentEscalate:
		return intent
	}
	if name := strings.TrimSpace(intent.Entities.FirstName); name != "" {
		return booking.Intent{
			Type:       booking.IntentCorrectName,
			Entities:   booking.Entities{FirstName: name, LastName: intent.Entities.LastName},
			Confidence: intent.Confidence,
			RawMessage: intent.RawMessage,
		}
	}
	if isAffirmative(text) {
		return booking.Intent{Type: booking.IntentConfirmName, Confidence: 1, RawMessage: intent.RawMessage}
	}
	if isNegative(text) {
		return booking.Intent{Type: booking.IntentCorrectName, Confidence: 1, RawMessage: intent.RawMessage}
	}
	// Anything else re-renders the pending question.
	return booking.Intent{Type: booking.IntentProvideCustomerData, Confidence: 1, RawMessage: intent.RawMessage}
}

var affirmativeWords = map[string]bool{
	"sí": true, "si": true, "sip": true, "vale": true, "ok": true,
	"okay": true, "claro": true, "correcto": true, "perfecto": true,
	"exacto": true, "eso es": true, "genial": true,
}

var negativeWords = map[string]bool{
	"no": true, "nop": true, "que no": true, "no es": true,
	"qué va": true, "que va": true, "para nada": true,
}

func isAffirmative(text string) bool { return affirmativeWords[normalizeShort(text)] }

func isNegative(text string) bool { return negativeWords[normalizeShort(text)] }

func normalizeShort(text string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(text), "¡!¿?.,;: "))
}
