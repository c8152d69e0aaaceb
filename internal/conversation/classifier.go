package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/resilience"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// DefaultConfidenceThreshold is the minimum classifier confidence
// accepted before the intent collapses to UNKNOWN.
const DefaultConfidenceThreshold = 0.7

// classifierHistoryWindow bounds how many prior messages the prompt
// carries.
const classifierHistoryWindow = 5

const classifierSystemPrompt = `You are the intent classifier for a hair salon's WhatsApp assistant. Customers write in Spanish.
Given the conversation so far and the newest customer message, identify exactly one intent and extract its entities.

Respond with a single JSON object and nothing else:
{"intent_type": "<INTENT>", "entities": {...}, "confidence": <0.0-1.0>, "service_query": "<optional cleaned keywords>"}

Entity keys, all optional: "first_name", "last_name", "services" (list of service names), "slot" ({"start_time": ISO-8601 with offset}), "slot_time" (bare time like "12:30"), "selection_number" (int, when the customer picks an option by position), "stylist_id", "stylist_name", "notes", "date" (YYYY-MM-DD), "third_party" (bool).

Set "service_query" to the cleaned service keywords when the customer describes what they want done (e.g. "cortarme el pelo" -> "corte pelo").
Confidence reflects how sure you are of the intent choice, not of the entities.`

const intentDefinitions = `Intent definitions:
- START_BOOKING: wants to book an appointment ("quiero pedir cita", "quiero cortarme el pelo").
- SELECT_SERVICE: names one or more services to book.
- CONFIRM_SERVICES: done adding services ("ya está", "nada más", "solo eso").
- SELECT_STYLIST: picks a stylist by name or by position ("con María", "la primera"). When the customer has no preference ("me da igual", "cualquiera"), set stylist_id to "ANY".
- CHECK_AVAILABILITY: asks for different dates or times ("¿y el sábado?", "más tarde").
- SELECT_SLOT: picks a shown slot by position ("la 2"), by time ("a las 12:30"), or gives a full datetime.
- CONFIRM_STYLIST_CHANGE: accepts switching to the earlier stylist that was offered.
- PROVIDE_CUSTOMER_DATA: gives their name, or answers the notes question ("Maite", "ninguna", "sin notas").
- USE_CUSTOMER_NAME: says the booking is for themselves when we already know them ("para mí").
- CONFIRM_NAME: confirms the name we proposed is right ("sí", "correcto") while we are confirming a name.
- CORRECT_NAME: corrects the proposed name ("no, soy Lucía").
- PROVIDE_THIRD_PARTY_BOOKING: the appointment is for someone else ("es para mi madre").
- CONFIRM_BOOKING: accepts the final summary ("sí", "confirmo", "perfecto").
- CANCEL_BOOKING: abandons the booking flow ("olvídalo", "mejor no", "cancela").
- GREETING: greets with no other request ("hola", "buenos días").
- FAQ: asks about hours, prices, location, policies.
- ESCALATE: asks for a human ("quiero hablar con una persona").
- UPDATE_NAME: wants their stored name changed outside a booking.
- CONFIRM_APPOINTMENT: replies yes to an appointment confirmation reminder.
- DECLINE_APPOINTMENT: replies that they cannot attend the reminded appointment.
- UNKNOWN: none of the above fits.`

// Classifier extracts one Intent per customer turn through the LLM.
type Classifier struct {
	llm       LLMClient
	threshold float64
	logger    *logging.Logger
}

// NewClassifier builds the classifier. A non-positive threshold falls
// back to DefaultConfidenceThreshold.
func NewClassifier(llm LLMClient, threshold float64, logger *logging.Logger) *Classifier {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		llm:       llm,
		threshold: threshold,
		logger:    logger.WithComponent("conversation.classifier"),
	}
}

// classifierResult is the wire shape the model is asked to emit.
type classifierResult struct {
	IntentType   string           `json:"intent_type"`
	Entities     booking.Entities `json:"entities"`
	Confidence   float64          `json:"confidence"`
	ServiceQuery string           `json:"service_query"`
}

// Classify turns a raw customer message into an Intent. LLM transport
// failures come back as a synthetic UNKNOWN; only a breaker rejection
// or parent-context cancellation surfaces as an error.
func (c *Classifier) Classify(ctx context.Context, message string, state booking.State, data booking.CollectedData, history []Message) (booking.Intent, error) {
	unknown := booking.Intent{Type: booking.IntentUnknown, RawMessage: message}

	req := LLMRequest{
		System: []string{
			classifierSystemPrompt,
			intentDefinitions,
			c.stateContext(state, data),
		},
		Messages:    promptMessages(history, message),
		Temperature: 0.1,
		MaxTokens:   500,
		JSONMode:    true,
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, resilience.ErrBreakerOpen) {
			return booking.Intent{}, err
		}
		if ctx.Err() != nil {
			return booking.Intent{}, fmt.Errorf("conversation: classify: %w", ctx.Err())
		}
		c.logger.Warn("classifier llm failed, falling back to unknown", "error", err)
		return unknown, nil
	}

	var result classifierResult
	if err := json.Unmarshal(extractJSON(resp.Text), &result); err != nil {
		c.logger.Warn("classifier returned unparseable output",
			"error", err,
			"output_length", len(resp.Text),
		)
		return unknown, nil
	}

	intentType := booking.IntentType(strings.ToUpper(strings.TrimSpace(result.IntentType)))
	if !booking.KnownIntent(intentType) {
		c.logger.Warn("classifier named an unrecognized intent", "intent", result.IntentType)
		return unknown, nil
	}
	if result.Confidence < c.threshold {
		c.logger.Info("classifier confidence below threshold",
			"intent", intentType,
			"confidence", result.Confidence,
		)
		return unknown, nil
	}

	return booking.Intent{
		Type:         intentType,
		Entities:     result.Entities,
		Confidence:   result.Confidence,
		ServiceQuery: strings.TrimSpace(result.ServiceQuery),
		RawMessage:   message,
	}, nil
}

// stateContext tells the model where the flow is, which intents the
// FSM accepts there, and which data fields are already collected. Only
// key names travel, never values.
func (c *Classifier) stateContext(state booking.State, data booking.CollectedData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current booking state: %s.\n", state)

	valid := booking.IntentsFor(state)
	names := make([]string, 0, len(valid)+len(booking.NonBookingIntents))
	for _, t := range valid {
		names = append(names, string(t))
	}
	for _, t := range booking.NonBookingIntents {
		names = append(names, string(t))
	}
	fmt.Fprintf(&b, "Intents usable right now: %s.\n", strings.Join(names, ", "))

	if keys := presentDataKeys(data); len(keys) > 0 {
		fmt.Fprintf(&b, "Data already collected: %s.\n", strings.Join(keys, ", "))
	}

	switch state {
	case booking.StateServiceSelection:
		if data.AwaitingCategoryChoice {
			b.WriteString(`The assistant just asked which service category to book first. An answer naming a category or some of the listed services means CONFIRM_SERVICES with entities.services set to the service names to keep.`)
			break
		}
		b.WriteString(`A bare number like "1" means selecting service #1 from the shown list (SELECT_SERVICE with selection_number).`)
	case booking.StateStylistSelection:
		b.WriteString(`A bare number like "1" means selecting stylist #1 from the shown list (SELECT_STYLIST with selection_number).`)
	case booking.StateSlotSelection:
		b.WriteString(`A bare number like "1" means selecting slot #1 from the shown list (SELECT_SLOT with selection_number).`)
	case booking.StateCustomerData:
		b.WriteString(`A short word here is usually the customer's name or a notes answer (PROVIDE_CUSTOMER_DATA), not a confirmation.`)
	case booking.StateConfirmation:
		b.WriteString(`A plain "sí" here means CONFIRM_BOOKING.`)
	}

	return b.String()
}

// presentDataKeys lists the collected-data keys that hold something.
func presentDataKeys(d booking.CollectedData) []string {
	var keys []string
	if len(d.Services) > 0 {
		keys = append(keys, "services")
	}
	if d.StylistID != "" {
		keys = append(keys, "stylist_id")
	}
	if d.Slot != nil {
		keys = append(keys, "slot")
	}
	if len(d.SlotsShown) > 0 {
		keys = append(keys, "slots_shown")
	}
	if d.FirstName != "" {
		keys = append(keys, "first_name")
	}
	if d.LastName != "" {
		keys = append(keys, "last_name")
	}
	if d.Notes != "" {
		keys = append(keys, "notes")
	}
	if d.CustomerID != "" {
		keys = append(keys, "customer_id")
	}
	if d.NameConfirmationPending {
		keys = append(keys, "name_confirmation_pending")
	}
	if d.AwaitingCategoryChoice {
		keys = append(keys, "awaiting_category_choice")
	}
	if d.PendingStylistChange {
		keys = append(keys, "pending_stylist_change")
	}
	return keys
}

// promptMessages folds the last turns plus the new message into chat
// form.
func promptMessages(history []Message, message string) []ChatMessage {
	start := 0
	if len(history) > classifierHistoryWindow {
		start = len(history) - classifierHistoryWindow
	}
	msgs := make([]ChatMessage, 0, len(history)-start+1)
	for _, m := range history[start:] {
		role := m.Role
		if role != ChatRoleAssistant {
			role = ChatRoleUser
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: m.Content})
	}
	return append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})
}

// extractJSON strips optional markdown fences and trims to the
// outermost JSON object.
func extractJSON(text string) []byte {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return []byte(cleaned)
}
