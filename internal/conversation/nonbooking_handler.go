package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const (
	maxChatRounds     = 3
	chatHistoryWindow = 5
)

type chatClient interface {
	Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type chatToolProvider interface {
	Definitions(names ...string) []openai.Tool
}

// NonBookingHandler answers everything outside the booking flow:
// greetings, FAQ, escalation, name changes and the replies to the 48h
// confirmation template. FAQ runs an LLM chat loop with read-only
// tools; the rest is deterministic.
type NonBookingHandler struct {
	llm       chatClient
	tools     ToolExecutor
	defs      chatToolProvider
	lifecycle *AppointmentLifecycle
	siteName  string
	logger    *logging.Logger
}

func NewNonBookingHandler(llm chatClient, tools ToolExecutor, defs chatToolProvider, lifecycle *AppointmentLifecycle, siteName string, logger *logging.Logger) *NonBookingHandler {
	if llm == nil {
		panic("conversation: chat client is required")
	}
	if tools == nil {
		panic("conversation: tool executor is required")
	}
	if siteName == "" {
		siteName = "nuestro salón"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &NonBookingHandler{
		llm:       llm,
		tools:     tools,
		defs:      defs,
		lifecycle: lifecycle,
		siteName:  siteName,
		logger:    logger.WithComponent("conversation.nonbooking"),
	}
}

func (h *NonBookingHandler) Handle(ctx context.Context, turn *Turn) (Reply, error) {
	switch turn.Intent.Type {
	case booking.IntentConfirmAppointment:
		if h.lifecycle != nil {
			return h.confirmAppointment(ctx, turn)
		}
	case booking.IntentDeclineAppointment:
		if h.lifecycle != nil {
			return h.declineAppointment(ctx, turn)
		}
	case booking.IntentEscalate:
		return h.escalate(ctx, turn, "la clienta pidió hablar con una persona")
	case booking.IntentUpdateName:
		if strings.TrimSpace(turn.Intent.Entities.FirstName) != "" {
			return h.updateName(ctx, turn)
		}
	}
	return h.chat(ctx, turn)
}

func (h *NonBookingHandler) confirmAppointment(ctx context.Context, turn *Turn) (Reply, error) {
	due, err := h.lifecycle.Confirm(ctx, turn.CustomerPhone)
	if err != nil {
		return Reply{}, err
	}
	if due == nil {
		return Reply{Text: replyNoPendingAppointment}, nil
	}
	return Reply{Text: replyAppointmentConfirmed}, nil
}

func (h *NonBookingHandler) declineAppointment(ctx context.Context, turn *Turn) (Reply, error) {
	due, err := h.lifecycle.Decline(ctx, turn.CustomerPhone)
	if err != nil {
		return Reply{}, err
	}
	if due == nil {
		return Reply{Text: replyNoPendingAppointment}, nil
	}
	return Reply{Text: replyAppointmentDeclined}, nil
}

// escalate hands the conversation to staff. The handoff is reported as
// done even when the tool fails: the conversation must go quiet either
// way, and the failure is in the logs for the on-call.
func (h *NonBookingHandler) escalate(ctx context.Context, turn *Turn, reason string) (Reply, error) {
	args := map[string]any{
		"conversation_id": turn.ConversationID,
		"phone":           turn.CustomerPhone,
		"reason":          reason,
		"history":         transcriptLines(turn.History, chatHistoryWindow),
	}
	if _, err := h.tools.Execute(ctx, "escalate_to_human", args); err != nil {
		h.logger.Error("escalation tool failed",
			"conversation_id", turn.ConversationID, "error", err)
	}
	return Reply{
		Text:             replyEscalated,
		ToolsCalled:      []string{"escalate_to_human"},
		Escalated:        true,
		EscalationReason: reason,
	}, nil
}

func (h *NonBookingHandler) updateName(ctx context.Context, turn *Turn) (Reply, error) {
	e := turn.Intent.Entities
	args := map[string]any{
		"action":     "update_name",
		"phone":      turn.CustomerPhone,
		"first_name": e.FirstName,
	}
	if e.LastName != "" {
		args["last_name"] = e.LastName
	}
	if _, err := h.tools.Execute(ctx, "manage_customer", args); err != nil {
		return Reply{}, fmt.Errorf("conversation: update name: %w", err)
	}
	name := strings.TrimSpace(e.FirstName + " " + e.LastName)
	return Reply{
		Text:        fmt.Sprintf("¡Hecho! He guardado tu nombre como %s. 😊", name),
		ToolsCalled: []string{"manage_customer"},
	}, nil
}

// chat runs the tool-enabled conversational loop for greetings, FAQ
// and anything the classifier could not place. The model may consult
// the read-only info tools; after maxChatRounds it must answer with
// whatever it has.
func (h *NonBookingHandler) chat(ctx context.Context, turn *Turn) (Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, chatHistoryWindow+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: h.systemPrompt(turn),
	})
	for _, m := range tailMessages(turn.History, chatHistoryWindow) {
		role := openai.ChatMessageRoleUser
		if m.Role == ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: turn.Intent.RawMessage,
	})

	var tools []openai.Tool
	if h.defs != nil {
		tools = h.defs.Definitions("query_info", "search_services")
	}

	var called []string
	for round := 0; round < maxChatRounds; round++ {
		resp, err := h.llm.Chat(ctx, openai.ChatCompletionRequest{
			Messages:    messages,
			Tools:       tools,
			MaxTokens:   600,
			Temperature: 0.7,
		})
		if err != nil {
			return Reply{}, fmt.Errorf("conversation: chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Reply{}, errors.New("conversation: chat completion returned no choices")
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			text := strings.TrimSpace(msg.Content)
			if text == "" {
				return Reply{Text: replyChatFallback, ToolsCalled: called}, nil
			}
			return Reply{Text: text, ToolsCalled: called}, nil
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			called = append(called, tc.Function.Name)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    h.runChatTool(ctx, tc),
				ToolCallID: tc.ID,
			})
		}
	}

	h.logger.Warn("chat rounds exhausted without a final answer",
		"conversation_id", turn.ConversationID, "tools_called", strings.Join(called, ","))
	return Reply{Text: replyChatFallback, ToolsCalled: called}, nil
}

// runChatTool executes one model-requested tool call and encodes the
// outcome as the JSON content of a role=tool message. Failures go back
// to the model as data so it can answer around them.
func (h *NonBookingHandler) runChatTool(ctx context.Context, tc openai.ToolCall) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		h.logger.Warn("malformed tool arguments from model", "tool", tc.Function.Name, "error", err)
		args = map[string]any{}
	}
	out, err := h.tools.Execute(ctx, tc.Function.Name, args)
	if err != nil {
		h.logger.Warn("chat tool failed", "tool", tc.Function.Name, "error", err)
		enc, _ := json.Marshal(map[string]any{"error": err.Error()})
		return string(enc)
	}
	enc, err := json.Marshal(out)
	if err != nil {
		return `{"error": "tool result could not be encoded"}`
	}
	return string(enc)
}

func (h *NonBookingHandler) systemPrompt(turn *Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the WhatsApp assistant for %s, a hair salon in Spain. ", h.siteName)
	b.WriteString("Answer in the customer's language, almost always Spanish. Be warm and brief, with at most one or two emojis. ")
	b.WriteString("Use the query_info tool for opening hours, address and salon policies, and search_services for service prices and durations. Never invent prices, hours or availability. ")
	b.WriteString("You cannot create bookings in this mode; if the customer wants an appointment, ask which service they would like so the booking flow can start.")
	if turn.FSM != nil && turn.FSM.State() != booking.StateIdle {
		fmt.Fprintf(&b, "\nThe customer is in the middle of booking (step: %s). Answer their question, then gently steer them back.", turn.FSM.State())
	}
	if len(turn.History) == 0 {
		b.WriteString("\nThis is the first contact: greet, say what you can do, and offer to book.")
	}
	return b.String()
}

func tailMessages(ms []Message, k int) []Message {
	if len(ms) <= k {
		return ms
	}
	return ms[len(ms)-k:]
}

func transcriptLines(ms []Message, k int) []string {
	tail := tailMessages(ms, k)
	lines := make([]string, 0, len(tail))
	for _, m := range tail {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return lines
}
