package conversation

import (
	"time"

	"github.com/salonware/booking-assistant/internal/booking"
)

// DefaultMessageWindow bounds the message history kept per
// conversation. A separate lifetime counter survives trimming.
const DefaultMessageWindow = 10

// Message roles as stored in the checkpoint window.
const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
)

// Message is one entry of the bounded conversation window.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the per-conversation checkpoint the orchestrator reads at
// the start of each turn and writes back at the end. It travels as
// JSON through the Redis store.
type State struct {
	ConversationID    string           `json:"conversation_id"`
	CustomerPhone     string           `json:"customer_phone"`
	CustomerID        string           `json:"customer_id,omitempty"`
	Messages          []Message        `json:"messages"`
	TotalMessageCount int              `json:"total_message_count"`
	FSM               booking.Snapshot `json:"fsm_state"`
	ErrorCount        int              `json:"error_count"`
	Escalated         bool             `json:"escalated"`
	// AppointmentCreated records that the book tool committed. The
	// auditor cross-checks it against a BOOKED FSM.
	AppointmentCreated bool      `json:"appointment_created"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewState initializes the checkpoint for a first-contact conversation.
func NewState(conversationID, customerPhone string) *State {
	now := time.Now().UTC()
	return &State{
		ConversationID: conversationID,
		CustomerPhone:  customerPhone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Append adds a message, trims the window to at most window entries,
// and bumps the lifetime counter.
func (s *State) Append(role, content string, window int) {
	if window <= 0 {
		window = DefaultMessageWindow
	}
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(s.Messages) > window {
		s.Messages = s.Messages[len(s.Messages)-window:]
	}
	s.TotalMessageCount++
}

// LastMessages returns up to k most recent messages, oldest first.
func (s *State) LastMessages(k int) []Message {
	if k <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if k > len(s.Messages) {
		k = len(s.Messages)
	}
	out := make([]Message, k)
	copy(out, s.Messages[len(s.Messages)-k:])
	return out
}
