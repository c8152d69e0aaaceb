package tools

import (
	"context"
	"fmt"

	"github.com/salonware/booking-assistant/pkg/logging"
)

type botToggler interface {
	SetBotEnabled(ctx context.Context, conversationID string, enabled bool) error
}

type escalationNotifier interface {
	Escalation(ctx context.Context, conversationID, phone, reason string)
}

// EscalationService hands a conversation to staff: it alerts the salon
// and pauses the bot on the platform conversation so a human can take
// over. It backs the escalate_to_human tool and the orchestrator's
// automatic handoffs.
type EscalationService struct {
	chatwoot botToggler
	notify   escalationNotifier
	logger   *logging.Logger
}

// NewEscalationService wires the handoff path. Both dependencies may
// be nil, which degrades to log-only handoffs.
func NewEscalationService(chatwoot botToggler, notify escalationNotifier, logger *logging.Logger) *EscalationService {
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationService{
		chatwoot: chatwoot,
		notify:   notify,
		logger:   logger.WithComponent("tools.escalation"),
	}
}

// Escalate alerts staff first and then pauses the bot, so the salon
// hears about the handoff even when the platform call fails. The
// transcript itself lives in the platform; history is only logged for
// the on-call trail.
func (s *EscalationService) Escalate(ctx context.Context, conversationID, phone, reason string, history []string) error {
	s.logger.Info("conversation handed off",
		"conversation_id", conversationID,
		"reason", reason,
		"history_lines", len(history),
	)
	if s.notify != nil {
		s.notify.Escalation(ctx, conversationID, phone, reason)
	}
	if s.chatwoot != nil {
		if err := s.chatwoot.SetBotEnabled(ctx, conversationID, false); err != nil {
			return fmt.Errorf("tools: pause bot for %s: %w", conversationID, err)
		}
	}
	return nil
}

// Tool exposes the handoff as the escalate_to_human tool.
func (s *EscalationService) Tool() *Tool {
	return &Tool{
		Name:        "escalate_to_human",
		Description: "Hand this conversation to a member of staff and stop answering automatically.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"conversation_id": map[string]any{"type": "string"},
				"phone":           map[string]any{"type": "string"},
				"reason": map[string]any{
					"type":        "string",
					"description": "Short reason for the handoff, shown to staff.",
				},
				"history": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"conversation_id", "reason"},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			reason := args.String("reason")
			if reason == "" {
				reason = "la clienta necesita atención personal"
			}
			err := s.Escalate(ctx, args.String("conversation_id"), args.String("phone"), reason, args.StringSlice("history"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"handed_off": true}, nil
		},
	}
}
