package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBotToggler struct {
	conversationID string
	enabled        *bool
	err            error
}

func (s *stubBotToggler) SetBotEnabled(ctx context.Context, conversationID string, enabled bool) error {
	s.conversationID = conversationID
	s.enabled = &enabled
	return s.err
}

type stubEscalationNotify struct {
	conversationID string
	phone          string
	reason         string
}

func (s *stubEscalationNotify) Escalation(ctx context.Context, conversationID, phone, reason string) {
	s.conversationID, s.phone, s.reason = conversationID, phone, reason
}

func TestEscalateNotifiesAndPausesBot(t *testing.T) {
	chatwoot := &stubBotToggler{}
	notify := &stubEscalationNotify{}
	svc := NewEscalationService(chatwoot, notify, nil)

	err := svc.Escalate(context.Background(), "conv-1", "+34600111222", "pide hablar con una persona", []string{"customer: quiero hablar con alguien"})
	require.NoError(t, err)

	assert.Equal(t, "conv-1", notify.conversationID)
	assert.Equal(t, "+34600111222", notify.phone)
	assert.Equal(t, "pide hablar con una persona", notify.reason)
	assert.Equal(t, "conv-1", chatwoot.conversationID)
	require.NotNil(t, chatwoot.enabled)
	assert.False(t, *chatwoot.enabled)
}

func TestEscalateStillNotifiesWhenPauseFails(t *testing.T) {
	chatwoot := &stubBotToggler{err: errors.New("chatwoot: 502")}
	notify := &stubEscalationNotify{}
	svc := NewEscalationService(chatwoot, notify, nil)

	err := svc.Escalate(context.Background(), "conv-1", "+34600111222", "error repetido", nil)
	require.Error(t, err)
	assert.Equal(t, "error repetido", notify.reason)
}

func TestEscalateToolDefaultsReason(t *testing.T) {
	notify := &stubEscalationNotify{}
	tool := NewEscalationService(&stubBotToggler{}, notify, nil).Tool()

	out, err := tool.Run(context.Background(), Args{"conversation_id": "conv-9", "phone": "+34600111222"})
	require.NoError(t, err)

	assert.Equal(t, true, out["handed_off"])
	assert.Equal(t, "la clienta necesita atención personal", notify.reason)
}
