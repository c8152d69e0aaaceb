package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Channel names shared by the workers and the webhook edge.
const (
	ChannelIncoming = "incoming_messages"
	ChannelOutgoing = "outgoing_messages"
)

var (
	errMissingConversation = errors.New("events: conversation_id is required")
	errMissingPhone        = errors.New("events: customer_phone is required")
)

// InboundMessage is one customer message delivered by the webhook edge
// on the incoming channel.
type InboundMessage struct {
	ConversationID string `json:"conversation_id"`
	CustomerPhone  string `json:"customer_phone"`
	MessageText    string `json:"message_text"`
}

// Validate checks the fields the orchestrator cannot work without.
func (m InboundMessage) Validate() error {
	if strings.TrimSpace(m.ConversationID) == "" {
		return errMissingConversation
	}
	if strings.TrimSpace(m.CustomerPhone) == "" {
		return errMissingPhone
	}
	return nil
}

// OutboundMessage is one assistant reply queued for the messaging
// gateway on the outgoing channel.
type OutboundMessage struct {
	ConversationID string `json:"conversation_id"`
	CustomerPhone  string `json:"customer_phone"`
	Message        string `json:"message"`
}

// Validate checks the fields the outbound worker cannot send without.
func (m OutboundMessage) Validate() error {
	if strings.TrimSpace(m.ConversationID) == "" {
		return errMissingConversation
	}
	if strings.TrimSpace(m.CustomerPhone) == "" {
		return errMissingPhone
	}
	return nil
}

// DecodeInbound parses and validates an incoming-channel payload.
func DecodeInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("events: decode inbound: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return InboundMessage{}, err
	}
	return msg, nil
}

// DecodeOutbound parses and validates an outgoing-channel payload.
func DecodeOutbound(data []byte) (OutboundMessage, error) {
	var msg OutboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return OutboundMessage{}, fmt.Errorf("events: decode outbound: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return OutboundMessage{}, err
	}
	return msg, nil
}

// Encode renders any event payload for publishing.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("events: encode: %w", err)
	}
	return data, nil
}
