package chatwoot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message is the relevant subset of a Chatwoot message record.
type Message struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	MessageType int    `json:"message_type"`
}

// Contact is the relevant subset of a Chatwoot contact record.
type Contact struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// Conversation is the relevant subset of a Chatwoot conversation.
type Conversation struct {
	ID      int64  `json:"id"`
	InboxID int64  `json:"inbox_id"`
	Status  string `json:"status"`
}

// Template describes an approved WhatsApp template send. Language and
// Category default to the values the templates were approved with.
type Template struct {
	Name       string
	Language   string
	Category   string
	BodyParams []string
}

func (t Template) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("chatwoot: template name required")
	}
	return nil
}

func (t Template) language() string {
	if t.Language == "" {
		return "es"
	}
	return t.Language
}

func (t Template) category() string {
	if t.Category == "" {
		return "UTILITY"
	}
	return t.Category
}

// params builds the template_params payload Chatwoot forwards to the
// WhatsApp provider. Body parameters are keyed "1".."N".
func (t Template) params() map[string]any {
	processed := make(map[string]string, len(t.BodyParams))
	for i, p := range t.BodyParams {
		processed[strconv.Itoa(i+1)] = p
	}
	return map[string]any{
		"name":     t.Name,
		"language": t.language(),
		"category": t.category(),
		"processed_params": map[string]any{
			"body": processed,
		},
	}
}

// renderedContent is the fallback text shown in the Chatwoot timeline.
func (t Template) renderedContent() string {
	if len(t.BodyParams) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s: %s", t.Name, strings.Join(t.BodyParams, " · "))
}

type outgoingMessage struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Private     bool   `json:"private"`
}

type outgoingTemplate struct {
	Content        string         `json:"content"`
	MessageType    string         `json:"message_type"`
	Private        bool           `json:"private"`
	TemplateParams map[string]any `json:"template_params"`
}

type apiError struct {
	StatusCode  int      `json:"-"`
	Message     string   `json:"message,omitempty"`
	Description string   `json:"description,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chatwoot: %s (status=%d)", e.Message, e.StatusCode)
	}
	if e.Description != "" {
		return fmt.Sprintf("chatwoot: %s (status=%d)", e.Description, e.StatusCode)
	}
	return fmt.Sprintf("chatwoot: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &apiError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	parsed.StatusCode = status
	return &parsed
}

func decodeJSON[T any](body []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("chatwoot: decode response: %w", err)
	}
	return &out, nil
}

// decodePayloadList decodes Chatwoot's list envelope {"payload": [...]}.
func decodePayloadList[T any](body []byte) ([]T, error) {
	var wrapper struct {
		Payload []T `json:"payload"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("chatwoot: decode list response: %w", err)
	}
	return wrapper.Payload, nil
}

// decodeContactPayload handles the contact-create envelope, which
// nests the record one level deeper than everything else.
func decodeContactPayload(body []byte) (*Contact, error) {
	var wrapper struct {
		Payload struct {
			Contact Contact `json:"contact"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("chatwoot: decode contact response: %w", err)
	}
	if wrapper.Payload.Contact.ID == 0 {
		// Some deployments return the contact at the top level.
		return decodeJSON[Contact](body)
	}
	return &wrapper.Payload.Contact, nil
}
