// Package chatwoot wraps the Chatwoot REST endpoints the assistant
// needs: outgoing messages, WhatsApp template sends and conversation
// attribute updates.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salonware/booking-assistant/pkg/logging"
)

const defaultUserAgent = "salon-booking-assistant/0.1"

// BotAttribute is the conversation custom attribute that gates
// automated handling. Staff flip it off to take over a conversation.
const BotAttribute = "atencion_automatica"

// Config controls how the Chatwoot client behaves.
type Config struct {
	BaseURL    string
	APIToken   string
	AccountID  string
	InboxID    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client talks to one Chatwoot account.
type Client struct {
	apiToken   string
	baseURL    string
	accountID  string
	inboxID    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("chatwoot: API token is required")
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errors.New("chatwoot: account id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("chatwoot: base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiToken:   cfg.APIToken,
		baseURL:    baseURL,
		accountID:  cfg.AccountID,
		inboxID:    cfg.InboxID,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger.WithComponent("chatwoot"),
		userAgent:  userAgent,
	}, nil
}

// SendMessage posts an outgoing text message to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (*Message, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, errors.New("chatwoot: conversation id required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("chatwoot: message text required")
	}
	body, err := json.Marshal(outgoingMessage{Content: text, MessageType: "outgoing"})
	if err != nil {
		return nil, fmt.Errorf("chatwoot: marshal message body: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, c.accountPath("conversations/%s/messages", conversationID), nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Message](data)
}

// SendTemplate posts an approved WhatsApp template message. Templates
// are the only way to reach a customer outside the 24-hour window.
func (c *Client) SendTemplate(ctx context.Context, conversationID string, tpl Template) (*Message, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, errors.New("chatwoot: conversation id required")
	}
	if err := tpl.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(outgoingTemplate{
		Content:        tpl.renderedContent(),
		MessageType:    "outgoing",
		TemplateParams: tpl.params(),
	})
	if err != nil {
		return nil, fmt.Errorf("chatwoot: marshal template body: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, c.accountPath("conversations/%s/messages", conversationID), nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Message](data)
}

// UpdateConversationAttributes merges custom attributes into a
// conversation.
func (c *Client) UpdateConversationAttributes(ctx context.Context, conversationID string, attrs map[string]any) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("chatwoot: conversation id required")
	}
	if len(attrs) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string]any{"custom_attributes": attrs})
	if err != nil {
		return fmt.Errorf("chatwoot: marshal attributes: %w", err)
	}
	_, err = c.invoke(ctx, http.MethodPost, c.accountPath("conversations/%s/custom_attributes", conversationID), nil, body)
	return err
}

// SetBotEnabled toggles automated handling for a conversation.
func (c *Client) SetBotEnabled(ctx context.Context, conversationID string, enabled bool) error {
	return c.UpdateConversationAttributes(ctx, conversationID, map[string]any{BotAttribute: enabled})
}

// SendMessageToPhone delivers a text to a customer with no known
// conversation, resolving or creating one first.
func (c *Client) SendMessageToPhone(ctx context.Context, phone, text string) error {
	conversationID, err := c.ensureConversation(ctx, phone)
	if err != nil {
		return err
	}
	_, err = c.SendMessage(ctx, conversationID, text)
	return err
}

// SendTemplateToPhone delivers a template message to a customer with
// no known conversation.
func (c *Client) SendTemplateToPhone(ctx context.Context, phone string, tpl Template) error {
	conversationID, err := c.ensureConversation(ctx, phone)
	if err != nil {
		return err
	}
	_, err = c.SendTemplate(ctx, conversationID, tpl)
	return err
}

// ensureConversation finds the contact for a phone number, creating it
// if needed, and returns an open conversation id on the configured
// inbox.
func (c *Client) ensureConversation(ctx context.Context, phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", errors.New("chatwoot: phone required")
	}

	contact, err := c.searchContact(ctx, phone)
	if err != nil {
		return "", err
	}
	if contact == nil {
		contact, err = c.createContact(ctx, phone)
		if err != nil {
			return "", err
		}
	}

	data, err := c.invoke(ctx, http.MethodGet, c.accountPath("contacts/%d/conversations", contact.ID), nil, nil)
	if err != nil {
		return "", err
	}
	conversations, err := decodePayloadList[Conversation](data)
	if err != nil {
		return "", err
	}
	for _, conv := range conversations {
		if conv.Status != "resolved" {
			return fmt.Sprintf("%d", conv.ID), nil
		}
	}

	created, err := c.createConversation(ctx, contact)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", created.ID), nil
}

func (c *Client) searchContact(ctx context.Context, phone string) (*Contact, error) {
	q := url.Values{}
	q.Set("q", phone)
	data, err := c.invoke(ctx, http.MethodGet, c.accountPath("contacts/search"), q, nil)
	if err != nil {
		return nil, err
	}
	contacts, err := decodePayloadList[Contact](data)
	if err != nil {
		return nil, err
	}
	for _, contact := range contacts {
		if contact.PhoneNumber == phone {
			found := contact
			return &found, nil
		}
	}
	return nil, nil
}

func (c *Client) createContact(ctx context.Context, phone string) (*Contact, error) {
	payload := map[string]any{
		"phone_number": phone,
		"name":         phone,
	}
	if c.inboxID != "" {
		payload["inbox_id"] = c.inboxID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("chatwoot: marshal contact: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, c.accountPath("contacts"), nil, body)
	if err != nil {
		return nil, err
	}
	return decodeContactPayload(data)
}

func (c *Client) createConversation(ctx context.Context, contact *Contact) (*Conversation, error) {
	payload := map[string]any{
		"contact_id": contact.ID,
		"status":     "open",
	}
	if c.inboxID != "" {
		payload["inbox_id"] = c.inboxID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("chatwoot: marshal conversation: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, c.accountPath("conversations"), nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Conversation](data)
}

func (c *Client) accountPath(format string, args ...any) string {
	return fmt.Sprintf("/api/v1/accounts/%s/", c.accountID) + fmt.Sprintf(format, args...)
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := c.buildURL(path, query)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("chatwoot: build request: %w", err)
		}
		req.Header.Set("api_access_token", c.apiToken)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("chatwoot: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("chatwoot: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("chatwoot: request failed without response")
}

func (c *Client) buildURL(path string, query url.Values) string {
	trimmedPath := "/" + strings.TrimLeft(path, "/")
	full := c.baseURL + trimmedPath
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("chatwoot retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}
