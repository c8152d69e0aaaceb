package chatwoot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	if cfg.APIToken == "" {
		cfg.APIToken = "token"
	}
	if cfg.AccountID == "" {
		cfg.AccountID = "1"
	}
	if cfg.InboxID == "" {
		cfg.InboxID = "2"
	}
	if server != nil {
		cfg.BaseURL = server.URL
	} else if cfg.BaseURL == "" {
		cfg.BaseURL = "http://chatwoot.test"
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/1/conversations/42/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.Header.Get("api_access_token") != "token" {
			t.Fatalf("missing auth header")
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"content":"hola"`) || !strings.Contains(string(body), `"outgoing"`) {
			t.Fatalf("unexpected body %s", string(body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"content":"hola","message_type":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	msg, err := client.SendMessage(context.Background(), "42", "hola")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if msg.ID != 7 || msg.Content != "hola" {
		t.Fatalf("unexpected response: %#v", msg)
	}
}

func TestNewClientDefaultsAndValidation(t *testing.T) {
	if _, err := New(Config{AccountID: "1", BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected token validation error")
	}
	if _, err := New(Config{APIToken: "t", BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected account validation error")
	}
	if _, err := New(Config{APIToken: "t", AccountID: "1"}); err == nil {
		t.Fatalf("expected base url validation error")
	}
	client, err := New(Config{APIToken: "t", AccountID: "1", BaseURL: "http://chatwoot.test/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.baseURL != "http://chatwoot.test" {
		t.Fatalf("expected trimmed base url, got %s", client.baseURL)
	}
	if client.httpClient == nil || client.httpClient.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout")
	}
	if client.maxRetries != 0 {
		t.Fatalf("expected retries to default to 0")
	}
	if client.logger == nil {
		t.Fatalf("expected default logger")
	}
}

func TestSendTemplateBuildsParams(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":9}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	_, err := client.SendTemplate(context.Background(), "42", Template{
		Name:       "appointment_confirmation_48h",
		BodyParams: []string{"Lucía", "jueves 3 de septiembre", "11:00"},
	})
	if err != nil {
		t.Fatalf("send template: %v", err)
	}

	var payload struct {
		TemplateParams struct {
			Name            string `json:"name"`
			Language        string `json:"language"`
			Category        string `json:"category"`
			ProcessedParams struct {
				Body map[string]string `json:"body"`
			} `json:"processed_params"`
		} `json:"template_params"`
	}
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("decode captured body: %v", err)
	}
	tp := payload.TemplateParams
	if tp.Name != "appointment_confirmation_48h" || tp.Language != "es" || tp.Category != "UTILITY" {
		t.Fatalf("unexpected template params: %#v", tp)
	}
	if tp.ProcessedParams.Body["1"] != "Lucía" || tp.ProcessedParams.Body["3"] != "11:00" {
		t.Fatalf("unexpected body params: %#v", tp.ProcessedParams.Body)
	}
}

func TestSetBotEnabled(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/conversations/42/custom_attributes") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		captured, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	if err := client.SetBotEnabled(context.Background(), "42", false); err != nil {
		t.Fatalf("set bot enabled: %v", err)
	}
	if !strings.Contains(string(captured), `"atencion_automatica":false`) {
		t.Fatalf("unexpected body %s", string(captured))
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&calls, 1)
		if current == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"server error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"content":"retry"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2, Backoff: 5 * time.Millisecond})
	if _, err := client.SendMessage(context.Background(), "42", "retry"); err != nil {
		t.Fatalf("send message after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestAPIErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Invalid phone number"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 3, Backoff: time.Millisecond})
	_, err := client.SendMessage(context.Background(), "42", "hola")
	if err == nil {
		t.Fatalf("expected api error")
	}
	if !strings.Contains(err.Error(), "Invalid phone number") {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestSendMessageToPhoneResolvesConversation(t *testing.T) {
	var createdConversation, sentMessage bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/1/contacts/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "+34600111222" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"payload":[{"id":9,"name":"Lucía","phone_number":"+34600111222"}]}`))
	})
	mux.HandleFunc("/api/v1/accounts/1/contacts/9/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload":[{"id":31,"inbox_id":2,"status":"resolved"}]}`))
	})
	mux.HandleFunc("/api/v1/accounts/1/conversations", func(w http.ResponseWriter, r *http.Request) {
		createdConversation = true
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"contact_id":9`) {
			t.Fatalf("unexpected conversation body %s", string(body))
		}
		w.Write([]byte(`{"id":33,"inbox_id":2,"status":"open"}`))
	})
	mux.HandleFunc("/api/v1/accounts/1/conversations/33/messages", func(w http.ResponseWriter, r *http.Request) {
		sentMessage = true
		w.Write([]byte(`{"id":70,"content":"recordatorio"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, Config{})
	if err := client.SendMessageToPhone(context.Background(), "+34600111222", "recordatorio"); err != nil {
		t.Fatalf("send to phone: %v", err)
	}
	if !createdConversation || !sentMessage {
		t.Fatalf("expected conversation create and message send, got create=%v send=%v", createdConversation, sentMessage)
	}
}

func TestEnsureConversationCreatesMissingContact(t *testing.T) {
	var createdContact bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/1/contacts/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload":[]}`))
	})
	mux.HandleFunc("/api/v1/accounts/1/contacts", func(w http.ResponseWriter, r *http.Request) {
		createdContact = true
		w.Write([]byte(`{"payload":{"contact":{"id":12,"phone_number":"+34600111222"}}}`))
	})
	mux.HandleFunc("/api/v1/accounts/1/contacts/12/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload":[{"id":40,"inbox_id":2,"status":"open"}]}`))
	})
	mux.HandleFunc("/api/v1/accounts/1/conversations/40/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":71,"content":"hola"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, Config{})
	if err := client.SendMessageToPhone(context.Background(), "+34600111222", "hola"); err != nil {
		t.Fatalf("send to phone: %v", err)
	}
	if !createdContact {
		t.Fatalf("expected contact creation")
	}
}
