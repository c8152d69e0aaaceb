package conversation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/salonware/booking-assistant/internal/resilience"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const llmCallTimeout = 30 * time.Second

// chatCompleter is the slice of the OpenAI-compatible client this
// package needs. OpenRouter speaks the same protocol.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenRouterClient is the primary LLM client. Every call runs under a
// hard timeout, up to two retries on transient errors, and the shared
// openrouter circuit breaker when one is supplied.
type OpenRouterClient struct {
	client  chatCompleter
	model   string
	breaker *resilience.Breaker
	logger  *logging.Logger
}

// NewOpenRouterClient wraps an OpenAI-compatible client. The breaker
// may be nil, which disables fail-fast behaviour.
func NewOpenRouterClient(client chatCompleter, model string, breaker *resilience.Breaker, logger *logging.Logger) *OpenRouterClient {
	if client == nil {
		panic("conversation: chat client cannot be nil")
	}
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenRouterClient{
		client:  client,
		model:   model,
		breaker: breaker,
		logger:  logger.WithComponent("conversation.openrouter"),
	}
}

// Complete sends a completion request and returns the first choice.
func (c *OpenRouterClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	oreq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens > 0 {
		oreq.MaxTokens = int(req.MaxTokens)
	}
	if req.JSONMode {
		oreq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		oreq.Messages = append(oreq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	for _, msg := range req.Messages {
		oreq.Messages = append(oreq.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.Chat(ctx, oreq)
	if err != nil {
		return LLMResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("conversation: openrouter returned no choices")
	}

	choice := resp.Choices[0]
	return LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}

// Chat runs one raw chat-completion round under the same timeout,
// retry, and breaker discipline. The general handler uses it directly
// for tool calling.
func (c *OpenRouterClient) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	var resp openai.ChatCompletionResponse
	call := func(ctx context.Context) error {
		return resilience.Retry(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
			defer cancel()

			var err error
			resp, err = c.client.CreateChatCompletion(callCtx, req)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return resilience.Permanent(ctx.Err())
			}
			if !isTransientLLMError(err) {
				return resilience.Permanent(err)
			}
			c.logger.Warn("transient llm error, will retry", "error", err)
			return err
		})
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, resilience.ErrBreakerOpen) {
			return openai.ChatCompletionResponse{}, err
		}
		return openai.ChatCompletionResponse{}, fmt.Errorf("conversation: openrouter completion failed: %w", err)
	}
	return resp, nil
}

// isTransientLLMError reports whether a failure is worth retrying:
// rate limits, provider 5xx, and network timeouts. Other 4xx responses
// are permanent.
func isTransientLLMError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode == http.StatusRequestTimeout {
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
