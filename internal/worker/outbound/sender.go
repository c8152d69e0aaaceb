// Package outboundworker delivers queued assistant replies to the
// messaging gateway.
package outboundworker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salonware/booking-assistant/internal/chatwoot"
	"github.com/salonware/booking-assistant/internal/events"
	"github.com/salonware/booking-assistant/internal/resilience"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const defaultSendTimeout = 30 * time.Second

// Gateway posts one message into a platform conversation. The Chatwoot
// client implements it.
type Gateway interface {
	SendMessage(ctx context.Context, conversationID, text string) (*chatwoot.Message, error)
}

// ObserveFunc receives one outcome per consumed message: ok, error or
// rejected.
type ObserveFunc func(outcome string)

// Sender consumes the outgoing channel and forwards each reply to the
// gateway with retries. A single consumer keeps deliveries in publish
// order.
type Sender struct {
	client      *redis.Client
	gateway     Gateway
	breaker     *resilience.Breaker
	logger      *logging.Logger
	sendTimeout time.Duration
	observe     ObserveFunc
	retry       func(ctx context.Context, fn func() error) error
	wg          sync.WaitGroup
}

// Option adjusts sender defaults.
type Option func(*Sender)

// WithBreaker guards gateway calls with a circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Sender) { s.breaker = b }
}

// WithSendTimeout bounds one delivery, retries included.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithObserver registers a per-message outcome hook.
func WithObserver(fn ObserveFunc) Option {
	return func(s *Sender) { s.observe = fn }
}

// New builds the outbound sender.
func New(client *redis.Client, gateway Gateway, logger *logging.Logger, opts ...Option) *Sender {
	if client == nil {
		panic("outboundworker: redis client required")
	}
	if gateway == nil {
		panic("outboundworker: gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sender{
		client:      client,
		gateway:     gateway,
		logger:      logger.WithComponent("worker.outbound"),
		sendTimeout: defaultSendTimeout,
		retry:       resilience.Retry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes and launches the consumer. It returns once the
// subscription is confirmed.
func (s *Sender) Start(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, events.ChannelOutgoing)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer pubsub.Close()
		s.consume(ctx, pubsub.Channel())
	}()

	s.logger.Info("outbound worker started", "channel", events.ChannelOutgoing)
	return nil
}

// Wait blocks until the consumer has drained.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg, err := events.DecodeOutbound([]byte(m.Payload))
			if err != nil {
				s.logger.Warn("outbound event rejected", "error", err)
				s.report("rejected")
				continue
			}
			s.deliver(ctx, msg)
		}
	}
}

// deliver pushes one reply through the gateway. Transient failures
// retry with backoff; an open breaker aborts at once since Chatwoot is
// known down. After exhaustion the message is dropped and logged, the
// transcript in the platform is what the salon recovers from.
func (s *Sender) deliver(ctx context.Context, msg events.OutboundMessage) {
	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	err := s.retry(sctx, func() error {
		serr := s.send(sctx, msg)
		if errors.Is(serr, resilience.ErrBreakerOpen) {
			return resilience.Permanent(serr)
		}
		return serr
	})
	if err != nil {
		s.logger.Error("outbound delivery failed, message dropped",
			"conversation_id", msg.ConversationID, "error", err)
		s.report("error")
		return
	}
	s.logger.Debug("reply delivered", "conversation_id", msg.ConversationID)
	s.report("ok")
}

func (s *Sender) send(ctx context.Context, msg events.OutboundMessage) error {
	call := func(c context.Context) error {
		_, err := s.gateway.SendMessage(c, msg.ConversationID, msg.Message)
		return err
	}
	if s.breaker != nil {
		return s.breaker.Do(ctx, call)
	}
	return call(ctx)
}

func (s *Sender) report(outcome string) {
	if s.observe != nil {
		s.observe(outcome)
	}
}
