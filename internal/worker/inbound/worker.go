// Package inboundworker consumes customer messages from the incoming
// channel, runs each turn through the orchestrator under the
// per-conversation lock and queues the assistant's reply for delivery.
package inboundworker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salonware/booking-assistant/internal/events"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const (
	defaultWorkerCount = 4
	defaultTurnTimeout = 90 * time.Second
)

// Processor runs one conversation turn. The orchestrator implements it.
type Processor interface {
	ProcessMessage(ctx context.Context, conversationID, customerPhone, text string) (string, error)
}

// Locker serializes turns per conversation id. The checkpoint store
// implements it.
type Locker interface {
	Lock(ctx context.Context, conversationID string) (func(), error)
}

// ObserveFunc receives one outcome per consumed message: ok, quiet,
// error, lock_timeout, publish_error or rejected.
type ObserveFunc func(outcome string)

// Worker subscribes to the incoming channel and fans messages out to a
// bounded pool. Messages for different conversations run concurrently;
// the conversation lock keeps a single conversation strictly serial.
type Worker struct {
	client      *redis.Client
	locker      Locker
	processor   Processor
	logger      *logging.Logger
	workers     int
	turnTimeout time.Duration
	observe     ObserveFunc
	wg          sync.WaitGroup
}

// Option adjusts worker defaults.
type Option func(*Worker)

// WithWorkerCount sets the size of the processing pool.
func WithWorkerCount(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithTurnTimeout bounds one turn end to end, lock wait included.
func WithTurnTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.turnTimeout = d
		}
	}
}

// WithObserver registers a per-message outcome hook.
func WithObserver(fn ObserveFunc) Option {
	return func(w *Worker) { w.observe = fn }
}

// New builds the inbound worker.
func New(client *redis.Client, locker Locker, processor Processor, logger *logging.Logger, opts ...Option) *Worker {
	if client == nil {
		panic("inboundworker: redis client required")
	}
	if locker == nil {
		panic("inboundworker: locker required")
	}
	if processor == nil {
		panic("inboundworker: processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		client:      client,
		locker:      locker,
		processor:   processor,
		logger:      logger.WithComponent("worker.inbound"),
		workers:     defaultWorkerCount,
		turnTimeout: defaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start subscribes and launches the pool. It returns once the
// subscription is confirmed; Wait blocks until every goroutine exits
// after ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	pubsub := w.client.Subscribe(ctx, events.ChannelIncoming)
	// Confirm the subscription before reporting started, so a publish
	// racing startup is not silently missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	jobs := make(chan events.InboundMessage)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for msg := range jobs {
				w.handle(ctx, msg)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(jobs)
		defer pubsub.Close()
		w.consume(ctx, pubsub.Channel(), jobs)
	}()

	w.logger.Info("inbound worker started",
		"channel", events.ChannelIncoming, "pool_size", w.workers)
	return nil
}

// Wait blocks until the consumer and the pool have drained.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) consume(ctx context.Context, ch <-chan *redis.Message, jobs chan<- events.InboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg, err := events.DecodeInbound([]byte(m.Payload))
			if err != nil {
				w.logger.Warn("inbound event rejected", "error", err)
				w.report("rejected")
				continue
			}
			select {
			case jobs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handle runs one turn. Failures never stop the worker: the turn is
// logged and the next message proceeds.
func (w *Worker) handle(ctx context.Context, msg events.InboundMessage) {
	tctx, cancel := context.WithTimeout(ctx, w.turnTimeout)
	defer cancel()

	unlock, err := w.locker.Lock(tctx, msg.ConversationID)
	if err != nil {
		w.logger.Error("conversation lock not acquired",
			"conversation_id", msg.ConversationID, "error", err)
		w.report("lock_timeout")
		return
	}
	defer unlock()

	reply, err := w.processor.ProcessMessage(tctx, msg.ConversationID, msg.CustomerPhone, msg.MessageText)
	if err != nil {
		w.logger.Critical("turn crashed",
			"conversation_id", msg.ConversationID, "error", err)
		w.report("error")
		return
	}
	if reply == "" {
		w.report("quiet")
		return
	}

	payload, err := events.Encode(events.OutboundMessage{
		ConversationID: msg.ConversationID,
		CustomerPhone:  msg.CustomerPhone,
		Message:        reply,
	})
	if err != nil {
		w.logger.Error("outbound encode failed",
			"conversation_id", msg.ConversationID, "error", err)
		w.report("publish_error")
		return
	}
	// Publish on the parent context: a turn that ran close to its
	// deadline still gets its reply out.
	if err := w.client.Publish(ctx, events.ChannelOutgoing, payload).Err(); err != nil {
		w.logger.Error("outbound publish failed",
			"conversation_id", msg.ConversationID, "error", err)
		w.report("publish_error")
		return
	}
	w.report("ok")
}

func (w *Worker) report(outcome string) {
	if w.observe != nil {
		w.observe(outcome)
	}
}
