package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStateTTL evicts idle conversations an hour after their last
// turn. Every Put refreshes it.
const DefaultStateTTL = time.Hour

const (
	lockTTL           = 30 * time.Second
	lockWait          = 10 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// ErrLockTimeout is returned when another turn held the conversation
// lock for the whole wait window.
var ErrLockTimeout = errors.New("conversation: lock acquisition timed out")

// Store checkpoints conversation state in Redis and serializes turns
// per conversation id with a lock key.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates the checkpoint store. A non-positive ttl falls back
// to DefaultStateTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &Store{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("salon.internal.conversation.store"),
	}
}

// Get loads the checkpoint for a conversation id. A missing key is not
// an error; first contact returns (nil, nil).
func (s *Store) Get(ctx context.Context, conversationID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.state.get")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &state, nil
}

// Put writes the checkpoint and refreshes its TTL.
func (s *Store) Put(ctx context.Context, conversationID string, state *State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.state.put")
	defer span.End()

	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Touch refreshes the TTL without rewriting the value.
func (s *Store) Touch(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.state.touch")
	defer span.End()

	if err := s.redis.Expire(ctx, stateKey(conversationID), s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to touch state: %w", err)
	}
	return nil
}

// Lock acquires the per-conversation turn lock, retrying until the
// wait window closes. The returned release func is safe to call once;
// it only deletes the key when this caller still owns it.
func (s *Store) Lock(ctx context.Context, conversationID string) (func(), error) {
	ctx, span := s.tracer.Start(ctx, "conversation.state.lock")
	defer span.End()

	key := lockKey(conversationID)
	token := uuid.NewString()
	deadline := time.Now().Add(lockWait)

	for {
		ok, err := s.redis.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to acquire lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			span.RecordError(ErrLockTimeout)
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	release := func() {
		// The turn's own ctx may already be done; the lock must still go.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		val, err := s.redis.Get(ctx, key).Result()
		if err == nil && val == token {
			s.redis.Del(ctx, key)
		}
	}
	return release, nil
}

func stateKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

func lockKey(id string) string {
	return fmt.Sprintf("conversation_lock:%s", id)
}
