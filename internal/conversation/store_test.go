package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonware/booking-assistant/internal/booking"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewStore(client, time.Hour)
}

func TestStorePutGetRoundTrip(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	state := NewState("wa-100", "+34600111222")
	state.CustomerID = "cust-1"
	state.Append("user", "Hola", 10)
	state.Append("assistant", "¡Hola! ¿En qué puedo ayudarte?", 10)
	state.FSM = booking.Snapshot{
		State: booking.StateServiceSelection,
		CollectedData: booking.CollectedData{
			Services: []string{"Corte de Pelo"},
		},
	}

	require.NoError(t, store.Put(ctx, "wa-100", state))

	loaded, err := store.Get(ctx, "wa-100")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "wa-100", loaded.ConversationID)
	assert.Equal(t, "+34600111222", loaded.CustomerPhone)
	assert.Equal(t, "cust-1", loaded.CustomerID)
	assert.Len(t, loaded.Messages, 2)
	assert.Equal(t, 2, loaded.TotalMessageCount)
	assert.Equal(t, booking.StateServiceSelection, loaded.FSM.State)
	assert.Equal(t, []string{"Corte de Pelo"}, loaded.FSM.CollectedData.Services)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	_, store := setupTestStore(t)

	state, err := store.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStorePutRefreshesTTL(t *testing.T) {
	mr, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "wa-ttl", NewState("wa-ttl", "+34600000000")))
	mr.FastForward(45 * time.Minute)

	// A second write restarts the clock.
	require.NoError(t, store.Put(ctx, "wa-ttl", NewState("wa-ttl", "+34600000000")))
	mr.FastForward(45 * time.Minute)
	assert.True(t, mr.Exists("conversation:wa-ttl"))

	mr.FastForward(20 * time.Minute)
	assert.False(t, mr.Exists("conversation:wa-ttl"))
}

func TestStoreTouchExtendsTTL(t *testing.T) {
	mr, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "wa-touch", NewState("wa-touch", "+34600000000")))
	mr.FastForward(50 * time.Minute)

	require.NoError(t, store.Touch(ctx, "wa-touch"))
	mr.FastForward(50 * time.Minute)
	assert.True(t, mr.Exists("conversation:wa-touch"))
}

func TestStoreLockSerializes(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	release, err := store.Lock(ctx, "wa-lock")
	require.NoError(t, err)

	// A contender with a short deadline cannot get in while held.
	shortCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = store.Lock(shortCtx, "wa-lock")
	require.Error(t, err)

	release()

	release2, err := store.Lock(ctx, "wa-lock")
	require.NoError(t, err)
	release2()
}

func TestStoreLockReleaseLeavesForeignLock(t *testing.T) {
	mr, store := setupTestStore(t)
	ctx := context.Background()

	release, err := store.Lock(ctx, "wa-expire")
	require.NoError(t, err)

	// Simulate expiry plus takeover by another worker.
	mr.Set("conversation_lock:wa-expire", "someone-else")

	release()
	assert.True(t, mr.Exists("conversation_lock:wa-expire"))

	got, err := mr.Get("conversation_lock:wa-expire")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
