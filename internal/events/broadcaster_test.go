package events

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

func setupBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, slog.New(slog.DiscardHandler))
}

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()
	tracker := uuid.New()

	sub, err := b.Subscribe(ctx, tracker)
	require.NoError(t, err)
	defer sub.Close()

	change := engine.Change{Inputs: []string{"item:lamp"}, Dungeons: []string{"eastern_palace"}}
	require.NoError(t, b.PublishChange(ctx, tracker, "req-1", change))
	require.NoError(t, b.PublishFailed(ctx, tracker, "req-2", "unknown item: ocarina"))

	got := receive(t, sub)
	assert.Equal(t, EventTypeTrackerUpdated, got.Type)
	assert.Equal(t, tracker.String(), got.TrackerID)
	assert.Equal(t, "req-1", got.RequestID)
	require.NotNil(t, got.Change)
	assert.Equal(t, change, *got.Change)

	got = receive(t, sub)
	assert.Equal(t, EventTypeMutationFailed, got.Type)
	assert.Equal(t, "unknown item: ocarina", got.Error)
}

func TestBroadcaster_OtherTrackersAreIsolated(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()
	mine, other := uuid.New(), uuid.New()

	sub, err := b.Subscribe(ctx, mine)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, other, Event{Type: EventTypeTrackerDeleted}))
	require.NoError(t, b.Publish(ctx, mine, Event{Type: EventTypeTrackerRestored}))

	assert.Equal(t, EventTypeTrackerRestored, receive(t, sub).Type)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	id := uuid.New()
	require.NoError(t, r.Publish(context.Background(), id, Event{Type: EventTypeTrackerCreated}))
	require.Len(t, r.Events, 1)
	assert.Equal(t, id.String(), r.Events[0].TrackerID)
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
