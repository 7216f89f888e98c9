package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTrackerCreated  EventType = "tracker.created"
	EventTypeTrackerUpdated  EventType = "tracker.updated"
	EventTypeTrackerRestored EventType = "tracker.restored"
	EventTypeTrackerDeleted  EventType = "tracker.deleted"
	EventTypeMutationQueued  EventType = "mutation.queued"
	EventTypeMutationFailed  EventType = "mutation.failed"
)

// Event is the payload published on a tracker channel.
type Event struct {
	Type      EventType      `json:"type"`
	TrackerID string         `json:"tracker_id"`
	RequestID string         `json:"request_id,omitempty"`
	Change    *engine.Change `json:"change,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Publisher is what the tracker manager and worker need from a broadcaster.
type Publisher interface {
	Publish(ctx context.Context, trackerID uuid.UUID, event Event) error
}

// Channel names the pub/sub channel of one tracker.
func Channel(trackerID uuid.UUID) string {
	return fmt.Sprintf("tracker-events:%s", trackerID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish stamps the tracker ID and sends the event.
func (b *Broadcaster) Publish(ctx context.Context, trackerID uuid.UUID, event Event) error {
	event.TrackerID = trackerID.String()
	channel := Channel(trackerID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}

// PublishChange publishes a tracker.updated event.
func (b *Broadcaster) PublishChange(ctx context.Context, trackerID uuid.UUID, requestID string, change engine.Change) error {
	return b.Publish(ctx, trackerID, Event{Type: EventTypeTrackerUpdated, RequestID: requestID, Change: &change})
}

// PublishFailed publishes a mutation.failed event.
func (b *Broadcaster) PublishFailed(ctx context.Context, trackerID uuid.UUID, requestID string, errMsg string) error {
	return b.Publish(ctx, trackerID, Event{Type: EventTypeMutationFailed, RequestID: requestID, Error: errMsg})
}

// Subscription delivers decoded events for one tracker until closed.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

// Subscribe listens on a tracker channel. The subscription is confirmed
// before it returns, so no event published afterwards is missed.
func (b *Broadcaster) Subscribe(ctx context.Context, trackerID uuid.UUID) (*Subscription, error) {
	pubsub := b.redisClient.Subscribe(ctx, Channel(trackerID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &Subscription{pubsub: pubsub, events: make(chan Event, 16)}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			sub.events <- event
		}
	}()
	return sub, nil
}

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() error { return s.pubsub.Close() }

// Recorder is an in-memory Publisher for tests and single-process runs.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, trackerID uuid.UUID, event Event) error {
	event.TrackerID = trackerID.String()
	r.Events = append(r.Events, event)
	return nil
}
