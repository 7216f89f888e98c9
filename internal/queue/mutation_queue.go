package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/tracker-engine/pkg/queue"
)

const (
	requestsKey = "tracker-requests"
	failedKey   = "tracker-requests:failed"

	// failedLimit caps the dead-letter list.
	failedLimit = 1000
)

// MutationQueue is a FIFO of mutation requests shared by every tracker.
type MutationQueue struct {
	client *Client
}

func NewMutationQueue(client *Client) *MutationQueue {
	return &MutationQueue{client: client}
}

// EnqueueRequest adds a request to the tail of the queue.
func (q *MutationQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.client.logger.Debug("Request enqueued",
		"request_id", req.RequestID,
		"tracker_id", req.TrackerID.String(),
		"op", req.Mutation.Op,
	)
	return nil
}

// DequeueRequest removes and returns the next request.
// Returns nil if queue is empty
func (q *MutationQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	req, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// BlockingDequeueRequest waits up to timeout for a request. It returns
// nil, nil on timeout or when ctx ends.
func (q *MutationQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// RequestQueueDepth returns the number of waiting requests.
func (q *MutationQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

// Fail parks a request that could not be applied on the dead-letter list,
// newest first.
func (q *MutationQueue) Fail(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	pipe := q.client.rdb.TxPipeline()
	pipe.LPush(ctx, failedKey, data)
	pipe.LTrim(ctx, failedKey, 0, failedLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record failed request: %w", err)
	}
	return nil
}

// Failed returns up to limit dead-lettered requests, newest first.
// A limit of zero or less returns all of them.
func (q *MutationQueue) Failed(ctx context.Context, limit int) ([]*queue.Request, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	raw, err := q.client.rdb.LRange(ctx, failedKey, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read failed requests: %w", err)
	}
	out := make([]*queue.Request, 0, len(raw))
	for _, item := range raw {
		req, err := queue.FromJSON([]byte(item))
		if err != nil {
			q.client.logger.Warn("Skipping unreadable failed request", "error", err)
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// Clear drops every waiting request.
func (q *MutationQueue) Clear(ctx context.Context) error {
	if err := q.client.rdb.Del(ctx, requestsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear request queue: %w", err)
	}
	return nil
}
