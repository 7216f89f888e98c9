package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/internal/tracker"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	queuePkg "github.com/jwebster45206/tracker-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
)

// Queue is the part of the mutation queue a worker consumes.
type Queue interface {
	BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queuePkg.Request, error)
	EnqueueRequest(ctx context.Context, req *queuePkg.Request) error
	Fail(ctx context.Context, req *queuePkg.Request) error
}

// Applier applies a mutation to a stored tracker.
type Applier interface {
	Apply(ctx context.Context, id uuid.UUID, requestID string, m engine.Mutation) (engine.Change, error)
}

// Worker processes mutation requests from the queue
type Worker struct {
	id        string
	queue     Queue
	trackers  Applier
	publisher events.Publisher
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	// retryDelay paces re-queued requests whose tracker is locked.
	retryDelay time.Duration
}

// New creates a new worker instance
func New(q Queue, trackers Applier, publisher events.Publisher, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:         workerID,
		queue:      q,
		trackers:   trackers,
		publisher:  publisher,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		retryDelay: 50 * time.Millisecond,
	}
}

func (w *Worker) ID() string { return w.id }

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeueRequest(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}
	return w.process(req)
}

// process applies one request. A locked tracker puts the request back at
// the tail of the queue; any other failure dead-letters it.
func (w *Worker) process(req *queuePkg.Request) error {
	log := w.log.With(
		"worker_id", w.id,
		"request_id", req.RequestID,
		"tracker_id", req.TrackerID.String(),
		"op", req.Mutation.Op,
		"source", req.Source,
	)
	log.Debug("Processing request")
	start := time.Now()

	change, err := w.trackers.Apply(w.ctx, req.TrackerID, req.RequestID, req.Mutation)
	switch {
	case errors.Is(err, tracker.ErrLocked):
		log.Info("Tracker already locked, re-queueing request")
		if err := w.queue.EnqueueRequest(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		select {
		case <-w.ctx.Done():
		case <-time.After(w.retryDelay):
		}
		return nil

	case err != nil:
		log.Warn("Mutation failed", "error", err)
		if failErr := w.queue.Fail(w.ctx, req); failErr != nil {
			log.Error("Failed to dead-letter request", "error", failErr)
		}
		if w.publisher != nil {
			ev := events.Event{Type: events.EventTypeMutationFailed, RequestID: req.RequestID, Error: err.Error()}
			if pubErr := w.publisher.Publish(w.ctx, req.TrackerID, ev); pubErr != nil {
				log.Error("Failed to publish failure event", "error", pubErr)
			}
		}
		// A rejected mutation is the caller's problem, not the worker's.
		return nil
	}

	log.Info("Request processed",
		"changed_locations", len(change.Locations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
