package autotrack

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/queue"
)

// Reader reads console memory by SNES bus address.
type Reader interface {
	Read(ctx context.Context, addr uint32, size int) ([]byte, error)
}

// Sink receives the mutations a poll produces.
type Sink interface {
	Submit(ctx context.Context, m engine.Mutation) error
}

// Enqueuer is the part of the mutation queue a QueueSink needs.
type Enqueuer interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
}

// QueueSink hands mutations to the worker pool.
type QueueSink struct {
	Queue     Enqueuer
	TrackerID uuid.UUID
}

func (s QueueSink) Submit(ctx context.Context, m engine.Mutation) error {
	return s.Queue.EnqueueRequest(ctx, queue.NewRequest(s.TrackerID, queue.SourceAutotrack, m))
}

// SessionSink applies mutations to an in-process session.
type SessionSink struct {
	Session *engine.Session
}

func (s SessionSink) Submit(_ context.Context, m engine.Mutation) error {
	_, err := s.Session.Apply(m)
	return err
}

// Poller reads the inventory block on an interval and submits a set_item
// mutation for every count that differs from the previous read. The first
// read submits every count.
type Poller struct {
	reader   Reader
	sink     Sink
	rules    []ItemRule
	limits   map[string]int
	interval time.Duration
	logger   *slog.Logger

	// MaxFailures ends Run after that many consecutive failed polls.
	// Zero retries forever.
	MaxFailures int

	last map[string]int
}

func NewPoller(reader Reader, sink Sink, rules []ItemRule, limits map[string]int, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		reader:   reader,
		sink:     sink,
		rules:    rules,
		limits:   limits,
		interval: interval,
		logger:   logger,
	}
}

// Poll performs one read and returns how many mutations it submitted.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	block, err := p.reader.Read(ctx, InventoryBase, InventorySize)
	if err != nil {
		return 0, fmt.Errorf("failed to read inventory: %w", err)
	}
	counts, err := Decode(p.rules, block, p.limits)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if prev, ok := p.last[name]; ok && prev == n {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if p.last == nil {
		p.last = make(map[string]int, len(counts))
	}
	sent := 0
	for _, name := range names {
		m := engine.Mutation{Op: engine.OpSetItem, Name: name, Count: counts[name]}
		if err := p.sink.Submit(ctx, m); err != nil {
			// Leave p.last alone so the next poll retries this item.
			return sent, fmt.Errorf("failed to submit %s: %w", name, err)
		}
		p.last[name] = counts[name]
		sent++
	}
	if sent > 0 {
		p.logger.Debug("Inventory changed", "mutations", sent, "items", names)
	}
	return sent, nil
}

// Forget drops the previous read so the next poll resubmits everything.
func (p *Poller) Forget() {
	p.last = nil
}

// Run polls until ctx ends. Failures are logged and retried on the next
// tick until MaxFailures in a row, when the last error is returned.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		if _, err := p.Poll(ctx); err != nil {
			failures++
			p.logger.Warn("Autotrack poll failed", "error", err, "failures", failures)
			if p.MaxFailures > 0 && failures >= p.MaxFailures {
				return err
			}
		} else {
			failures = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
