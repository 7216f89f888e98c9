package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another process holds a tracker's lock.
var ErrLocked = errors.New("tracker is locked")

const lockTTL = 30 * time.Second

// Locker guards the apply-then-save sequence of one tracker.
type Locker interface {
	// Lock returns ErrLocked without waiting when the lock is held elsewhere.
	Lock(ctx context.Context, id uuid.UUID) (unlock func(), err error)
}

// RedisLocker is a Locker shared by every API and worker process.
type RedisLocker struct {
	client *redis.Client
	owner  string
	logger *slog.Logger
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func NewRedisLocker(client *redis.Client, owner string, logger *slog.Logger) *RedisLocker {
	if owner == "" {
		owner = uuid.NewString()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisLocker{client: client, owner: owner, logger: logger}
}

func lockKey(id uuid.UUID) string {
	return fmt.Sprintf("tracker-lock:%s", id.String())
}

func (l *RedisLocker) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := lockKey(id)
	ok, err := l.client.SetNX(ctx, key, l.owner, lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tracker lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// Only delete if we own the lock
		if err := releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, l.owner).Err(); err != nil {
			l.logger.Error("Failed to release tracker lock", "error", err, "tracker_id", id.String())
		}
	}, nil
}

// localLocker serializes trackers inside one process. It waits instead of
// failing, since every caller shares the same process.
type localLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *localLocker) Lock(_ context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
