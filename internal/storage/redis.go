package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tracker:"

// RedisStorage keeps tracker records in Redis with a sliding TTL.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage accepts either a redis:// URL or a bare host:port.
func NewRedisStorage(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	}
	return NewRedisStorageFromClient(redis.NewClient(opts), ttl, logger), nil
}

func NewRedisStorageFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{client: client, logger: logger, ttl: ttl}
}

// Client exposes the connection so the queue and broadcaster can share it.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Tracker operations

func (r *RedisStorage) SaveTracker(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Snapshot == nil {
		return errors.New("tracker record and snapshot are required")
	}
	rec.UpdatedAt = time.Now()

	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error("Failed to marshal tracker", "tracker_id", rec.ID, "error", err)
		return fmt.Errorf("failed to marshal tracker: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+rec.ID.String(), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save tracker", "tracker_id", rec.ID, "error", err)
		return fmt.Errorf("failed to save tracker: %w", err)
	}
	r.logger.Debug("Tracker saved", "tracker_id", rec.ID, "bytes", len(data))
	return nil
}

func (r *RedisStorage) LoadTracker(ctx context.Context, id uuid.UUID) (*Record, error) {
	data, err := r.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Tracker not found", "tracker_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load tracker", "tracker_id", id, "error", err)
		return nil, fmt.Errorf("failed to load tracker: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Error("Failed to unmarshal tracker", "tracker_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal tracker: %w", err)
	}
	return &rec, nil
}

func (r *RedisStorage) DeleteTracker(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, keyPrefix+id.String()).Err(); err != nil {
		r.logger.Error("Failed to delete tracker", "tracker_id", id, "error", err)
		return fmt.Errorf("failed to delete tracker: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListTrackers(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := uuid.Parse(strings.TrimPrefix(iter.Val(), keyPrefix))
		if err != nil {
			r.logger.Warn("Skipping malformed tracker key", "key", iter.Val())
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}
	return ids, nil
}
