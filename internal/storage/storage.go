package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

// Record is one persisted tracker session. The engine itself is never
// stored, only its snapshot and the world it was built from.
type Record struct {
	ID        uuid.UUID          `json:"id"`
	World     string             `json:"world"`
	Snapshot  *snapshot.Snapshot `json:"snapshot"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Storage persists tracker sessions.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveTracker stamps UpdatedAt and writes the record.
	SaveTracker(ctx context.Context, rec *Record) error
	// LoadTracker returns nil, nil when the tracker does not exist.
	LoadTracker(ctx context.Context, id uuid.UUID) (*Record, error)
	DeleteTracker(ctx context.Context, id uuid.UUID) error
	ListTrackers(ctx context.Context) ([]uuid.UUID, error)
}
