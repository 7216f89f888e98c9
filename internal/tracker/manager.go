// Package tracker owns the live tracker sessions of one process. Storage
// is the source of truth: a cached session is reused only while its
// UpdatedAt still matches the stored record.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zyedidia/generic/cache"

	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/internal/storage"
	"github.com/jwebster45206/tracker-engine/pkg/catalog"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

var (
	// ErrNotFound is returned for tracker IDs that are not in storage.
	ErrNotFound = errors.New("tracker not found")

	// ErrRejected wraps every error the engine returns for a mutation or
	// restore, as opposed to storage failures.
	ErrRejected = errors.New("rejected")
)

// DefaultCacheSize bounds the number of sessions kept in memory.
const DefaultCacheSize = 64

// Info describes a stored tracker.
type Info struct {
	ID        uuid.UUID `json:"id"`
	World     string    `json:"world"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type entry struct {
	session *engine.Session
	info    Info
}

// Manager creates, loads, mutates and persists tracker sessions.
type Manager struct {
	store     storage.Storage
	publisher events.Publisher
	remote    Locker
	local     *localLocker
	logger    *slog.Logger

	defaultWorld string

	mu       sync.Mutex
	sessions *cache.Cache[uuid.UUID, *entry]
	worlds   map[string]*catalog.World
}

// NewManager builds a manager. remote may be nil when only one process
// touches the storage.
func NewManager(store storage.Storage, publisher events.Publisher, remote Locker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		remote:    remote,
		local:     newLocalLocker(),
		logger:    logger,
		sessions:  cache.New[uuid.UUID, *entry](DefaultCacheSize),
		worlds:    make(map[string]*catalog.World),

		defaultWorld: catalog.DefaultWorld,
	}
}

// SetDefaultWorld changes the world Create uses when given none. It must
// be called before the manager is shared.
func (m *Manager) SetDefaultWorld(ref string) {
	if ref != "" {
		m.defaultWorld = ref
	}
}

// world resolves and memoizes a world reference.
func (m *Manager) world(ref string) (*catalog.World, error) {
	if ref == "" {
		ref = catalog.DefaultWorld
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.worlds[ref]; ok {
		return w, nil
	}
	w, err := catalog.Resolve(ref)
	if err != nil {
		return nil, err
	}
	m.worlds[ref] = w
	return w, nil
}

// Create starts a new tracker on the given world (empty for the default).
func (m *Manager) Create(ctx context.Context, worldRef string) (*Info, error) {
	if worldRef == "" {
		worldRef = m.defaultWorld
	}
	world, err := m.world(worldRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	eng, err := engine.New(world, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	now := time.Now()
	rec := &storage.Record{
		ID:        uuid.New(),
		World:     worldRef,
		Snapshot:  eng.Snapshot(),
		CreatedAt: now,
	}
	if err := m.store.SaveTracker(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save tracker: %w", err)
	}

	e := &entry{session: engine.NewSession(eng), info: infoOf(rec)}
	m.put(e)
	m.logger.Info("Tracker created", "tracker_id", rec.ID.String(), "world", worldRef)
	m.publish(ctx, rec.ID, events.Event{Type: events.EventTypeTrackerCreated})
	info := e.info
	return &info, nil
}

func infoOf(rec *storage.Record) Info {
	return Info{ID: rec.ID, World: rec.World, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
}

func (m *Manager) put(e *entry) {
	m.mu.Lock()
	m.sessions.Put(e.info.ID, e)
	m.mu.Unlock()
}

func (m *Manager) drop(id uuid.UUID) {
	m.mu.Lock()
	m.sessions.Remove(id)
	m.mu.Unlock()
}

// load returns the session of a tracker, rebuilding it from storage when
// the cache is missing or stale.
func (m *Manager) load(ctx context.Context, id uuid.UUID) (*entry, error) {
	rec, err := m.store.LoadTracker(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker: %w", err)
	}
	if rec == nil {
		m.drop(id)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.mu.Lock()
	cached, ok := m.sessions.Get(id)
	fresh := ok && cached.info.UpdatedAt.Equal(rec.UpdatedAt)
	m.mu.Unlock()
	if fresh {
		return cached, nil
	}

	world, err := m.world(rec.World)
	if err != nil {
		return nil, fmt.Errorf("failed to load world %q: %w", rec.World, err)
	}
	eng, err := engine.New(world, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	if rec.Snapshot != nil {
		if _, err := eng.Restore(rec.Snapshot); err != nil {
			return nil, fmt.Errorf("stored tracker %s: %w", id, err)
		}
	}

	e := &entry{session: engine.NewSession(eng), info: infoOf(rec)}
	m.put(e)
	m.logger.Debug("Tracker loaded from storage", "tracker_id", id.String(), "stale_cache", ok)
	return e, nil
}

// lock takes the in-process lock, then the shared one.
func (m *Manager) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	unlockLocal, _ := m.local.Lock(ctx, id)
	if m.remote == nil {
		return unlockLocal, nil
	}
	unlockRemote, err := m.remote.Lock(ctx, id)
	if err != nil {
		unlockLocal()
		return nil, err
	}
	return func() {
		unlockRemote()
		unlockLocal()
	}, nil
}

// update runs fn under the tracker lock and saves the result when fn
// reports a change.
func (m *Manager) update(ctx context.Context, id uuid.UUID, fn func(*engine.Session) (engine.Change, error)) (engine.Change, error) {
	unlock, err := m.lock(ctx, id)
	if err != nil {
		return engine.Change{}, err
	}
	defer unlock()

	e, err := m.load(ctx, id)
	if err != nil {
		return engine.Change{}, err
	}
	change, err := fn(e.session)
	if err != nil {
		return engine.Change{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if change.Empty() {
		return change, nil
	}

	rec := &storage.Record{
		ID:        id,
		World:     e.info.World,
		Snapshot:  e.session.Snapshot(),
		CreatedAt: e.info.CreatedAt,
	}
	if err := m.store.SaveTracker(ctx, rec); err != nil {
		// The session is ahead of storage now; forget it.
		m.drop(id)
		return engine.Change{}, fmt.Errorf("failed to save tracker: %w", err)
	}
	m.mu.Lock()
	e.info.UpdatedAt = rec.UpdatedAt
	m.mu.Unlock()
	return change, nil
}

// Apply applies one mutation and persists the result.
func (m *Manager) Apply(ctx context.Context, id uuid.UUID, requestID string, mut engine.Mutation) (engine.Change, error) {
	change, err := m.update(ctx, id, func(s *engine.Session) (engine.Change, error) {
		return s.Apply(mut)
	})
	if err != nil {
		return change, err
	}
	m.logger.Debug("Mutation applied",
		"tracker_id", id.String(),
		"request_id", requestID,
		"op", mut.Op,
		"changed_locations", len(change.Locations),
	)
	if !change.Empty() {
		m.publish(ctx, id, events.Event{Type: events.EventTypeTrackerUpdated, RequestID: requestID, Change: &change})
	}
	return change, nil
}

// Restore replaces a tracker's state with a snapshot.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID, snap *snapshot.Snapshot) (engine.Change, error) {
	change, err := m.update(ctx, id, func(s *engine.Session) (engine.Change, error) {
		return s.Restore(snap)
	})
	if err != nil {
		return change, err
	}
	m.logger.Info("Tracker restored", "tracker_id", id.String())
	m.publish(ctx, id, events.Event{Type: events.EventTypeTrackerRestored, Change: &change})
	return change, nil
}

// View runs fn with read access to a tracker's engine.
func (m *Manager) View(ctx context.Context, id uuid.UUID, fn func(*engine.Engine)) (*Info, error) {
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	e.session.View(fn)
	m.mu.Lock()
	info := e.info
	m.mu.Unlock()
	return &info, nil
}

func (m *Manager) Snapshot(ctx context.Context, id uuid.UUID) (*snapshot.Snapshot, error) {
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.session.Snapshot(), nil
}

// Delete removes a tracker. Deleting a missing tracker is not an error.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := m.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.store.DeleteTracker(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tracker: %w", err)
	}
	m.drop(id)
	m.logger.Info("Tracker deleted", "tracker_id", id.String())
	m.publish(ctx, id, events.Event{Type: events.EventTypeTrackerDeleted})
	return nil
}

func (m *Manager) List(ctx context.Context) ([]uuid.UUID, error) {
	return m.store.ListTrackers(ctx)
}

func (m *Manager) publish(ctx context.Context, id uuid.UUID, ev events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, id, ev); err != nil {
		// Storage already holds the change; subscribers resync on their next read.
		m.logger.Error("Failed to publish event", "error", err, "tracker_id", id.String(), "event_type", ev.Type)
	}
}
