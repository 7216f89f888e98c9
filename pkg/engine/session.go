package engine

import (
	"sync"

	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

// Session serializes access to an Engine. Mutations hold the write lock
// for the whole propagation, so readers never see a half-updated engine.
type Session struct {
	mu     sync.RWMutex
	engine *Engine
}

func NewSession(e *Engine) *Session {
	return &Session{engine: e}
}

func (s *Session) Apply(m Mutation) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Apply(m)
}

// Do runs fn with exclusive access.
func (s *Session) Do(fn func(*Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// View runs fn with shared access. fn must not mutate.
func (s *Session) View(fn func(*Engine)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.engine)
}

func (s *Session) Snapshot() *snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Snapshot()
}

func (s *Session) Restore(snap *snapshot.Snapshot) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Restore(snap)
}
