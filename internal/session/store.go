package session

import (
	"sync"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// entry owns one session's context. mu is held for the whole of a turn.
type entry struct {
	mu  sync.Mutex
	ctx domain.SessionContext
}

// Store maps session IDs to their contexts. Turns on one session are
// serialized by the entry lock; different sessions proceed in parallel.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry), now: time.Now}
}

// acquire returns the locked entry for id, creating it at Home. The caller
// must unlock it. An entry pruned while acquire waited for its lock is
// abandoned and the lookup retried.
func (s *Store) acquire(id string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			e = &entry{ctx: domain.SessionContext{State: domain.StateHome, UpdatedAt: s.now()}}
			s.entries[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		s.mu.Lock()
		current := s.entries[id] == e
		s.mu.Unlock()
		if current {
			return e
		}
		e.mu.Unlock()
	}
}

// Snapshot returns a copy of the session context for id.
func (s *Store) Snapshot(id string) (domain.SessionContext, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return domain.SessionContext{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx, true
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Prune drops sessions idle for longer than idle. Sessions with a turn in
// flight are kept. It returns the number removed.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.ctx.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}
