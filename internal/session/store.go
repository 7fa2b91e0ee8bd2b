package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/render"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions in memory. Nothing is persisted: a session and its
// history disappear when it is deleted, expires or the process exits.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// NewStore creates a store expiring sessions idle for longer than ttl.
// A ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session seeded with params.
func (st *Store) Create(params render.Params) *Session {
	s := newSession(uuid.NewString(), params, st.now)

	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()

	return s
}

// Get returns the session and marks it active.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(st.now())
	return s, nil
}

// Delete removes a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	// Session state is read outside the store lock so a long generate never
	// blocks lookups of other sessions.
	st.mu.RLock()
	snapshot := make(map[string]*Session, len(st.sessions))
	for id, s := range st.sessions {
		snapshot[id] = s
	}
	st.mu.RUnlock()

	var idle []string
	for id, s := range snapshot {
		if s.idleBefore(cutoff) {
			idle = append(idle, id)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for _, id := range idle {
		// Skip sessions replaced or touched since the snapshot
		s, ok := st.sessions[id]
		if !ok || s != snapshot[id] || !s.idleBefore(cutoff) {
			continue
		}
		delete(st.sessions, id)
		removed++
	}
	return removed
}

// StartJanitor sweeps every interval until ctx is cancelled. Wait blocks
// until it has returned.
func (st *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if st.ttl <= 0 || interval <= 0 {
		return
	}

	log := logger.FromContext(logger.SetComponent(ctx, "session_janitor"))

	st.wg.Add(1)
	go func() {
		defer st.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.Sweep(); n > 0 {
					log.WithFields(logger.Fields{
						logger.FieldCount: n,
						"live":            st.Len(),
					}).Info("Expired idle sessions")
				}
			}
		}
	}()
}

// Wait blocks until the janitor has stopped.
func (st *Store) Wait() {
	st.wg.Wait()
}
