package core

// sessions.go keeps the server-side grid sessions and expires idle ones.
//
// A session is created per open table page. Every access refreshes its
// last-used time; the sweeper drops sessions idle for longer than the TTL.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/factoryinv/internal/grid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("grid session not found")

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 30 * time.Minute

type sessionEntry struct {
	session  *grid.Session
	lastUsed time.Time
}

// SessionRegistry maps session ids to grid sessions.
type SessionRegistry struct {
	backend grid.Backend
	proj    *grid.Projection
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionRegistry creates sessions over backend with the given projection.
func NewSessionRegistry(backend grid.Backend, proj *grid.Projection, ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRegistry{
		backend:  backend,
		proj:     proj,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Create registers a new, empty session.
func (r *SessionRegistry) Create() (string, *grid.Session) {
	id := uuid.NewString()
	s := grid.NewSession(r.backend, r.proj)

	r.mu.Lock()
	r.sessions[id] = &sessionEntry{session: s, lastUsed: r.now()}
	r.mu.Unlock()
	return id, s
}

// Get returns a session and marks it used.
func (r *SessionRegistry) Get(id string) (*grid.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	return e.session, nil
}

// Delete removes a session.
func (r *SessionRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
// A session with a submission in flight is kept.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) && !e.session.InFlight() {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (r *SessionRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("session sweeper started", "interval", interval, "ttl", r.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("expired grid sessions", "removed", n, "remaining", r.Len())
			}
		}
	}
}
