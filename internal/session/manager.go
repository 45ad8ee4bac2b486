package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/containerd/errdefs"
)

// Key identifies a session: one browser tab of one anonymous visitor.
type Key struct {
	VisitorID string
	SessionID string
}

func (k Key) String() string { return k.VisitorID + ":" + k.SessionID }

// Session is a registry entry. Its machine may only be used while the session is acquired.
type Session struct {
	Key       Key
	CreatedAt time.Time

	mu         sync.Mutex
	machine    *Machine
	lastActive atomic.Int64
}

// Machine returns the session's state machine. Callers must hold the session.
func (s *Session) Machine() *Machine { return s.machine }

// LastActive returns the time of the last acquire or release.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

func (s *Session) touch(now time.Time) { s.lastActive.Store(now.UnixNano()) }

// Registry owns the live sessions. Actions on one session are serialized: a second action on a
// busy session is rejected instead of queued.
type Registry struct {
	mu         sync.Mutex
	sessions   map[Key]*Session
	newMachine func() *Machine
	now        func() time.Time
}

// NewRegistry creates an empty registry. newMachine builds the state for new and reset sessions.
func NewRegistry(newMachine func() *Machine) *Registry {
	return &Registry{
		sessions:   make(map[Key]*Session),
		newMachine: newMachine,
		now:        time.Now,
	}
}

// Acquire returns the session for key, creating it on first use, and locks it for the caller.
// The returned release func must be called exactly once. A session already held by another
// action yields errdefs.ErrConflict.
func (r *Registry) Acquire(key Key) (*Session, func(), error) {
	if key.VisitorID == "" || key.SessionID == "" {
		return nil, nil, fmt.Errorf("session key is incomplete: %w", errdefs.ErrInvalidArgument)
	}

	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		now := r.now()
		s = &Session{Key: key, CreatedAt: now, machine: r.newMachine()}
		s.touch(now)
		r.sessions[key] = s
		slog.Debug("session created", "visitor_id", key.VisitorID, "session_id", key.SessionID)
	}
	if !s.mu.TryLock() {
		r.mu.Unlock()
		slog.Warn("session busy, rejecting action", "visitor_id", key.VisitorID, "session_id", key.SessionID)
		return nil, nil, fmt.Errorf("session %s is busy: %w", key, errdefs.ErrConflict)
	}
	s.touch(r.now())
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.touch(r.now())
			s.mu.Unlock()
		})
	}
	return s, release, nil
}

// ResetMachine replaces the session's machine with a fresh one. Callers must hold the session.
func (r *Registry) ResetMachine(s *Session) {
	s.machine = r.newMachine()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than ttl and returns their keys. Busy sessions are kept.
func (r *Registry) Sweep(ttl time.Duration) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	var expired []Key
	for key, s := range r.sessions {
		if s.LastActive().After(cutoff) {
			continue
		}
		if !s.mu.TryLock() {
			continue
		}
		delete(r.sessions, key)
		s.mu.Unlock()
		expired = append(expired, key)
	}
	return expired
}
