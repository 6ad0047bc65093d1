package session

import (
	"sync"

	"github.com/google/uuid"
)

// Locks serializes read-modify-write cycles per session. Every playlist
// mutation, playback update, and request resolution takes the session's lock
// for the full cycle so concurrent writers never interleave partial
// renumbering. Sessions are independent: no cross-session ordering exists.
type Locks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLocks creates a new per-session lock registry
func NewLocks() *Locks {
	return &Locks{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Lock acquires the mutex for a session, creating it on first use.
// The returned function releases the lock.
func (l *Locks) Lock(sessionID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
