package app

import "sync"

// sessionLocks serializes workflow execution per session. Concurrent
// advance/verify/cancel calls on the same session must not interleave:
// re-entrant execution of a non-idempotent step is the primary
// correctness risk. Locks are never removed; onboarding sessions are
// bounded in number and short-lived in practice.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// acquire locks the mutex for the given session and returns its unlock
// function.
func (l *sessionLocks) acquire(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
