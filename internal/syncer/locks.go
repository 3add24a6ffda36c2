package syncer

import "sync"

// Locks serializes sync passes per account within this process. Concurrent
// passes for the same account are safe (upserts are idempotent replaces) but
// wasteful, so the second caller is turned away instead.
type Locks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]bool)}
}

// TryAcquire claims the account's lock; returns false if a sync pass for the
// account is already running.
func (l *Locks) TryAcquire(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[accountID] {
		return false
	}
	l.held[accountID] = true
	return true
}

// Release frees the account's lock.
func (l *Locks) Release(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, accountID)
}
