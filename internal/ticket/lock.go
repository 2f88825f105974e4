package ticket

import "sync"

// KeyedLocks hands out single-slot, in-process execution tokens keyed by
// string. Creates are serialized per owner key so two near-simultaneous
// create requests cannot both pass the duplicate scan, and closes are
// serialized per channel so a double close cannot deliver the archive
// twice. Tokens are not re-entrant and are released explicitly.
type KeyedLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedLocks returns an empty lock table.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the token for key if it is free. Non-blocking: returns
// false when another operation holds it.
func (l *KeyedLocks) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release frees the token for key. Releasing an unheld key is a no-op.
func (l *KeyedLocks) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
