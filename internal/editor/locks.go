package editor

import "sync"

// lockRegistry grants at most one in-flight mutation per project. Acquire
// never blocks: a second mutation on the same project is rejected so it can
// be surfaced as a conflict instead of queueing behind minutes of encoding.
type lockRegistry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{held: make(map[string]struct{})}
}

func (l *lockRegistry) tryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[id]; busy {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *lockRegistry) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}
