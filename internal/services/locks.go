package services

import "sync"

// targetLocks hands out one mutex per target id. Entries are dropped once no
// goroutine holds or waits on them, so deleted targets do not leak locks.
type targetLocks struct {
	mu    sync.Mutex
	locks map[string]*targetLock
}

type targetLock struct {
	sync.Mutex
	refs int
}

func newTargetLocks() *targetLocks {
	return &targetLocks{locks: make(map[string]*targetLock)}
}

// Lock blocks until the caller owns targetID and returns the matching unlock.
func (l *targetLocks) Lock(targetID string) (unlock func()) {
	l.mu.Lock()
	lk, ok := l.locks[targetID]
	if !ok {
		lk = &targetLock{}
		l.locks[targetID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, targetID)
		}
		l.mu.Unlock()
	}
}

func (l *targetLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
