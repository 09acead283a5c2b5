package service

import "sync"

// caseLocks serializes operations per case id. Entries are reference-counted
// so the map does not grow with every case ever touched.
type caseLocks struct {
	mu    sync.Mutex
	locks map[string]*caseLock
}

type caseLock struct {
	mu   sync.Mutex
	refs int
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: map[string]*caseLock{}}
}

// lock acquires the case's critical section and returns its release func.
func (l *caseLocks) lock(caseID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[caseID]
	if !ok {
		entry = &caseLock{}
		l.locks[caseID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, caseID)
		}
		l.mu.Unlock()
	}
}
