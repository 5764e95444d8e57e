package services

import "sync"

// DraftLocks serializes commands on the same draft within this process.
type DraftLocks struct {
	mu    sync.Mutex
	locks map[string]*draftLock
}

type draftLock struct {
	sync.Mutex
	refs int
}

func NewDraftLocks() *DraftLocks {
	return &DraftLocks{locks: make(map[string]*draftLock)}
}

// Lock blocks until the draft is free and returns the matching unlock.
func (l *DraftLocks) Lock(draftID string) func() {
	l.mu.Lock()
	e, ok := l.locks[draftID]
	if !ok {
		e = &draftLock{}
		l.locks[draftID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, draftID)
		}
		l.mu.Unlock()
	}
}
