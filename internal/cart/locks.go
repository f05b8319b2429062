package cart

import (
	"context"
	"sync"
)

// sessionLocks hands out one lock per session id. Entries are dropped once
// nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session is free or ctx is done.
func (l *sessionLocks) acquire(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock.ch
				l.unref(sessionID, lock)
			})
		}, nil
	case <-ctx.Done():
		l.unref(sessionID, lock)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) unref(sessionID string, lock *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, sessionID)
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
